package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Run with `go run ./tools/migrate-cli`

func main() {
	app := &cli.App{
		Name:      "Unitrie Migration Toolbox",
		HelpName:  "migrate",
		Usage:     "Converts a legacy two-trie state database into the unified representation",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags:     []cli.Flag{},
		Commands: []*cli.Command{
			&migrateCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
