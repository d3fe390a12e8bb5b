package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"

	"github.com/Fantom-foundation/Unitrie/go/backend/source"
	"github.com/Fantom-foundation/Unitrie/go/common"
	"github.com/Fantom-foundation/Unitrie/go/database/trie"
	"github.com/Fantom-foundation/Unitrie/go/migration"
	"github.com/Fantom-foundation/Unitrie/go/state"
	"github.com/urfave/cli/v2"
)

var (
	dbDirectoryFlag = cli.StringFlag{
		Name:     "db",
		Usage:    "the legacy database directory",
		Required: true,
	}
	destDirectoryFlag = cli.StringFlag{
		Name:     "dest",
		Usage:    "the directory receiving the unified database",
		Required: true,
	}
	blockNumberFlag = cli.Uint64Flag{
		Name:     "block",
		Usage:    "the number of the block whose state is converted",
		Required: true,
	}
	blockHashFlag = cli.StringFlag{
		Name:     "block-hash",
		Usage:    "the hash of the block whose state is converted, hex encoded",
		Required: true,
	}
	stateRootFlag = cli.StringFlag{
		Name:     "state-root",
		Usage:    "the state root recorded in the block, hex encoded",
		Required: true,
	}
)

var migrateCommand = cli.Command{
	Action: migrate,
	Name:   "migrate",
	Usage:  "converts the state of one block into the unified representation",
	Flags: []cli.Flag{
		&dbDirectoryFlag,
		&destDirectoryFlag,
		&blockNumberFlag,
		&blockHashFlag,
		&stateRootFlag,
	},
}

func migrate(ctx *cli.Context) error {
	dir := ctx.String(dbDirectoryFlag.Name)
	blockHash, err := parseHash(ctx.String(blockHashFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid block hash: %w", err)
	}
	stateRoot, err := parseHash(ctx.String(stateRootFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid state root: %w", err)
	}
	block := state.BlockHeader{
		Number:    ctx.Uint64(blockNumberFlag.Name),
		Hash:      blockHash,
		StateRoot: stateRoot,
	}

	log.Printf("Opening legacy database in %v ...", dir)
	sources := &sourceSet{}
	defer sources.close()
	accountsSrc, err := sources.open(filepath.Join(dir, "state"))
	if err != nil {
		return err
	}
	contractsSrc, err := sources.open(filepath.Join(dir, "contracts-storage"))
	if err != nil {
		return err
	}
	detailsSrc, err := sources.open(filepath.Join(dir, "details"))
	if err != nil {
		return err
	}
	destSrc, err := sources.open(ctx.String(destDirectoryFlag.Name))
	if err != nil {
		return err
	}

	registry := state.NewRootRegistry()
	migrator, err := migration.NewMigrator(migration.Config{
		AccountsStore:  trie.NewCachedStore(trie.NewLegacyStore(accountsSrc)),
		ContractsStore: trie.NewCachedStore(trie.NewLegacyStore(contractsSrc)),
		CodeSource:     contractsSrc,
		DetailsSource:  detailsSrc,
		ContractStoreFactory: func(addr common.Address) (trie.Store, error) {
			src, err := sources.open(filepath.Join(dir, "details-storage", fmt.Sprintf("%x", addr)))
			if err != nil {
				return nil, err
			}
			return trie.NewCachedStore(trie.NewLegacyStore(src)), nil
		},
		Repository: state.NewRepository(trie.NewStore(destSrc)),
		Registry:   registry,
		Observer:   consoleObserver{},
	})
	if err != nil {
		return err
	}

	if err := migrator.Migrate(block); err != nil {
		return err
	}
	root, _ := registry.MigratedRoot(block.Hash)
	fmt.Printf("Unified state root: %x\n", root)
	return nil
}

func parseHash(s string) (common.Hash, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(data) != common.HashSize {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashSize, len(data))
	}
	return common.HashFromBytes(data), nil
}

// sourceSet tracks opened databases so all of them are closed on exit,
// including the per-contract fallback stores opened mid-run.
type sourceSet struct {
	sources []*source.LevelDB
}

func (s *sourceSet) open(path string) (*source.LevelDB, error) {
	src, err := source.OpenLevelDB(path)
	if err != nil {
		return nil, err
	}
	s.sources = append(s.sources, src)
	return src, nil
}

func (s *sourceSet) close() {
	for _, src := range s.sources {
		if err := src.Close(); err != nil {
			log.Printf("Failure closing DB: %v", err)
		}
	}
}

// consoleObserver reports progress the way the original conversion tool
// did, as compact console output.
type consoleObserver struct{}

func (consoleObserver) StartMigration(block uint64, stateRoot common.Hash) {
	fmt.Printf("====== %07d (%x) ======\n", block, stateRoot)
}

func (consoleObserver) Progress(msg string) {
	fmt.Println(msg)
}

func (consoleObserver) EndMigration(res error) {
	if res == nil {
		fmt.Println("Matched state root")
	} else {
		fmt.Printf("Migration failed: %v\n", res)
	}
}
