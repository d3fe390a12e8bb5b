// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package migration

import "github.com/Fantom-foundation/Unitrie/go/common"

// MigrationObserver receives operator-facing progress signals during a
// conversion run. Observers are informational only; they must not influence
// the run's outcome.
type MigrationObserver interface {
	// StartMigration signals the begin of a run for the given block.
	StartMigration(block uint64, stateRoot common.Hash)

	// Progress reports a coarse-grained progress message.
	Progress(msg string)

	// EndMigration signals the end of the run and its outcome.
	EndMigration(res error)
}

// NilMigrationObserver ignores all signals.
type NilMigrationObserver struct{}

func (NilMigrationObserver) StartMigration(uint64, common.Hash) {}
func (NilMigrationObserver) Progress(string)                    {}
func (NilMigrationObserver) EndMigration(error)                 {}
