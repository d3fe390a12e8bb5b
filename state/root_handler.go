// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import "github.com/Fantom-foundation/Unitrie/go/common"

// BlockHeader carries the identity of the historic block whose state is
// being converted, including the legacy state root the conversion must
// reproduce.
type BlockHeader struct {
	Number    uint64
	Hash      common.Hash
	StateRoot common.Hash
}

// RootRegistry records, per block, which unified root replaces the block's
// legacy state root. The consensus engine consults it when resolving state
// for blocks predating the conversion.
type RootRegistry struct {
	roots map[common.Hash]common.Hash
}

// NewRootRegistry creates an empty registry.
func NewRootRegistry() *RootRegistry {
	return &RootRegistry{roots: map[common.Hash]common.Hash{}}
}

// Register binds the unified root to the given block.
func (r *RootRegistry) Register(block BlockHeader, root common.Hash) {
	r.roots[block.Hash] = root
}

// MigratedRoot returns the unified root registered for the given block
// hash, if any.
func (r *RootRegistry) MigratedRoot(blockHash common.Hash) (common.Hash, bool) {
	root, exists := r.roots[blockHash]
	return root, exists
}
