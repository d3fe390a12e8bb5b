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

import (
	"fmt"

	"github.com/Fantom-foundation/Unitrie/go/common"
	"github.com/Fantom-foundation/Unitrie/go/database/trie"
)

// LegacyAccountRoot projects the given unified trie onto its account
// sub-trie and computes the root the predecessor system would have derived
// for it. Only values at exactly the account key length contribute; deeper
// entries hold contract storage and code, which the legacy convention
// covers indirectly through the records' storage roots and code hashes.
func LegacyAccountRoot(t *trie.Trie) (common.Hash, error) {
	projection := trie.New()
	it := trie.NewPreOrderIterator(t)
	for it.Next() {
		if it.Path().Length() != trie.AccountKeyBits || !it.Node().HasValue() {
			continue
		}
		value, err := it.Node().Value()
		if err != nil {
			return common.Hash{}, err
		}
		projection, err = projection.Put(it.Path().Pack(), value)
		if err != nil {
			return common.Hash{}, err
		}
	}
	if err := it.Error(); err != nil {
		return common.Hash{}, fmt.Errorf("cannot walk unified trie: %w", err)
	}
	return projection.LegacyHash()
}
