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

import (
	"fmt"

	"github.com/Fantom-foundation/Unitrie/go/common"
	"github.com/Fantom-foundation/Unitrie/go/database/trie"
)

// AllValuesProcessed audits that the given trie holds exactly the given
// number of value-bearing nodes. After a walk that migrated every value it
// found, a count mismatch means data was silently skipped or duplicated.
func AllValuesProcessed(t *trie.Trie, processed int) error {
	values := 0
	it := trie.NewInOrderIterator(t)
	for it.Next() {
		if it.Node().HasValue() {
			values++
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("cannot audit trie: %w", err)
	}
	if values != processed {
		return fmt.Errorf("trie holds %d values, %d were processed: %w", values, processed, common.ErrInconsistency)
	}
	return nil
}
