// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie

import (
	"github.com/Fantom-foundation/Unitrie/go/common"
)

// CachedStore is a Store decorator memoizing retrievals in memory. It is
// intended for read-mostly phases over slow sources where the same nodes
// are resolved many times; the cache is unbounded and lives as long as the
// store. Writes pass through to the parent without populating the cache.
type CachedStore struct {
	parent Store
	tries  map[common.Hash]*Trie
	values map[common.Hash][]byte
}

// NewCachedStore wraps the given store with an in-memory retrieval cache.
func NewCachedStore(parent Store) *CachedStore {
	return &CachedStore{
		parent: parent,
		tries:  map[common.Hash]*Trie{},
		values: map[common.Hash][]byte{},
	}
}

func (s *CachedStore) Retrieve(root common.Hash) (*Trie, bool, error) {
	if node, exists := s.tries[root]; exists {
		return node, true, nil
	}
	node, found, err := s.parent.Retrieve(root)
	if err != nil || !found {
		return nil, found, err
	}
	node.source = s
	s.tries[root] = node
	return node, true, nil
}

func (s *CachedStore) RetrieveValue(hash common.Hash) ([]byte, bool, error) {
	if value, exists := s.values[hash]; exists {
		return value, true, nil
	}
	value, found, err := s.parent.RetrieveValue(hash)
	if err != nil || !found {
		return nil, found, err
	}
	s.values[hash] = value
	return value, true, nil
}

func (s *CachedStore) Save(trie *Trie) error {
	return s.parent.Save(trie)
}

// Flush is a no-op; cached stores serve read phases over sources flushed
// by their owner.
func (s *CachedStore) Flush() error {
	return nil
}
