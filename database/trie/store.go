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
	"fmt"

	"github.com/Fantom-foundation/Unitrie/go/backend/source"
	"github.com/Fantom-foundation/Unitrie/go/common"
)

// Store persists trie nodes and out-of-line values in a content-addressed
// key/value source. Nodes are keyed by the hash of their serialized form
// under the store's hash convention, values by the hash of their content.
type Store interface {
	// Retrieve fetches the node stored under the given key. The result
	// reports whether the node was found; an absent node is not an error.
	Retrieve(root common.Hash) (*Trie, bool, error)

	// RetrieveValue fetches the out-of-line value stored under the given
	// content hash.
	RetrieveValue(hash common.Hash) ([]byte, bool, error)

	// Save persists the given trie and all its in-memory sub-structures,
	// keyed under this store's hash convention. Values exceeding the inline
	// limit are stored separately. After a successful save the trie is
	// attached to this store.
	Save(trie *Trie) error

	// Flush forces buffered writes to the underlying source.
	Flush() error
}

// nodeStore is the canonical Store over a KeyValueSource. The legacy flag
// selects the hash convention used for node keys; data migrated from the
// predecessor system is keyed by legacy hashes, newly written unified state
// by current ones.
type nodeStore struct {
	src    source.KeyValueSource
	legacy bool
}

// NewStore creates a store keying nodes by their current-convention hash.
func NewStore(src source.KeyValueSource) Store {
	return &nodeStore{src: src}
}

// NewLegacyStore creates a store keying nodes by their legacy-convention
// hash, as used by databases written by the predecessor system.
func NewLegacyStore(src source.KeyValueSource) Store {
	return &nodeStore{src: src, legacy: true}
}

func (s *nodeStore) Retrieve(root common.Hash) (*Trie, bool, error) {
	data, err := s.src.Get(root[:])
	if err != nil {
		return nil, false, fmt.Errorf("cannot fetch node %x: %w", root, err)
	}
	if data == nil {
		return nil, false, nil
	}
	node, err := decodeNode(data, s)
	if err != nil {
		return nil, false, fmt.Errorf("cannot decode node %x: %w", root, err)
	}
	return node, true, nil
}

func (s *nodeStore) RetrieveValue(hash common.Hash) ([]byte, bool, error) {
	data, err := s.src.Get(hash[:])
	if err != nil {
		return nil, false, fmt.Errorf("cannot fetch value %x: %w", hash, err)
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// decodeNode rebuilds a trie node from its serialized form, leaving children
// and out-of-line values to be resolved lazily through the given store.
func decodeNode(data []byte, store Store) (*Trie, error) {
	wire, err := decodeWire(data)
	if err != nil {
		return nil, err
	}
	res := &Trie{path: wire.path, source: store}
	if wire.left != nil {
		res.left = &childRef{key: *wire.left, hasKey: true}
	}
	if wire.right != nil {
		res.right = &childRef{key: *wire.right, hasKey: true}
	}
	switch wire.valueTag {
	case valueTagInline:
		res.hasValue = true
		res.value = wire.value
		res.valueLen = wire.valueLen
	case valueTagExternal:
		hash := wire.valueHash
		res.hasValue = true
		res.valueHash = &hash
		res.valueLen = wire.valueLen
	}
	return res, nil
}

func (s *nodeStore) Save(trie *Trie) error {
	budget := AccountKeyBits
	if !s.legacy {
		budget = -1
	}
	if _, err := s.save(trie, budget); err != nil {
		return err
	}
	return nil
}

// save persists the given node and returns its store key. Children already
// referenced by key and not resolved in memory are assumed present in the
// source and left untouched. A negative budget disables the legacy boundary.
func (s *nodeStore) save(t *Trie, budget int) (common.Hash, error) {
	remaining := budget
	if budget >= 0 {
		remaining = budget - len(t.path)
		if remaining < 0 {
			return common.Hash{}, fmt.Errorf("node extends %d bits beyond the account key boundary: %w", -remaining, common.ErrInconsistency)
		}
	}
	w := &nodeWire{path: t.path}
	if remaining != 0 {
		if err := s.saveChild(t.left, remaining, &w.left); err != nil {
			return common.Hash{}, err
		}
		if err := s.saveChild(t.right, remaining, &w.right); err != nil {
			return common.Hash{}, err
		}
	}

	if t.hasValue {
		value, err := t.Value()
		if err != nil {
			return common.Hash{}, err
		}
		if len(value) > inlineValueLimit {
			hash := t.ensureValueHash()
			if err := s.src.Put(hash[:], value); err != nil {
				return common.Hash{}, fmt.Errorf("cannot store value %x: %w", hash, err)
			}
		}
	}
	t.valueWire(w)

	version := currentEncodingVersion
	if s.legacy {
		version = legacyEncodingVersion
	}
	encoding := w.encode(version)
	key := common.Keccak256(encoding)
	if err := s.src.Put(key[:], encoding); err != nil {
		return common.Hash{}, fmt.Errorf("cannot store node %x: %w", key, err)
	}
	if s.legacy {
		t.legacy = &key
		t.legacyRemaining = budget
	} else {
		t.hash = &key
	}
	if t.source == nil {
		t.source = s
	}
	return key, nil
}

func (s *nodeStore) saveChild(ref *childRef, remaining int, out **common.Hash) error {
	if ref == nil {
		return nil
	}
	childBudget := remaining
	if remaining >= 0 {
		if ref.node != nil && 1+len(ref.node.path) > remaining {
			// past the account key boundary, excluded from legacy data
			return nil
		}
		childBudget = remaining - 1
	}
	if ref.node == nil {
		// the child was never resolved and is already persisted
		if !ref.hasKey {
			return fmt.Errorf("child reference carries neither node nor key: %w", common.ErrInconsistency)
		}
		key := ref.key
		*out = &key
		return nil
	}
	key, err := s.save(ref.node, childBudget)
	if err != nil {
		return err
	}
	ref.key = key
	ref.hasKey = true
	*out = &key
	return nil
}

func (s *nodeStore) Flush() error {
	return s.src.Flush()
}
