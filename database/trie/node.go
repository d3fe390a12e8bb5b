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

	"github.com/Fantom-foundation/Unitrie/go/common"
)

// inlineValueLimit is the largest value embedded directly into a node's
// serialized form; longer values are stored out-of-line, keyed by their
// Keccak-256 hash.
const inlineValueLimit = 32

// Trie is a node of an immutable, content-addressed binary radix tree.
// Every node covers a path segment of the key space, holds up to two
// children (one per bit value, referenced by store key and resolved
// lazily), and an optional terminal value. Mutations produce new nodes
// sharing all unmodified sub-structures; node hashes are pure functions of
// subtree content and memoized after first use.
//
// A Trie is not safe for concurrent use.
type Trie struct {
	path  Path
	left  *childRef
	right *childRef

	hasValue  bool
	value     []byte       // resolved value; nil for an unresolved out-of-line value
	valueHash *common.Hash // content address of an out-of-line value
	valueLen  int

	// source resolves child references and out-of-line values; nil for
	// fully in-memory (detached) tries.
	source Store

	// memoized hashes
	hash            *common.Hash
	legacy          *common.Hash
	legacyRemaining int
}

// childRef links a node to one of its children, either through the child's
// store key, the resolved node, or both.
type childRef struct {
	key    common.Hash
	hasKey bool
	node   *Trie
}

// New creates an empty trie not attached to any store.
func New() *Trie {
	return &Trie{}
}

// isEmpty identifies the canonical empty trie.
func (t *Trie) isEmpty() bool {
	return len(t.path) == 0 && !t.hasValue && t.left == nil && t.right == nil
}

// child resolves the given reference, fetching the node from the backing
// store on first access.
func (t *Trie) child(ref *childRef) (*Trie, error) {
	if ref.node != nil {
		return ref.node, nil
	}
	if t.source == nil {
		return nil, fmt.Errorf("detached trie references node %x: %w", ref.key, common.ErrMissingData)
	}
	node, found, err := t.source.Retrieve(ref.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("node %x absent from backing store: %w", ref.key, common.ErrMissingData)
	}
	ref.node = node
	return node, nil
}

// HasValue reports whether this node carries a terminal value, without
// resolving out-of-line values.
func (t *Trie) HasValue() bool {
	return t.hasValue
}

// Value returns the terminal value of this node, fetching out-of-line
// values from the backing store on first access. It returns nil for nodes
// without a value.
func (t *Trie) Value() ([]byte, error) {
	if !t.hasValue {
		return nil, nil
	}
	if t.value == nil && t.valueHash != nil {
		if t.source == nil {
			return nil, fmt.Errorf("detached trie references value %x: %w", *t.valueHash, common.ErrMissingData)
		}
		data, found, err := t.source.RetrieveValue(*t.valueHash)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("value %x absent from backing store: %w", *t.valueHash, common.ErrMissingData)
		}
		if len(data) != t.valueLen {
			return nil, fmt.Errorf("value %x has %d bytes, node declares %d: %w", *t.valueHash, len(data), t.valueLen, common.ErrMalformedInput)
		}
		t.value = data
	}
	return t.value, nil
}

// Get looks up the value stored under the given key. The second result
// reports whether the key is present.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	node, err := t.find(PathFromKey(key))
	if err != nil {
		return nil, false, err
	}
	if node == nil || !node.hasValue {
		return nil, false, nil
	}
	value, err := node.Value()
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// find walks the trie along the given relative path and returns the node
// terminating it, or nil if no such node exists.
func (t *Trie) find(rel Path) (*Trie, error) {
	cur := t
	for {
		prefix := commonPrefixLength(cur.path, rel)
		if prefix < len(cur.path) {
			return nil, nil
		}
		rel = rel[prefix:]
		if len(rel) == 0 {
			return cur, nil
		}
		var ref *childRef
		if rel[0] == 0 {
			ref = cur.left
		} else {
			ref = cur.right
		}
		if ref == nil {
			return nil, nil
		}
		child, err := cur.child(ref)
		if err != nil {
			return nil, err
		}
		cur = child
		rel = rel[1:]
	}
}

// Put returns a trie derived from this one in which the given key is bound
// to the given value. The receiver remains valid and unchanged.
func (t *Trie) Put(key, value []byte) (*Trie, error) {
	// resolved values are kept non-nil; nil marks an unresolved
	// out-of-line value
	copied := make([]byte, len(value))
	copy(copied, value)
	return t.insert(PathFromKey(key), copied)
}

func (t *Trie) insert(rel Path, value []byte) (*Trie, error) {
	if t.isEmpty() {
		return newLeaf(copyPath(rel), value, t.source), nil
	}
	prefix := commonPrefixLength(t.path, rel)
	if prefix == len(t.path) {
		rest := rel[prefix:]
		if len(rest) == 0 {
			res := t.cloneShallow()
			res.setValue(value)
			return res, nil
		}
		bit := rest[0]
		ref := t.left
		if bit == 1 {
			ref = t.right
		}
		var newChild *Trie
		if ref == nil {
			newChild = newLeaf(copyPath(rest[1:]), value, t.source)
		} else {
			child, err := t.child(ref)
			if err != nil {
				return nil, err
			}
			newChild, err = child.insert(rest[1:], value)
			if err != nil {
				return nil, err
			}
		}
		res := t.cloneShallow()
		res.setChild(bit, newChild)
		return res, nil
	}

	// The new key diverges inside this node's path segment; split it.
	branch := &Trie{path: copyPath(t.path[:prefix]), source: t.source}
	lower := t.cloneShallow()
	lower.path = copyPath(t.path[prefix+1:])
	branch.setChild(t.path[prefix], lower)
	rest := rel[prefix:]
	if len(rest) == 0 {
		branch.setValue(value)
	} else {
		branch.setChild(rest[0], newLeaf(copyPath(rest[1:]), value, t.source))
	}
	return branch, nil
}

func newLeaf(path Path, value []byte, source Store) *Trie {
	return &Trie{
		path:     path,
		hasValue: true,
		value:    value,
		valueLen: len(value),
		source:   source,
	}
}

// cloneShallow copies this node, sharing children and value but dropping
// all memoized hashes.
func (t *Trie) cloneShallow() *Trie {
	res := &Trie{
		path:      t.path,
		left:      t.left,
		right:     t.right,
		hasValue:  t.hasValue,
		value:     t.value,
		valueHash: t.valueHash,
		valueLen:  t.valueLen,
		source:    t.source,
	}
	return res
}

func (t *Trie) setValue(value []byte) {
	t.hasValue = true
	t.value = value
	t.valueHash = nil
	t.valueLen = len(value)
	t.resetHashes()
}

func (t *Trie) setChild(bit byte, child *Trie) {
	ref := &childRef{node: child}
	if bit == 0 {
		t.left = ref
	} else {
		t.right = ref
	}
	t.resetHashes()
}

func (t *Trie) resetHashes() {
	t.hash = nil
	t.legacy = nil
}

// SnapshotTo returns a read-only view of the trie's history pinned at the
// given root, resolved through the backing store. A trie without a backing
// store can only be pinned to its own legacy root.
func (t *Trie) SnapshotTo(root common.Hash) (*Trie, error) {
	if t.source != nil {
		node, found, err := t.source.Retrieve(root)
		if err != nil {
			return nil, err
		}
		if found {
			return node, nil
		}
	}
	own, err := t.LegacyHash()
	if err != nil {
		return nil, err
	}
	if own == root {
		return t, nil
	}
	return nil, fmt.Errorf("root %x not reachable from trie: %w", root, common.ErrMissingData)
}
