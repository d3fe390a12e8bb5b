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
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Unitrie/go/common"
)

// Node serialization, shared by hashing and persistence. The hash of a node
// is the Keccak-256 of its serialized form, so store keys are true content
// addresses and a saved node can be re-fetched under the hash convention it
// was keyed with.
//
// Layout:
//
//	[1B version][2B path bit length][packed path bits]
//	[1B child mask][32B left ref]?[32B right ref]?
//	[1B value tag]
//	  inline:      [4B value length][value]
//	  out-of-line: [32B value hash][4B value length]
//
// All integers are big-endian. Two versions exist: the current convention
// (version 2) covering the full unified trie, and the legacy convention
// (version 1) covering only the account-length-bounded sub-trie, matching
// the predecessor system's root definition.
const (
	legacyEncodingVersion  = byte(1)
	currentEncodingVersion = byte(2)
)

const (
	valueTagNone     = byte(0)
	valueTagInline   = byte(1)
	valueTagExternal = byte(2)
	leftChildBit     = byte(1)
	rightChildBit    = byte(2)
)

// nodeWire is the serialized view of a single node, with children reduced
// to 32-byte references.
type nodeWire struct {
	path      Path
	left      *common.Hash
	right     *common.Hash
	valueTag  byte
	value     []byte      // inline values only
	valueHash common.Hash // out-of-line values only
	valueLen  int
}

func (w *nodeWire) encode(version byte) []byte {
	packed := w.path.Pack()
	size := 1 + 2 + len(packed) + 1 + 1
	if w.left != nil {
		size += common.HashSize
	}
	if w.right != nil {
		size += common.HashSize
	}
	switch w.valueTag {
	case valueTagInline:
		size += 4 + len(w.value)
	case valueTagExternal:
		size += common.HashSize + 4
	}

	res := make([]byte, 0, size)
	res = append(res, version)
	res = binary.BigEndian.AppendUint16(res, uint16(len(w.path)))
	res = append(res, packed...)
	mask := byte(0)
	if w.left != nil {
		mask |= leftChildBit
	}
	if w.right != nil {
		mask |= rightChildBit
	}
	res = append(res, mask)
	if w.left != nil {
		res = append(res, w.left[:]...)
	}
	if w.right != nil {
		res = append(res, w.right[:]...)
	}
	res = append(res, w.valueTag)
	switch w.valueTag {
	case valueTagInline:
		res = binary.BigEndian.AppendUint32(res, uint32(len(w.value)))
		res = append(res, w.value...)
	case valueTagExternal:
		res = append(res, w.valueHash[:]...)
		res = binary.BigEndian.AppendUint32(res, uint32(w.valueLen))
	}
	return res
}

func decodeWire(data []byte) (*nodeWire, error) {
	pos := 0
	if len(data) < 1+2 {
		return nil, fmt.Errorf("node encoding of %d bytes lacks a header: %w", len(data), common.ErrMalformedInput)
	}
	version := data[pos]
	if version != legacyEncodingVersion && version != currentEncodingVersion {
		return nil, fmt.Errorf("unsupported node encoding version %d: %w", version, common.ErrMalformedInput)
	}
	pos++
	bits := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	packedLen := (bits + 7) / 8
	if pos+packedLen+1 > len(data) {
		return nil, fmt.Errorf("node encoding truncated in its %d bit path: %w", bits, common.ErrMalformedInput)
	}
	res := &nodeWire{path: pathFromPacked(data[pos:pos+packedLen], bits)}
	pos += packedLen
	mask := data[pos]
	pos++
	if mask&^(leftChildBit|rightChildBit) != 0 {
		return nil, fmt.Errorf("invalid child mask %x in node encoding: %w", mask, common.ErrMalformedInput)
	}
	if mask&leftChildBit != 0 {
		if pos+common.HashSize > len(data) {
			return nil, fmt.Errorf("node encoding truncated in its left child reference: %w", common.ErrMalformedInput)
		}
		ref := common.HashFromBytes(data[pos : pos+common.HashSize])
		res.left = &ref
		pos += common.HashSize
	}
	if mask&rightChildBit != 0 {
		if pos+common.HashSize > len(data) {
			return nil, fmt.Errorf("node encoding truncated in its right child reference: %w", common.ErrMalformedInput)
		}
		ref := common.HashFromBytes(data[pos : pos+common.HashSize])
		res.right = &ref
		pos += common.HashSize
	}
	if pos+1 > len(data) {
		return nil, fmt.Errorf("node encoding lacks a value tag: %w", common.ErrMalformedInput)
	}
	res.valueTag = data[pos]
	pos++
	switch res.valueTag {
	case valueTagNone:
		// nothing to read
	case valueTagInline:
		if pos+4 > len(data) {
			return nil, fmt.Errorf("node encoding truncated in its value length: %w", common.ErrMalformedInput)
		}
		length := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if length > len(data)-pos {
			return nil, fmt.Errorf("declared value length %d exceeds %d remaining bytes: %w", length, len(data)-pos, common.ErrMalformedInput)
		}
		res.value = make([]byte, length)
		copy(res.value, data[pos:pos+length])
		res.valueLen = length
		pos += length
	case valueTagExternal:
		if pos+common.HashSize+4 > len(data) {
			return nil, fmt.Errorf("node encoding truncated in its value reference: %w", common.ErrMalformedInput)
		}
		res.valueHash = common.HashFromBytes(data[pos : pos+common.HashSize])
		pos += common.HashSize
		res.valueLen = int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
	default:
		return nil, fmt.Errorf("invalid value tag %d in node encoding: %w", res.valueTag, common.ErrMalformedInput)
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after node encoding: %w", len(data)-pos, common.ErrMalformedInput)
	}
	return res, nil
}

// valueWire fills the value fields of a wire view for this node. Unresolved
// out-of-line values are referenced by their known hash without fetching.
func (t *Trie) valueWire(w *nodeWire) {
	if !t.hasValue {
		w.valueTag = valueTagNone
		return
	}
	if t.value == nil || len(t.value) > inlineValueLimit {
		w.valueTag = valueTagExternal
		w.valueHash = t.ensureValueHash()
		w.valueLen = t.valueLen
		return
	}
	w.valueTag = valueTagInline
	w.value = t.value
	w.valueLen = t.valueLen
}

// ensureValueHash returns the content address of the node's value,
// computing and memoizing it for in-memory values.
func (t *Trie) ensureValueHash() common.Hash {
	if t.valueHash == nil {
		hash := common.Keccak256(t.value)
		t.valueHash = &hash
	}
	return *t.valueHash
}

// Hash returns the current-convention hash of the trie, covering the full
// node graph including contract-scoped paths.
func (t *Trie) Hash() (common.Hash, error) {
	if t.hash != nil {
		return *t.hash, nil
	}
	w := &nodeWire{path: t.path}
	if t.left != nil {
		child, err := t.child(t.left)
		if err != nil {
			return common.Hash{}, err
		}
		hash, err := child.Hash()
		if err != nil {
			return common.Hash{}, err
		}
		w.left = &hash
	}
	if t.right != nil {
		child, err := t.child(t.right)
		if err != nil {
			return common.Hash{}, err
		}
		hash, err := child.Hash()
		if err != nil {
			return common.Hash{}, err
		}
		w.right = &hash
	}
	t.valueWire(w)
	hash := common.Keccak256(w.encode(currentEncodingVersion))
	t.hash = &hash
	return hash, nil
}

// LegacyHash returns the hash of the trie under the legacy convention,
// covering only the sub-trie bounded by the fixed account key length. At a
// node terminating exactly at the boundary all children are dropped;
// children extending beyond it are excluded.
func (t *Trie) LegacyHash() (common.Hash, error) {
	return t.legacyHashAt(AccountKeyBits)
}

func (t *Trie) legacyHashAt(budget int) (common.Hash, error) {
	if t.legacy != nil && t.legacyRemaining == budget {
		return *t.legacy, nil
	}
	remaining := budget - len(t.path)
	if remaining < 0 {
		return common.Hash{}, fmt.Errorf("node extends %d bits beyond the account key boundary: %w", -remaining, common.ErrInconsistency)
	}
	w := &nodeWire{path: t.path}
	if remaining > 0 {
		if err := t.legacyChildWire(t.left, remaining, &w.left); err != nil {
			return common.Hash{}, err
		}
		if err := t.legacyChildWire(t.right, remaining, &w.right); err != nil {
			return common.Hash{}, err
		}
	}
	t.valueWire(w)
	hash := common.Keccak256(w.encode(legacyEncodingVersion))
	t.legacy = &hash
	t.legacyRemaining = budget
	return hash, nil
}

func (t *Trie) legacyChildWire(ref *childRef, remaining int, out **common.Hash) error {
	if ref == nil {
		return nil
	}
	child, err := t.child(ref)
	if err != nil {
		return err
	}
	if 1+len(child.path) > remaining {
		// the child begins past the account key boundary
		return nil
	}
	hash, err := child.legacyHashAt(remaining - 1)
	if err != nil {
		return err
	}
	*out = &hash
	return nil
}

// EmptyLegacyRoot is the legacy-convention hash of an empty trie, used as
// the sentinel for accounts without contract storage.
var EmptyLegacyRoot = func() common.Hash {
	hash, err := New().LegacyHash()
	if err != nil {
		panic(fmt.Sprintf("cannot hash the empty trie: %v", err))
	}
	return hash
}()
