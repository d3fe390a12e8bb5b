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
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Unitrie/go/backend/source"
	"github.com/Fantom-foundation/Unitrie/go/common"
	"golang.org/x/exp/slices"
)

// Self-contained snapshot of a legacy trie, as embedded inline into contract
// detail records for contracts with small storage.
//
// Layout:
//
//	[2B format version][32B legacy root hash][4B node count]
//	per node: [4B key length][key][4B encoding length][encoding]
//
// All integers are big-endian. The version field is informational only;
// historic writers emitted several values for the same layout, so decoding
// accepts any. Trailing bytes after the declared nodes are tolerated.
const snapshotEncodingVersion = uint16(1)

const snapshotHeaderSize = 2 + common.HashSize + 4

// EncodeSnapshot serializes the given trie into a self-contained blob from
// which it can be rebuilt without any backing store. The trie is encoded
// under the legacy hash convention.
func EncodeSnapshot(t *Trie) ([]byte, error) {
	mem := source.NewMemory()
	store := NewLegacyStore(mem)
	if err := store.Save(t); err != nil {
		return nil, fmt.Errorf("cannot serialize trie nodes: %w", err)
	}
	// saving attaches detached nodes to the target store; the caller's trie
	// must not stay bound to the throwaway serialization store
	detachFrom(t, store)
	root, err := t.LegacyHash()
	if err != nil {
		return nil, err
	}
	keys, err := mem.Keys()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(keys, func(a, b []byte) bool { return bytes.Compare(a, b) < 0 })

	res := []byte{}
	res = binary.BigEndian.AppendUint16(res, snapshotEncodingVersion)
	res = append(res, root[:]...)
	res = binary.BigEndian.AppendUint32(res, uint32(len(keys)))
	for _, key := range keys {
		value, err := mem.Get(key)
		if err != nil {
			return nil, err
		}
		res = binary.BigEndian.AppendUint32(res, uint32(len(key)))
		res = append(res, key...)
		res = binary.BigEndian.AppendUint32(res, uint32(len(value)))
		res = append(res, value...)
	}
	return res, nil
}

// DecodeSnapshot rebuilds a trie from a self-contained snapshot blob. The
// resulting trie is backed by an in-memory store holding exactly the
// snapshot's nodes.
func DecodeSnapshot(data []byte) (*Trie, error) {
	if len(data) < snapshotHeaderSize {
		return nil, fmt.Errorf("snapshot of %d bytes lacks a header: %w", len(data), common.ErrMalformedInput)
	}
	root := common.HashFromBytes(data[2 : 2+common.HashSize])
	count := int(binary.BigEndian.Uint32(data[2+common.HashSize:]))
	rest := data[snapshotHeaderSize:]

	mem := source.NewMemory()
	for i := 0; i < count; i++ {
		var key, value []byte
		var err error
		key, rest, err = readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("cannot read key of node %d: %w", i, err)
		}
		value, rest, err = readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("cannot read encoding of node %d: %w", i, err)
		}
		if err := mem.Put(key, value); err != nil {
			return nil, err
		}
	}

	res, found, err := NewLegacyStore(mem).Retrieve(root)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("snapshot does not contain its own root %x: %w", root, common.ErrMalformedInput)
	}
	return res, nil
}

// detachFrom removes the binding of the trie's resolved nodes to the given
// store. Nodes bound to another store are left untouched.
func detachFrom(t *Trie, s Store) {
	if t.source == s {
		t.source = nil
	}
	for _, ref := range []*childRef{t.left, t.right} {
		if ref != nil && ref.node != nil {
			detachFrom(ref.node, s)
		}
	}
}

// readChunk splits a length-prefixed chunk off the given data.
func readChunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix: %w", common.ErrMalformedInput)
	}
	length := int(binary.BigEndian.Uint32(data))
	data = data[4:]
	if length > len(data) {
		return nil, nil, fmt.Errorf("declared length %d exceeds %d remaining bytes: %w", length, len(data), common.ErrMalformedInput)
	}
	return data[:length], data[length:], nil
}
