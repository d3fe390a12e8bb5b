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

	"github.com/Fantom-foundation/Unitrie/go/backend/source"
	"github.com/Fantom-foundation/Unitrie/go/common"
)

// AddressIndex recovers raw addresses from their hashes. The legacy
// accounts trie is keyed by address hash, so without this reverse mapping
// no account could be attributed to its address. The index is built once
// before a run and read-only afterwards.
type AddressIndex struct {
	addresses map[common.Hash]common.Address
}

// BuildAddressIndex creates an index covering every address keyed in the
// given detail store plus the given well-known addresses.
func BuildAddressIndex(details source.KeyValueSource, extra ...common.Address) (*AddressIndex, error) {
	keys, err := details.Keys()
	if err != nil {
		return nil, fmt.Errorf("cannot enumerate contract addresses: %w", err)
	}
	res := &AddressIndex{addresses: make(map[common.Hash]common.Address, len(keys)+len(extra))}
	for _, key := range keys {
		// the detail store holds a few non-address book-keeping keys
		if len(key) != common.AddressSize {
			continue
		}
		res.add(common.AddressFromBytes(key))
	}
	for _, addr := range extra {
		res.add(addr)
	}
	return res, nil
}

func (i *AddressIndex) add(addr common.Address) {
	i.addresses[common.Keccak256OfAddress(addr)] = addr
}

// Lookup resolves the address hashing to the given value.
func (i *AddressIndex) Lookup(hash common.Hash) (common.Address, bool) {
	addr, exists := i.addresses[hash]
	return addr, exists
}

// Size returns the number of indexed addresses.
func (i *AddressIndex) Size() int {
	return len(i.addresses)
}
