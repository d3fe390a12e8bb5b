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
	"github.com/ethereum/go-ethereum/rlp"
)

// SystemAddress is the distinguished address of the protocol-internal
// contract, encoded in detail records as a single sentinel byte instead of
// a full 20-byte address.
var SystemAddress = common.Address{19: 0x01}

const systemAddressSentinel = byte(0x00)

// ContractDetails is the per-contract side record kept by the predecessor
// system next to its accounts trie. The key list names candidate storage
// keys only; the storage trie may hold fewer entries due to deletions.
type ContractDetails struct {
	Address common.Address

	// ExternalStorage marks contracts whose storage trie lives in the
	// shared contract store; otherwise Storage holds a self-contained
	// snapshot blob.
	ExternalStorage bool

	// Storage is the storage root hash for externally stored contracts,
	// or the inline snapshot blob.
	Storage []byte

	// Code holds the contract's byte code as recorded in the detail
	// record; it may disagree with the account's authoritative code hash.
	Code []byte

	// Keys lists every raw storage key ever written to the contract.
	Keys [][]byte
}

// contractDetailsRLP is the wire form of a detail record.
type contractDetailsRLP struct {
	Address         []byte
	ExternalStorage bool
	Storage         []byte
	Code            []byte
	Keys            [][]byte
}

// DecodeContractDetails parses the RLP encoding of a contract detail
// record.
func DecodeContractDetails(data []byte) (*ContractDetails, error) {
	wire := &contractDetailsRLP{}
	if err := rlp.DecodeBytes(data, wire); err != nil {
		return nil, fmt.Errorf("cannot decode contract details: %v: %w", err, common.ErrMalformedInput)
	}
	res := &ContractDetails{
		ExternalStorage: wire.ExternalStorage,
		Storage:         wire.Storage,
		Code:            wire.Code,
		Keys:            wire.Keys,
	}
	switch {
	case len(wire.Address) == common.AddressSize:
		res.Address = common.AddressFromBytes(wire.Address)
	case len(wire.Address) == 1 && wire.Address[0] == systemAddressSentinel:
		res.Address = SystemAddress
	default:
		return nil, fmt.Errorf("invalid address %x in contract details: %w", wire.Address, common.ErrMalformedInput)
	}
	return res, nil
}

// Encode produces the RLP encoding of the record.
func (d *ContractDetails) Encode() ([]byte, error) {
	wire := &contractDetailsRLP{
		Address:         d.Address[:],
		ExternalStorage: d.ExternalStorage,
		Storage:         d.Storage,
		Code:            d.Code,
		Keys:            d.Keys,
	}
	if d.Address == SystemAddress {
		wire.Address = []byte{systemAddressSentinel}
	}
	return rlp.EncodeToBytes(wire)
}

// StorageRoot returns the storage root recorded for an externally stored
// contract.
func (d *ContractDetails) StorageRoot() (common.Hash, error) {
	if !d.ExternalStorage {
		return common.Hash{}, fmt.Errorf("contract %x stores its trie inline: %w", d.Address, common.ErrInconsistency)
	}
	if len(d.Storage) != common.HashSize {
		return common.Hash{}, fmt.Errorf("storage root of contract %x has %d bytes: %w", d.Address, len(d.Storage), common.ErrMalformedInput)
	}
	return common.HashFromBytes(d.Storage), nil
}
