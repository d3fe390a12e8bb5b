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
	"math/big"

	"github.com/Fantom-foundation/Unitrie/go/common"
	"github.com/Fantom-foundation/Unitrie/go/database/trie"
	"github.com/ethereum/go-ethereum/rlp"
)

// Sentinels marking the absence of contract storage or code in an account
// record.
var (
	EmptyStorageRoot = trie.EmptyLegacyRoot
	EmptyCodeHash    = common.EmptyKeccak256Hash
)

// AccountRecord is the RLP-encoded per-account payload stored at the
// account's key in both the legacy accounts trie and the unified trie.
// Records are read once, translated, and never mutated afterwards.
type AccountRecord struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// NewAccountRecord creates a record for an account without storage or code.
func NewAccountRecord(nonce uint64, balance *big.Int) *AccountRecord {
	return &AccountRecord{
		Nonce:       nonce,
		Balance:     balance,
		StorageRoot: EmptyStorageRoot,
		CodeHash:    EmptyCodeHash,
	}
}

// DecodeAccountRecord parses the RLP encoding of an account record.
func DecodeAccountRecord(data []byte) (*AccountRecord, error) {
	res := &AccountRecord{}
	if err := rlp.DecodeBytes(data, res); err != nil {
		return nil, fmt.Errorf("cannot decode account record: %v: %w", err, common.ErrMalformedInput)
	}
	return res, nil
}

// Encode produces the RLP encoding of the record.
func (r *AccountRecord) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(r)
}

// HasStorage reports whether the account links a non-empty storage trie.
func (r *AccountRecord) HasStorage() bool {
	return r.StorageRoot != EmptyStorageRoot
}

// HasCode reports whether the account links contract code.
func (r *AccountRecord) HasCode() bool {
	return r.CodeHash != EmptyCodeHash
}
