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
)

// Domain tags separating an account's sub-namespaces in the unified trie.
// An account's record lives at the 32-byte hash of its address; entries
// below it are reached by appending a tag byte to that prefix.
const (
	storageDomainTag = byte(0x00)
	codeDomainTag    = byte(0x01)
)

// Repository is the mutation interface of the unified state trie. Account
// records, storage entries, and code all live in one trie; the repository
// keeps per-account book-keeping so that each record's storage root and
// code hash can be derived before the trie is read or persisted.
//
// A Repository is not safe for concurrent use.
type Repository struct {
	store   trie.Store
	unitrie *trie.Trie
	dirty   map[common.Address]*accountEntry
}

// accountEntry tracks the mutable view of one account between refreshes.
type accountEntry struct {
	record     *AccountRecord
	isContract bool
	storage    *trie.Trie // mirrors the account's storage entries, legacy-keyed
	codeHash   common.Hash
	hasCode    bool
}

// NewRepository creates an empty repository persisting into the given store.
func NewRepository(store trie.Store) *Repository {
	return &Repository{
		store:   store,
		unitrie: trie.New(),
		dirty:   map[common.Address]*accountEntry{},
	}
}

// CreateAccount registers a fresh account with zero nonce and balance.
// Creating an already known account resets it.
func (r *Repository) CreateAccount(addr common.Address) {
	r.dirty[addr] = &accountEntry{
		record:  NewAccountRecord(0, big.NewInt(0)),
		storage: trie.New(),
	}
}

// UpdateAccount sets the nonce and balance of the given account.
func (r *Repository) UpdateAccount(addr common.Address, nonce uint64, balance *big.Int) error {
	entry, err := r.entry(addr)
	if err != nil {
		return err
	}
	entry.record.Nonce = nonce
	entry.record.Balance = balance
	return nil
}

// SetupContract marks the given account as a contract, initializing its
// storage namespace. The operation is idempotent.
func (r *Repository) SetupContract(addr common.Address) error {
	entry, err := r.entry(addr)
	if err != nil {
		return err
	}
	entry.isContract = true
	return nil
}

// SetStorage binds the given raw storage key of the given contract to a
// value. In the unified trie the entry lives below the account's storage
// namespace under the raw key; the account's storage root is derived from
// a parallel legacy-keyed view at refresh time.
func (r *Repository) SetStorage(addr common.Address, rawKey, value []byte) error {
	entry, err := r.entry(addr)
	if err != nil {
		return err
	}
	if !entry.isContract {
		return fmt.Errorf("account %x has no storage namespace: %w", addr, common.ErrInconsistency)
	}
	unitrie, err := r.unitrie.Put(storageKey(addr, rawKey), value)
	if err != nil {
		return err
	}
	r.unitrie = unitrie
	hashedKey := common.Keccak256(rawKey)
	storage, err := entry.storage.Put(hashedKey[:], value)
	if err != nil {
		return err
	}
	entry.storage = storage
	return nil
}

// SaveCode stores the code of the given contract and links its hash into
// the account record.
func (r *Repository) SaveCode(addr common.Address, code []byte) error {
	entry, err := r.entry(addr)
	if err != nil {
		return err
	}
	unitrie, err := r.unitrie.Put(codeKey(addr), code)
	if err != nil {
		return err
	}
	r.unitrie = unitrie
	entry.codeHash = common.Keccak256(code)
	entry.hasCode = true
	return nil
}

// Root derives all pending account records and returns the trie's root
// under the current hash convention.
func (r *Repository) Root() (common.Hash, error) {
	if err := r.refresh(); err != nil {
		return common.Hash{}, err
	}
	return r.unitrie.Hash()
}

// Trie derives all pending account records and returns the underlying
// unified trie.
func (r *Repository) Trie() (*trie.Trie, error) {
	if err := r.refresh(); err != nil {
		return nil, err
	}
	return r.unitrie, nil
}

// Flush derives all pending account records and persists the trie into the
// backing store.
func (r *Repository) Flush() error {
	if err := r.refresh(); err != nil {
		return err
	}
	if err := r.store.Save(r.unitrie); err != nil {
		return err
	}
	return r.store.Flush()
}

func (r *Repository) entry(addr common.Address) (*accountEntry, error) {
	entry, exists := r.dirty[addr]
	if !exists {
		return nil, fmt.Errorf("account %x does not exist: %w", addr, common.ErrMissingData)
	}
	return entry, nil
}

// refresh folds the book-keeping of all touched accounts into their
// records and writes the records into the trie.
func (r *Repository) refresh() error {
	for addr, entry := range r.dirty {
		entry.record.StorageRoot = EmptyStorageRoot
		if entry.isContract {
			root, err := entry.storage.LegacyHash()
			if err != nil {
				return fmt.Errorf("cannot derive storage root of %x: %w", addr, err)
			}
			entry.record.StorageRoot = root
		}
		entry.record.CodeHash = EmptyCodeHash
		if entry.hasCode {
			entry.record.CodeHash = entry.codeHash
		}
		encoded, err := entry.record.Encode()
		if err != nil {
			return fmt.Errorf("cannot encode record of %x: %w", addr, err)
		}
		key := common.Keccak256OfAddress(addr)
		unitrie, err := r.unitrie.Put(key[:], encoded)
		if err != nil {
			return err
		}
		r.unitrie = unitrie
	}
	return nil
}

// storageKey is the unified-trie key of a contract storage entry.
func storageKey(addr common.Address, rawKey []byte) []byte {
	prefix := common.Keccak256OfAddress(addr)
	res := make([]byte, 0, common.HashSize+1+len(rawKey))
	res = append(res, prefix[:]...)
	res = append(res, storageDomainTag)
	res = append(res, rawKey...)
	return res
}

// codeKey is the unified-trie key of a contract's code.
func codeKey(addr common.Address) []byte {
	prefix := common.Keccak256OfAddress(addr)
	return append(prefix[:], codeDomainTag)
}

// Account returns the current record of the given account, deriving
// pending changes first.
func (r *Repository) Account(addr common.Address) (*AccountRecord, bool, error) {
	if err := r.refresh(); err != nil {
		return nil, false, err
	}
	key := common.Keccak256OfAddress(addr)
	data, found, err := r.unitrie.Get(key[:])
	if err != nil || !found {
		return nil, false, err
	}
	record, err := DecodeAccountRecord(data)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// Storage returns the value bound to the given raw storage key of the
// given contract.
func (r *Repository) Storage(addr common.Address, rawKey []byte) ([]byte, bool, error) {
	return r.unitrie.Get(storageKey(addr, rawKey))
}

// Code returns the code of the given contract.
func (r *Repository) Code(addr common.Address) ([]byte, bool, error) {
	return r.unitrie.Get(codeKey(addr))
}
