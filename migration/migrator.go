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

//go:generate mockgen -source migrator.go -destination migrator_mocks.go -package migration

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Unitrie/go/backend/source"
	"github.com/Fantom-foundation/Unitrie/go/common"
	"github.com/Fantom-foundation/Unitrie/go/database/trie"
	"github.com/Fantom-foundation/Unitrie/go/state"
)

// Repository is the destination of a conversion run: the mutation surface
// of the unified state.
type Repository interface {
	CreateAccount(addr common.Address)
	UpdateAccount(addr common.Address, nonce uint64, balance *big.Int) error
	SetupContract(addr common.Address) error
	SetStorage(addr common.Address, rawKey, value []byte) error
	SaveCode(addr common.Address, code []byte) error
	Root() (common.Hash, error)
	Trie() (*trie.Trie, error)
	Flush() error
}

// Config wires a Migrator to its sources and destination.
type Config struct {
	// AccountsStore resolves the legacy accounts trie.
	AccountsStore trie.Store

	// ContractsStore resolves externally stored contract storage tries.
	ContractsStore trie.Store

	// CodeSource resolves contract code by code hash; the authoritative
	// origin when a detail record's embedded code disagrees with the
	// account record.
	CodeSource source.KeyValueSource

	// DetailsSource resolves contract detail records by address.
	DetailsSource source.KeyValueSource

	// ContractStoreFactory opens the per-contract fallback store of the
	// given contract, consulted when the shared contract store misses.
	ContractStoreFactory func(addr common.Address) (trie.Store, error)

	// Repository receives the converted state.
	Repository Repository

	// Registry receives the unified root replacing the block's state root.
	Registry *state.RootRegistry

	// Observer receives progress signals; defaults to none.
	Observer MigrationObserver
}

const (
	accountsPerProgressReport = 500
	keysPerProgressReport     = 2000
)

// Migrator converts one historical legacy state into the unified
// representation, verifying on completion that the result re-projects to
// the original root. A Migrator performs a single run and is then
// discarded.
type Migrator struct {
	cfg            Config
	index          *AddressIndex
	contractStores map[common.Address]trie.Store
	keccakCache    map[string]common.Hash
	observer       MigrationObserver
}

// NewMigrator validates the configuration and builds the address index
// from the contract detail store.
func NewMigrator(cfg Config) (*Migrator, error) {
	if cfg.AccountsStore == nil || cfg.ContractsStore == nil {
		return nil, fmt.Errorf("configuration lacks trie stores")
	}
	if cfg.CodeSource == nil || cfg.DetailsSource == nil {
		return nil, fmt.Errorf("configuration lacks data sources")
	}
	if cfg.Repository == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("configuration lacks a destination")
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NilMigrationObserver{}
	}
	index, err := BuildAddressIndex(cfg.DetailsSource, SystemAddress)
	if err != nil {
		return nil, err
	}
	return &Migrator{
		cfg:            cfg,
		index:          index,
		contractStores: map[common.Address]trie.Store{},
		keccakCache:    map[string]common.Hash{},
		observer:       observer,
	}, nil
}

// Migrate converts the state of the given block and registers the
// resulting unified root. Any inconsistency aborts the run; a partially
// written destination must be discarded.
func (m *Migrator) Migrate(block state.BlockHeader) (err error) {
	m.observer.StartMigration(block.Number, block.StateRoot)
	defer func() { m.observer.EndMigration(err) }()

	accounts, found, err := m.cfg.AccountsStore.Retrieve(block.StateRoot)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no state %x for block %d: %w", block.StateRoot, block.Number, common.ErrMissingData)
	}
	root, err := accounts.LegacyHash()
	if err != nil {
		return err
	}
	if root != block.StateRoot {
		return fmt.Errorf("stored state of block %d hashes to %x, expected %x: %w", block.Number, root, block.StateRoot, common.ErrInconsistency)
	}

	if err := m.buildUnitrie(accounts); err != nil {
		return err
	}
	if err := m.cfg.Repository.Flush(); err != nil {
		return err
	}

	unified, err := m.cfg.Repository.Trie()
	if err != nil {
		return err
	}
	projected, err := state.LegacyAccountRoot(unified)
	if err != nil {
		return err
	}
	if projected != block.StateRoot {
		return fmt.Errorf("converted state projects to root %x, expected %x: %w", projected, block.StateRoot, common.ErrInconsistency)
	}
	m.observer.Progress("state root matched")

	unifiedRoot, err := m.cfg.Repository.Root()
	if err != nil {
		return err
	}
	m.cfg.Registry.Register(block, unifiedRoot)
	return nil
}

// buildUnitrie walks the legacy accounts trie pre-order and converts every
// account it terminates. Account boundaries are identified by key-path
// length; deeper nodes sharing the prefix belong to other accounts'
// sub-structures and carry no values in the legacy accounts trie.
func (m *Migrator) buildUnitrie(accounts *trie.Trie) error {
	count := 0
	it := trie.NewPreOrderIterator(accounts)
	for it.Next() {
		if it.Path().Length() != trie.AccountKeyBits {
			continue
		}
		count++
		hashedAddress := common.HashFromBytes(it.Path().Pack())
		if err := m.migrateAccount(hashedAddress, it.Node()); err != nil {
			return err
		}
		if count%accountsPerProgressReport == 0 {
			m.observer.Progress(fmt.Sprintf("%d accounts migrated", count))
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("cannot walk accounts trie: %w", err)
	}
	return AllValuesProcessed(accounts, count)
}

func (m *Migrator) migrateAccount(hashedAddress common.Hash, node *trie.Trie) error {
	addr, exists := m.index.Lookup(hashedAddress)
	if !exists {
		return fmt.Errorf("no address known for account %x: %w", hashedAddress, common.ErrMissingData)
	}
	data, err := node.Value()
	if err != nil {
		return fmt.Errorf("cannot read account %x: %w", addr, err)
	}
	record, err := state.DecodeAccountRecord(data)
	if err != nil {
		return fmt.Errorf("cannot decode account %x: %w", addr, err)
	}
	m.cfg.Repository.CreateAccount(addr)
	if err := m.cfg.Repository.UpdateAccount(addr, record.Nonce, record.Balance); err != nil {
		return fmt.Errorf("cannot update account %x: %w", addr, err)
	}

	contractData, err := m.cfg.DetailsSource.Get(addr[:])
	if err != nil {
		return fmt.Errorf("cannot fetch details of %x: %w", addr, err)
	}
	if contractData == nil {
		return nil
	}
	if err := m.migrateContract(addr, record, contractData); err != nil {
		return fmt.Errorf("unable to migrate contract %x: %w", addr, err)
	}
	return nil
}

func (m *Migrator) migrateContract(addr common.Address, record *state.AccountRecord, contractData []byte) error {
	details, err := DecodeContractDetails(contractData)
	if err != nil {
		return err
	}

	initialized := false
	setup := func() error {
		if initialized {
			return nil
		}
		initialized = true
		return m.cfg.Repository.SetupContract(addr)
	}

	if record.HasStorage() {
		storage, err := m.resolveStorageTrie(addr, details)
		if err != nil {
			return err
		}
		snapshot, err := storage.SnapshotTo(record.StorageRoot)
		if err != nil {
			return fmt.Errorf("cannot pin storage of %x to root %x: %w", addr, record.StorageRoot, err)
		}

		// candidate keys may cover entries deleted since; only keys still
		// present at the pinned root are carried over
		migrated := 0
		for _, rawKey := range details.Keys {
			hashedKey := m.keccak(rawKey)
			value, found, err := snapshot.Get(hashedKey[:])
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			migrated++
			if err := setup(); err != nil {
				return err
			}
			if err := m.cfg.Repository.SetStorage(addr, rawKey, value); err != nil {
				return err
			}
			if migrated%keysPerProgressReport == 0 {
				m.observer.Progress(fmt.Sprintf("contract %x: %d keys migrated", addr, migrated))
			}
		}
		if err := AllValuesProcessed(snapshot, migrated); err != nil {
			return fmt.Errorf("storage of contract %x: %w", addr, err)
		}
	}

	if len(details.Code) > 0 {
		if err := setup(); err != nil {
			return err
		}
		code := details.Code
		if m.keccak(code) != record.CodeHash {
			// the embedded code predates the account's last code change;
			// the code-by-hash store is authoritative
			code, err = m.cfg.CodeSource.Get(record.CodeHash[:])
			if err != nil {
				return err
			}
			if code == nil {
				return fmt.Errorf("no code %x for contract %x: %w", record.CodeHash, addr, common.ErrMissingData)
			}
		}
		if err := m.cfg.Repository.SaveCode(addr, code); err != nil {
			return err
		}
	}
	return nil
}

// resolveStorageTrie locates the storage trie of a contract. External
// storage is resolved by the root recorded in the detail record, from the
// shared contract store with a per-contract fallback store consulted on
// miss; inline storage is rebuilt from the detail record's snapshot blob.
// The caller rewinds the result to the account's recorded root.
func (m *Migrator) resolveStorageTrie(addr common.Address, details *ContractDetails) (*trie.Trie, error) {
	if !details.ExternalStorage {
		storage, err := trie.DecodeSnapshot(details.Storage)
		if err != nil {
			return nil, fmt.Errorf("cannot decode inline storage of %x: %w", addr, err)
		}
		return storage, nil
	}

	root, err := details.StorageRoot()
	if err != nil {
		return nil, err
	}
	storage, found, err := m.cfg.ContractsStore.Retrieve(root)
	if err != nil {
		return nil, err
	}
	if found {
		return storage, nil
	}

	store, err := m.contractStore(addr)
	if err != nil {
		return nil, err
	}
	storage, found, err = store.Retrieve(root)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no storage root %x for contract %x: %w", root, addr, common.ErrMissingData)
	}
	recomputed, err := storage.LegacyHash()
	if err != nil {
		return nil, err
	}
	if recomputed != root {
		return nil, fmt.Errorf("stored storage of %x hashes to %x, expected %x: %w", addr, recomputed, root, common.ErrInconsistency)
	}
	return storage, nil
}

// contractStore opens the per-contract fallback store, memoized for the
// run.
func (m *Migrator) contractStore(addr common.Address) (trie.Store, error) {
	if store, exists := m.contractStores[addr]; exists {
		return store, nil
	}
	if m.cfg.ContractStoreFactory == nil {
		return nil, fmt.Errorf("no fallback store for contract %x: %w", addr, common.ErrMissingData)
	}
	store, err := m.cfg.ContractStoreFactory(addr)
	if err != nil {
		return nil, err
	}
	m.contractStores[addr] = store
	return store, nil
}

// keccak hashes the given bytes, memoizing results for the run. Detail
// records repeat keys heavily across contracts.
func (m *Migrator) keccak(data []byte) common.Hash {
	if hash, exists := m.keccakCache[string(data)]; exists {
		return hash
	}
	hash := common.Keccak256(data)
	m.keccakCache[string(data)] = hash
	return hash
}
