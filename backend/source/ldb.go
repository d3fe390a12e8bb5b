// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package source

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB is a KeyValueSource backed by a LevelDB instance. One instance
// owns the database directory exclusively for its lifetime.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB backed source in the given
// directory.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open LevelDB at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *LevelDB) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelDB) Keys() ([][]byte, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	res := [][]byte{}
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		res = append(res, key)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return res, nil
}

// Flush is a no-op; LevelDB persists writes through its own journal.
func (s *LevelDB) Flush() error {
	return nil
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}
