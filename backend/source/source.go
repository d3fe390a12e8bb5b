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

// KeyValueSource is a minimal abstraction of a persisted key/value table.
// It backs trie stores as well as the raw legacy data sets consumed by a
// migration run (contract-detail records, code by hash).
type KeyValueSource interface {
	// Get returns the value stored under the given key, or (nil, nil) when
	// the key is absent.
	Get(key []byte) ([]byte, error)

	// Put stores the given value under the given key, replacing any
	// previous value.
	Put(key, value []byte) error

	// Keys enumerates all keys currently present, in no particular order.
	Keys() ([][]byte, error)

	// Flush writes buffered data to the underlying medium.
	Flush() error

	// Close flushes and releases the source. No other operation may be
	// used afterwards.
	Close() error
}
