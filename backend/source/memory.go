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

// Memory is an in-memory KeyValueSource. It is used for ephemeral stores,
// like the replay target of a decoded trie snapshot, and as a test double.
type Memory struct {
	data map[string][]byte
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	value, exists := m.data[string(key)]
	if !exists {
		return nil, nil
	}
	res := make([]byte, len(value))
	copy(res, value)
	return res, nil
}

func (m *Memory) Put(key, value []byte) error {
	res := make([]byte, len(value))
	copy(res, value)
	m.data[string(key)] = res
	return nil
}

func (m *Memory) Keys() ([][]byte, error) {
	res := make([][]byte, 0, len(m.data))
	for key := range m.data {
		res = append(res, []byte(key))
	}
	return res, nil
}

func (m *Memory) Flush() error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
