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

import "strings"

const (
	// AccountKeySize is the fixed length of an account key in bytes. The
	// legacy accounts trie is keyed by the 32-byte hash of the account
	// address.
	AccountKeySize = 32

	// AccountKeyBits is the account key length expressed as a path length.
	// A node whose key path has exactly this length marks an account
	// boundary; longer paths are contract-scoped.
	AccountKeyBits = AccountKeySize * 8
)

// A Path is a navigation path in a trie, expanded to one byte per bit for
// cheap slicing and prefix computations. Each element is 0 or 1.
type Path []byte

// PathFromKey expands the given key into its bit path, most significant bit
// of each byte first.
func PathFromKey(key []byte) Path {
	res := make(Path, len(key)*8)
	for i, b := range key {
		for j := 0; j < 8; j++ {
			res[i*8+j] = (b >> (7 - j)) & 1
		}
	}
	return res
}

// pathFromPacked expands the given packed bits into a path of the given bit
// length. Padding bits beyond the declared length are ignored.
func pathFromPacked(data []byte, bits int) Path {
	res := make(Path, bits)
	for i := 0; i < bits; i++ {
		res[i] = (data[i/8] >> (7 - i%8)) & 1
	}
	return res
}

// Length returns the number of bits in the path.
func (p Path) Length() int {
	return len(p)
}

// Pack converts the path back into its dense byte form, zero-padding the
// last byte when the length is not a multiple of 8.
func (p Path) Pack() []byte {
	res := make([]byte, (len(p)+7)/8)
	for i, bit := range p {
		if bit != 0 {
			res[i/8] |= 1 << (7 - i%8)
		}
	}
	return res
}

func (p Path) String() string {
	builder := strings.Builder{}
	for _, bit := range p {
		if bit == 0 {
			builder.WriteByte('0')
		} else {
			builder.WriteByte('1')
		}
	}
	return builder.String()
}

// commonPrefixLength returns the number of leading bits shared by both paths.
func commonPrefixLength(a, b Path) int {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return limit
}

// copyPath returns a copy of the given path detached from any shared
// backing array.
func copyPath(p Path) Path {
	res := make(Path, len(p))
	copy(res, p)
	return res
}

// concatPath builds the absolute path of a child reached from a parent with
// the given absolute path over the given link bit.
func concatPath(parent Path, bit byte, child Path) Path {
	res := make(Path, 0, len(parent)+1+len(child))
	res = append(res, parent...)
	res = append(res, bit)
	res = append(res, child...)
	return res
}
