package common

const (
	// HashSize is the length of a Hash in bytes.
	HashSize = 32
	// AddressSize is the length of an Address in bytes.
	AddressSize = 20
)

// Hash is a 32-byte cryptographic hash value.
type Hash [HashSize]byte

// Address is a 20-byte account address.
type Address [AddressSize]byte

// HashFromBytes converts the given bytes into a Hash. Longer inputs are
// truncated, shorter inputs are zero-padded at the end.
func HashFromBytes(data []byte) (h Hash) {
	copy(h[:], data)
	return h
}

// AddressFromBytes converts the given bytes into an Address. Longer inputs
// are truncated, shorter inputs are zero-padded at the end.
func AddressFromBytes(data []byte) (a Address) {
	copy(a[:], data)
	return a
}
