package fdb

import (
	"encoding/binary"
	"unicode/utf16"
)

// Hash returns the hash used to place string-keyed rows in buckets.
//
// It is Paul Hsieh's SuperFastHash. Other readers of the file depend on the
// exact output, so any change here corrupts lookups of existing string keys.
func Hash(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	hash := uint32(len(data))
	rem := len(data) & 3
	i := 0
	for n := len(data) >> 2; n > 0; n-- {
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		tmp := uint32(binary.LittleEndian.Uint16(data[i+2:]))<<11 ^ hash
		hash = hash<<16 ^ tmp
		hash += hash >> 11
		i += 4
	}

	switch rem {
	case 3:
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		hash ^= hash << 16
		hash ^= uint32(data[i+2]) << 18
		hash += hash >> 11
	case 2:
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		hash ^= hash << 11
		hash += hash >> 17
	case 1:
		hash += uint32(data[i])
		hash ^= hash << 10
		hash += hash >> 1
	}

	// Avalanche.
	hash ^= hash << 3
	hash += hash >> 5
	hash ^= hash << 4
	hash += hash >> 17
	hash ^= hash << 25
	hash += hash >> 6
	return hash
}

// keyBytes returns the bytes hashed for a string key: the low byte of each
// UTF-16 code unit.
func keyBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units))
	for i, u := range units {
		b[i] = byte(u)
	}
	return b
}

// HashString hashes a string key the way the file expects.
func HashString(s string) uint32 {
	return Hash(keyBytes(s))
}
