package fdb

import (
	"math"

	"github.com/maruel/fdb/internal/errors"
)

// DeriveKey converts a key value into the 32-bit integer used for bucket
// placement.
//
// Supported keys:
//   - int32 (and int that fits in 32 bits): the value itself.
//   - int64 (and larger int): truncated to the low 32 bits.
//   - string, StringValue: the legacy hash of the string, reinterpreted as signed.
//   - BigintValue: its value truncated to the low 32 bits.
//
// Anything else fails with an INVALID_KEY error naming the offending type.
func DeriveKey(key any) (int32, error) {
	switch k := key.(type) {
	case int32:
		return k, nil
	case int:
		return int32(k), nil //nolint:gosec // G115: narrowing is the file's semantics.
	case int64:
		return int32(k), nil //nolint:gosec // G115: narrowing is the file's semantics.
	case string:
		return int32(HashString(k)), nil //nolint:gosec // G115: reinterpretation is intended.
	case StringValue:
		return int32(HashString(k.Value)), nil //nolint:gosec // G115: reinterpretation is intended.
	case BigintValue:
		return int32(k.Value), nil //nolint:gosec // G115: narrowing is the file's semantics.
	default:
		return 0, errors.InvalidKey(key)
	}
}

// normalizeKey maps Go's int onto the key representation the table stores:
// int32 when it fits, int64 otherwise. Other supported keys are returned as
// is.
func normalizeKey(key any) (any, error) {
	if _, err := DeriveKey(key); err != nil {
		return nil, err
	}
	if k, ok := key.(int); ok {
		if k >= math.MinInt32 && k <= math.MaxInt32 {
			return int32(k), nil
		}
		return int64(k), nil
	}
	return key, nil
}

// SlotIndex returns the bucket slot of a derived key.
func SlotIndex(key int32, bucketCount int) (int, error) {
	if bucketCount <= 0 {
		return 0, errors.BucketIndexFault(key, uint32(key), 0, bucketCount) //nolint:gosec // G115: reinterpretation is intended.
	}
	return int(uint32(key) % uint32(bucketCount)), nil //nolint:gosec // G115: bucketCount is positive and bounded by the arena size.
}

// NextPowerOfTwo returns the smallest power of two greater than or equal to n.
// It returns 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
