package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uint8 | ~uint32 | ~uint64 | ~uintptr
}

// CheckPow2 returns PowerOfTwoError, annotated with name, if number is zero or not a power of two
func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckRange returns OutOfRangeError, annotated with name, if value is not within [low, high]
func CheckRange[T Number](value, low, high T, name string) error {
	if value < low || value > high {
		return cerrors.Wrapf(OutOfRangeError, "%s is %d, expected a value in [%d, %d]", name, value, low, high)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// BitCeil returns the smallest power of two that is greater than or equal to value.
// BitCeil(0) is 1.
func BitCeil(value int) int {
	if value <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(value-1))
}

// Log2 returns the base two logarithm of a power of two
func Log2(value int) uint8 {
	return uint8(bits.TrailingZeros(uint(value)))
}

// SizeFromBits returns 2^sizeBits
func SizeFromBits(sizeBits uint8) int {
	return 1 << sizeBits
}
