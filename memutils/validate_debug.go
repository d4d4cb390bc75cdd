//go:build debug_mem_utils

package memutils

import "encoding/binary"

const (
	// DebugMargin is the number of guard bytes that should be placed after allocations in pages managed
	// by memutils consumers
	DebugMargin int = 16

	// DebugEnabled is true when the package is built with the debug_mem_utils build tag
	DebugEnabled = true

	// corruptionDetectionMagicValue is a 4-byte pattern that should be copied into guard bytes placed
	// after allocations
	corruptionDetectionMagicValue uint32 = 0x7F84E666
	magicValueSize                int    = 4
)

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes of data at the provided offset.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(data []byte, offset int) {
	dest := data[offset : offset+DebugMargin]
	for i := 0; i+magicValueSize <= len(dest); i += magicValueSize {
		binary.LittleEndian.PutUint32(dest[i:], corruptionDetectionMagicValue)
	}
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_mem_utils build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	source := data[offset : offset+DebugMargin]
	for i := 0; i+magicValueSize <= len(source); i += magicValueSize {
		if binary.LittleEndian.Uint32(source[i:]) != corruptionDetectionMagicValue {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheck will call check and panic if it returns an error. Without the debug_mem_utils build
// tag, check is never called.
func DebugCheck(check func() error) {
	err := check()
	if err != nil {
		panic(err)
	}
}

// DebugAssert panics with message if condition is false. This method no-ops unless the
// debug_mem_utils build tag is present.
func DebugAssert(condition bool, message string) {
	if !condition {
		panic(message)
	}
}
