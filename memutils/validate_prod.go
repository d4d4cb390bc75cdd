//go:build !debug_mem_utils

package memutils

const (
	// DebugMargin is the number of guard bytes that should be placed after allocations in pages managed
	// by memutils consumers
	DebugMargin int = 0

	// DebugEnabled is true when the package is built with the debug_mem_utils build tag
	DebugEnabled = false
)

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_mem_utils build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	return true
}

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes of data at the provided offset.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(data []byte, offset int) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheck will call check and panic if it returns an error. Without the debug_mem_utils build
// tag, check is never called.
func DebugCheck(check func() error) {
}

// DebugAssert panics with message if condition is false. This method no-ops unless the
// debug_mem_utils build tag is present.
func DebugAssert(condition bool, message string) {
}
