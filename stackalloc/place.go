package stackalloc

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/memutils"
)

// Place copies value into memory obtained from a, aligned for T, and returns a pointer to the
// placed copy. The pointer is valid until a checkpoint taken before this call is restored or the
// allocator is cleared.
//
// Pages may live outside of the Go heap and are never scanned by the garbage collector, so T
// must not contain pointers, slices, maps, strings, interfaces, channels or funcs. Debug builds
// verify this.
func Place[T any](a *Allocator, value T) (*T, error) {
	memutils.DebugCheck(func() error {
		return checkPointerFree(reflect.TypeOf(value))
	})

	memory, err := a.Alloc(int(unsafe.Sizeof(value)), uint(unsafe.Alignof(value)))
	if err != nil {
		return nil, err
	}

	placed := (*T)(unsafe.Pointer(unsafe.SliceData(memory)))
	*placed = value
	return placed, nil
}

func checkPointerFree(t reflect.Type) error {
	if t == nil {
		return errors.New("cannot place a nil interface value")
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			err := checkPointerFree(t.Field(i).Type)
			if err != nil {
				return errors.Wrapf(err, "field %s of %s", t.Field(i).Name, t)
			}
		}
		return nil
	default:
		return errors.Errorf("%s cannot be placed in a stack allocator because it holds references", t)
	}
}
