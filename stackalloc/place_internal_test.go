package stackalloc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type flatRecord struct {
	Values [4]uint16
	Nested struct {
		Enabled bool
		Weight  float32
	}
}

type referencingRecord struct {
	Count uint32
	Name  string
}

func TestCheckPointerFree(t *testing.T) {
	require.NoError(t, checkPointerFree(reflect.TypeOf(uint64(0))))
	require.NoError(t, checkPointerFree(reflect.TypeOf(flatRecord{})))

	require.Error(t, checkPointerFree(reflect.TypeOf(referencingRecord{})))
	require.Error(t, checkPointerFree(reflect.TypeOf(&flatRecord{})))
	require.Error(t, checkPointerFree(reflect.TypeOf([]byte{})))
	require.Error(t, checkPointerFree(reflect.TypeOf([2]map[int]int{})))
	require.Error(t, checkPointerFree(nil))
}
