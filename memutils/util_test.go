package memutils_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/memutils"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "value"))
	require.NoError(t, memutils.CheckPow2(uint64(1<<40), "value"))

	err := memutils.CheckPow2(0, "value")
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	err = memutils.CheckPow2(uint32(12), "pageSize")
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.ErrorContains(t, err, "pageSize is 12")
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, memutils.CheckRange(uint8(12), 10, 12, "bits"))
	require.NoError(t, memutils.CheckRange(uint8(10), 10, 12, "bits"))

	err := memutils.CheckRange(uint8(13), 10, 12, "bits")
	require.True(t, errors.Is(err, memutils.OutOfRangeError))
	require.ErrorContains(t, err, "expected a value in [10, 12]")
}

func TestBitCeil(t *testing.T) {
	require.Equal(t, 1, memutils.BitCeil(0))
	require.Equal(t, 1, memutils.BitCeil(1))
	require.Equal(t, 2, memutils.BitCeil(2))
	require.Equal(t, 4, memutils.BitCeil(3))
	require.Equal(t, 4096, memutils.BitCeil(4096))
	require.Equal(t, 8192, memutils.BitCeil(4097))
	require.Equal(t, 16384, memutils.BitCeil(10000))
}

func TestAlignment(t *testing.T) {
	require.Equal(t, 16, memutils.AlignUp(1, 16))
	require.Equal(t, 16, memutils.AlignUp(16, 16))
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 0, memutils.AlignDown(15, 16))
	require.Equal(t, 32, memutils.AlignDown(33, 16))
}

func TestLog2(t *testing.T) {
	require.Equal(t, uint8(0), memutils.Log2(1))
	require.Equal(t, uint8(12), memutils.Log2(4096))
	require.Equal(t, 4096, memutils.SizeFromBits(12))
}

func TestDetailedStatistics(t *testing.T) {
	var first, second memutils.DetailedStatistics
	first.Clear()
	second.Clear()

	first.AddPage(1024)
	first.AddFreePage(2048)
	second.AddPage(4096)
	second.LeafBlockCount = 1
	second.LeafBlockBytes = 4096

	first.AddDetailedStatistics(&second)
	require.Equal(t, 2, first.PageCount)
	require.Equal(t, 5120, first.PageBytes)
	require.Equal(t, 1024, first.PageSizeMin)
	require.Equal(t, 4096, first.PageSizeMax)
	require.Equal(t, 2048, first.FreePageSizeMin)
	require.Equal(t, 2048, first.FreePageSizeMax)
	require.Equal(t, 1, first.LeafBlockCount)
}
