//go:build !unix

package pagepool

import (
	"os"

	"github.com/cockroachdb/errors"
)

var errMmapUnsupported = errors.New("memory-mapped page sources are not supported on this platform")

// MmapPageSource is a PageSource that maps each block into memory with mmap. It is only
// available on unix platforms.
type MmapPageSource struct {
	pageSize int
}

var _ PageSource = &MmapPageSource{}

// NewMmapPageSource always fails on this platform
func NewMmapPageSource(pageSize int) (*MmapPageSource, error) {
	return nil, errMmapUnsupported
}

// NewFileMmapPageSource always fails on this platform
func NewFileMmapPageSource(file *os.File, pageSize int) (*MmapPageSource, error) {
	return nil, errMmapUnsupported
}

func (s *MmapPageSource) PageSize() int              { return s.pageSize }
func (s *MmapPageSource) AllocPage() ([]byte, error) { return nil, errMmapUnsupported }
func (s *MmapPageSource) FreePage(page []byte) error { return errMmapUnsupported }
func (s *MmapPageSource) FileSize() int64            { return 0 }
