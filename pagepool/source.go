//go:generate mockgen -destination=./mocks/page_source.go -package=mock_pagepool github.com/pagekit/undo/pagepool PageSource

package pagepool

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/memutils"
)

const (
	// DefaultPageSize is the leaf page size used by HeapPageSource when none is requested. It is equal to 4KB.
	DefaultPageSize int = 4096
)

// PageSource supplies the raw leaf blocks a Pool carves its pages out of. Every block returned
// by AllocPage is exactly PageSize bytes long and aligned to PageSize, which must be a power of
// two. A Pool only
// returns blocks to the source when it is destroyed.
//
// Consumers may implement PageSource themselves, for instance to back pages with
// memory-mapped storage. See MmapPageSource.
type PageSource interface {
	PageSize() int
	AllocPage() ([]byte, error)
	FreePage(page []byte) error
}

// HeapPageSource is a PageSource that allocates its blocks from the Go heap. Blocks are aligned
// to their size.
type HeapPageSource struct {
	pageSize int
}

var _ PageSource = &HeapPageSource{}

// NewHeapPageSource creates a HeapPageSource that hands out blocks of pageSize bytes. A pageSize
// of 0 selects DefaultPageSize.
func NewHeapPageSource(pageSize int) (*HeapPageSource, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	err := memutils.CheckPow2(pageSize, "pageSize")
	if err != nil {
		return nil, err
	}

	return &HeapPageSource{pageSize: pageSize}, nil
}

// PageSize returns the size in bytes of every block this source hands out
func (s *HeapPageSource) PageSize() int { return s.pageSize }

// AllocPage allocates a new zeroed block of PageSize bytes aligned to PageSize
func (s *HeapPageSource) AllocPage() ([]byte, error) {
	block := make([]byte, s.pageSize)
	if isAligned(block, s.pageSize) {
		return block, nil
	}

	// The runtime only guarantees size-class alignment, so over-allocate and slice out
	// an aligned window
	block = make([]byte, 2*s.pageSize)
	base := int(uintptr(unsafe.Pointer(&block[0])))
	start := memutils.AlignUp(base, uint(s.pageSize)) - base
	return block[start : start+s.pageSize : start+s.pageSize], nil
}

// FreePage releases a block obtained from AllocPage. Heap blocks are reclaimed by the garbage
// collector, so this only verifies the block size.
func (s *HeapPageSource) FreePage(page []byte) error {
	if len(page) != s.pageSize {
		return errors.Errorf("attempted to free a block of %d bytes to a source of %d-byte pages", len(page), s.pageSize)
	}
	return nil
}

func isAligned(block []byte, alignment int) bool {
	return uintptr(unsafe.Pointer(&block[0]))&uintptr(alignment-1) == 0
}
