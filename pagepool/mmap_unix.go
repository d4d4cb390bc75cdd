//go:build unix

package pagepool

import (
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pagekit/undo/memutils"
	"golang.org/x/sys/unix"
)

// MmapPageSource is a PageSource that maps each block into memory with mmap. Blocks are either
// anonymous private mappings, or shared mappings of consecutive regions of a backing file that
// grows as blocks are allocated. File regions released through FreePage are reused by later
// allocations. Every block is aligned to PageSize, even when PageSize is larger than the system
// page size.
type MmapPageSource struct {
	pageSize int
	file     *os.File

	fileSize    int64
	offsets     *swiss.Map[uintptr, int64]
	freeOffsets []int64
}

var _ PageSource = &MmapPageSource{}

// NewMmapPageSource creates an MmapPageSource handing out anonymous mappings of pageSize bytes.
// pageSize must be a power of two. A pageSize of 0 selects DefaultPageSize.
func NewMmapPageSource(pageSize int) (*MmapPageSource, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	err := memutils.CheckPow2(pageSize, "pageSize")
	if err != nil {
		return nil, err
	}

	return &MmapPageSource{
		pageSize: pageSize,
		offsets:  swiss.NewMap[uintptr, int64](8),
	}, nil
}

// NewFileMmapPageSource creates an MmapPageSource whose blocks are shared mappings of file.
// The file is truncated to zero length first and grows by pageSize bytes every time a block
// is allocated that cannot reuse a freed region. pageSize must be a power of two and a
// multiple of the system page size. The caller keeps ownership of file and must close it
// after every block has been freed.
func NewFileMmapPageSource(file *os.File, pageSize int) (*MmapPageSource, error) {
	source, err := NewMmapPageSource(pageSize)
	if err != nil {
		return nil, err
	}

	systemPageSize := unix.Getpagesize()
	if source.pageSize%systemPageSize != 0 {
		return nil, errors.Errorf("file-backed pages of %d bytes are not a multiple of the system page size %d", source.pageSize, systemPageSize)
	}

	err = file.Truncate(0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to truncate page file %s", file.Name())
	}

	source.file = file
	return source, nil
}

// PageSize returns the size in bytes of every block this source hands out
func (s *MmapPageSource) PageSize() int { return s.pageSize }

// AllocPage maps a new block of PageSize bytes
func (s *MmapPageSource) AllocPage() ([]byte, error) {
	if s.file == nil {
		block, err := s.mapAligned(-1, 0, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, errors.Wrap(err, "failed to map an anonymous page")
		}
		s.offsets.Put(blockAddress(block), 0)
		return block, nil
	}

	var offset int64
	if len(s.freeOffsets) > 0 {
		offset = s.freeOffsets[len(s.freeOffsets)-1]
		s.freeOffsets = s.freeOffsets[:len(s.freeOffsets)-1]
	} else {
		offset = s.fileSize
		err := unix.Ftruncate(int(s.file.Fd()), offset+int64(s.pageSize))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to grow page file %s", s.file.Name())
		}
		s.fileSize = offset + int64(s.pageSize)
	}

	block, err := s.mapAligned(int(s.file.Fd()), offset, unix.MAP_SHARED)
	if err != nil {
		s.freeOffsets = append(s.freeOffsets, offset)
		return nil, errors.Wrapf(err, "failed to map page file %s at offset %d", s.file.Name(), offset)
	}

	s.offsets.Put(blockAddress(block), offset)
	return block, nil
}

// mapAligned reserves twice the page size of address space, maps the block over the aligned
// window inside the reservation and releases the rest
func (s *MmapPageSource) mapAligned(fd int, offset int64, flags int) ([]byte, error) {
	size := uintptr(s.pageSize)

	reserved, err := unix.MmapPtr(-1, 0, nil, 2*size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	head := uintptr(memutils.AlignUp(int(uintptr(reserved)), uint(s.pageSize))) - uintptr(reserved)
	aligned := unsafe.Add(reserved, head)

	block, err := unix.MmapPtr(fd, offset, aligned, size, unix.PROT_READ|unix.PROT_WRITE, flags|unix.MAP_FIXED)
	if err != nil {
		return nil, errors.CombineErrors(err, unix.MunmapPtr(reserved, 2*size))
	}

	if head > 0 {
		err = unix.MunmapPtr(reserved, head)
	}
	err = errors.CombineErrors(err, unix.MunmapPtr(unsafe.Add(aligned, size), size-head))
	if err != nil {
		return nil, errors.CombineErrors(err, unix.MunmapPtr(reserved, 2*size))
	}

	return unsafe.Slice((*byte)(block), s.pageSize), nil
}

// FreePage unmaps a block obtained from AllocPage
func (s *MmapPageSource) FreePage(page []byte) error {
	if len(page) != s.pageSize {
		return errors.Errorf("attempted to free a block of %d bytes to a source of %d-byte pages", len(page), s.pageSize)
	}

	address := blockAddress(page)
	offset, ok := s.offsets.Get(address)
	if !ok {
		return errors.New("attempted to free a block that was not mapped by this page source")
	}
	s.offsets.Delete(address)
	if s.file != nil {
		s.freeOffsets = append(s.freeOffsets, offset)
	}

	return errors.Wrap(unix.MunmapPtr(unsafe.Pointer(unsafe.SliceData(page)), uintptr(len(page))), "failed to unmap page")
}

// FileSize returns the number of bytes the backing file has grown to. It is always 0 for
// anonymous mappings.
func (s *MmapPageSource) FileSize() int64 { return s.fileSize }

func blockAddress(block []byte) uintptr {
	return uintptr(unsafe.Pointer(&block[0]))
}
