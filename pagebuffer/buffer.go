package pagebuffer

import (
	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/memutils"
	"github.com/pagekit/undo/pagepool"
)

// Buffer is a growable, randomly addressable byte store made of pages drawn from a
// pagepool.Pool.
//
// While its capacity is below the pool's maximum page size, a Buffer holds a single page that
// is replaced by a page twice as large (and its contents copied) whenever it runs out of room.
// Once the capacity reaches the maximum page size, the buffer only grows by appending further
// maximum-size pages: from then on, bytes that have been written never move, so byte offsets
// into the buffer stay valid for as long as the buffer holds them.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	pool *pagepool.Pool

	pages    []pagepool.Handle
	pageBits uint8
	size     int
}

// New creates an empty Buffer drawing its pages from pool. No pages are allocated until data
// is written or capacity is reserved.
func New(pool *pagepool.Pool) *Buffer {
	return &Buffer{pool: pool}
}

// Size returns the logical size of the buffer in bytes
func (b *Buffer) Size() int { return b.size }

// Empty returns true if the buffer's logical size is 0
func (b *Buffer) Empty() bool { return b.size == 0 }

// Capacity returns the number of bytes the buffer can hold without obtaining more pages
func (b *Buffer) Capacity() int {
	if len(b.pages) == 0 {
		return 0
	}
	return len(b.pages) * memutils.SizeFromBits(b.pageBits)
}

// PageCount returns the number of pages currently held by the buffer
func (b *Buffer) PageCount() int { return len(b.pages) }

// Reserve grows the buffer's capacity to at least size bytes. Capacity never shrinks.
func (b *Buffer) Reserve(size int) error {
	if size <= b.Capacity() {
		return nil
	}

	maxBits := b.pool.PageSizeMaxBits()
	pageBits := memutils.Log2(memutils.BitCeil(size))
	if pageBits < b.pool.PageSizeMinBits() {
		pageBits = b.pool.PageSizeMinBits()
	}
	if pageBits > maxBits {
		pageBits = maxBits
	}

	if len(b.pages) == 0 || b.pageBits < pageBits {
		err := b.replaceSinglePage(pageBits)
		if err != nil {
			return err
		}
	}

	for b.Capacity() < size {
		handle, err := b.pool.Alloc(maxBits)
		if err != nil {
			return errors.Wrapf(err, "failed to grow page buffer to %d bytes", size)
		}
		b.pages = append(b.pages, handle)
	}

	memutils.DebugValidate(b)
	return nil
}

// replaceSinglePage swaps the buffer's only page for a larger one, carrying its contents over
func (b *Buffer) replaceSinglePage(pageBits uint8) error {
	memutils.DebugAssert(len(b.pages) <= 1, "only a single-page buffer can be reallocated")

	handle, err := b.pool.Alloc(pageBits)
	if err != nil {
		return errors.Wrapf(err, "failed to allocate a %d-byte page for page buffer", memutils.SizeFromBits(pageBits))
	}

	if len(b.pages) > 0 {
		copy(b.pool.Page(handle), b.pool.Page(b.pages[0])[:b.size])
		b.pool.Free(b.pages[0])
		b.pages[0] = handle
	} else {
		b.pages = append(b.pages, handle)
	}

	b.pageBits = pageBits
	return nil
}

// Resize sets the logical size of the buffer, growing its capacity if necessary. Bytes that
// become part of the buffer by growing it are not zeroed.
func (b *Buffer) Resize(size int) error {
	if size < 0 {
		return errors.Errorf("cannot resize page buffer to %d bytes", size)
	}

	err := b.Reserve(size)
	if err != nil {
		return err
	}

	b.size = size
	return nil
}

// Truncate shrinks the logical size to size bytes. It has no effect if the buffer is already
// that small.
func (b *Buffer) Truncate(size int) {
	if size >= 0 && size < b.size {
		b.size = size
	}
}

// Clear sets the logical size to 0 while keeping every page
func (b *Buffer) Clear() {
	b.size = 0
}

// Release returns every page to the pool and empties the buffer
func (b *Buffer) Release() {
	for _, handle := range b.pages {
		b.pool.Free(handle)
	}

	b.pages = nil
	b.pageBits = 0
	b.size = 0
}

// Append writes data at the end of the buffer
func (b *Buffer) Append(data []byte) error {
	return b.Write(b.size, data)
}

// Write copies data into the buffer at offset. Writing past the logical size grows the buffer
// first; offset itself may lie past the logical size, in which case the skipped bytes are
// left uninitialized.
func (b *Buffer) Write(offset int, data []byte) error {
	if offset < 0 {
		return errors.Errorf("cannot write to page buffer at offset %d", offset)
	}

	end := offset + len(data)
	if end > b.size {
		err := b.Resize(end)
		if err != nil {
			return err
		}
	}

	for len(data) > 0 {
		page := b.locate(offset)
		copied := copy(page, data)
		data = data[copied:]
		offset += copied
	}

	return nil
}

// Read copies bytes starting at offset into buf and returns the number of bytes copied.
// Reading is best-effort: when the requested range runs past the logical size, only the
// available bytes are copied, and 0 is returned if offset is at or past the end.
func (b *Buffer) Read(offset int, buf []byte) int {
	if offset < 0 || offset >= b.size {
		return 0
	}

	available := b.size - offset
	if len(buf) > available {
		buf = buf[:available]
	}

	read := 0
	for read < len(buf) {
		page := b.locate(offset + read)
		read += copy(buf[read:], page)
	}

	return read
}

// locate returns the remainder of the page holding the byte at offset, starting at that byte
func (b *Buffer) locate(offset int) []byte {
	pageIndex := offset >> b.pageBits
	pageOffset := offset & (memutils.SizeFromBits(b.pageBits) - 1)
	return b.pool.Page(b.pages[pageIndex])[pageOffset:]
}

// Validate performs internal consistency checks on the buffer
func (b *Buffer) Validate() error {
	if b.size < 0 || b.size > b.Capacity() {
		return errors.Errorf("page buffer has size %d but capacity %d", b.size, b.Capacity())
	}

	if len(b.pages) > 1 && b.pageBits != b.pool.PageSizeMaxBits() {
		return errors.Errorf("page buffer holds %d pages of 2^%d bytes, but only max-size pages may be chained", len(b.pages), b.pageBits)
	}

	for index, handle := range b.pages {
		if handle == pagepool.NoPage {
			return errors.Errorf("page buffer page %d is NoPage", index)
		}
		if b.pool.PageSizeBits(handle) != b.pageBits {
			return errors.Errorf("page buffer page %d is 2^%d bytes, expected 2^%d", index, b.pool.PageSizeBits(handle), b.pageBits)
		}
	}

	return nil
}
