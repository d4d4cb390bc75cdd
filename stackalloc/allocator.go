package stackalloc

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pagekit/undo/memutils"
	"github.com/pagekit/undo/pagepool"
	"golang.org/x/exp/slog"
)

// ErrAllocationTooLarge is returned when an allocation cannot fit in the largest page the
// pool can hand out
var ErrAllocationTooLarge = errors.New("allocation is larger than the pool's maximum page size")

// Checkpoint is an opaque snapshot of an Allocator's cursor: the number of pages it held and
// the offset within the top page. Checkpoints taken later compare greater.
type Checkpoint uint64

func makeCheckpoint(pageCount int, offset int) Checkpoint {
	return Checkpoint(uint64(pageCount)<<32 | uint64(uint32(offset)))
}

// PageCount returns the number of pages the allocator held when the checkpoint was taken
func (c Checkpoint) PageCount() int { return int(uint64(c) >> 32) }

// Offset returns the offset within the top page when the checkpoint was taken
func (c Checkpoint) Offset() int { return int(uint32(c)) }

func (c Checkpoint) String() string {
	return fmt.Sprintf("Checkpoint(pages=%d, offset=%d)", c.PageCount(), c.Offset())
}

type allocation struct {
	page   int
	offset int
	size   int
}

// Allocator is a bump allocator over pages drawn from a pagepool.Pool. Memory is only
// reclaimed in batches, by restoring a Checkpoint taken earlier or by clearing the allocator.
//
// The first page is the pool's minimum page size and every following page is twice the size of
// the one before it, up to the pool's maximum page size, or larger if a single allocation
// requires it.
//
// The allocator hands out raw bytes and never runs any cleanup for values placed in them.
// Owners of placed values must release whatever those values refer to before restoring a
// checkpoint that covers them.
type Allocator struct {
	logger *slog.Logger
	pool   *pagepool.Pool

	pages       []pagepool.Handle
	offset      int
	allocations []allocation
}

// New creates an empty Allocator drawing pages from pool
func New(logger *slog.Logger, pool *pagepool.Pool) *Allocator {
	return &Allocator{
		logger: logger,
		pool:   pool,
	}
}

// PageCount returns the number of pages currently held
func (a *Allocator) PageCount() int { return len(a.pages) }

// Alloc hands out size bytes aligned to align, which must be a power of two. An align of 0 is
// treated as 1. The returned memory is not zeroed and stays valid until a checkpoint taken
// before this call is restored or the allocator is cleared.
func (a *Allocator) Alloc(size int, align uint) ([]byte, error) {
	if size < 0 {
		return nil, errors.Errorf("cannot allocate %d bytes", size)
	}
	if align == 0 {
		align = 1
	}
	err := memutils.CheckPow2(align, "align")
	if err != nil {
		return nil, err
	}

	required := size + memutils.DebugMargin
	if required > a.pool.PageSizeMax() {
		return nil, errors.Wrapf(ErrAllocationTooLarge, "requested %d bytes, but pages are at most %d bytes", size, a.pool.PageSizeMax())
	}

	offset, fits := a.fitTopPage(required, align)
	if !fits {
		err = a.addPage(required)
		if err != nil {
			return nil, err
		}

		offset, fits = a.fitTopPage(required, align)
		if !fits {
			return nil, errors.Wrapf(ErrAllocationTooLarge, "cannot align %d bytes to %d within a %d-byte page", size, align, a.topPageSize())
		}
	}

	page := a.pool.Page(a.pages[len(a.pages)-1])
	a.offset = offset + required
	a.allocations = append(a.allocations, allocation{
		page:   len(a.pages) - 1,
		offset: offset,
		size:   size,
	})

	memutils.WriteMagicValue(page, offset+size)
	return page[offset : offset+size : offset+size], nil
}

// fitTopPage returns the aligned offset an allocation of size bytes would start at in the
// top page, and whether it fits there
func (a *Allocator) fitTopPage(size int, align uint) (int, bool) {
	if len(a.pages) == 0 {
		return 0, false
	}

	page := a.pool.Page(a.pages[len(a.pages)-1])
	base := int(uintptr(unsafe.Pointer(unsafe.SliceData(page))))
	offset := memutils.AlignUp(base+a.offset, align) - base

	return offset, offset+size <= len(page)
}

func (a *Allocator) topPageSize() int {
	if len(a.pages) == 0 {
		return 0
	}
	return a.pool.PageSize(a.pages[len(a.pages)-1])
}

func (a *Allocator) addPage(size int) error {
	pageSize := a.pool.PageSizeMin()
	if len(a.pages) > 0 {
		pageSize = min(2*a.topPageSize(), a.pool.PageSizeMax())
	}
	pageSize = max(pageSize, memutils.BitCeil(size))

	handle, err := a.pool.Alloc(memutils.Log2(pageSize))
	if err != nil {
		return errors.Wrapf(err, "failed to obtain a %d-byte page for stack allocator", pageSize)
	}

	a.pages = append(a.pages, handle)
	a.offset = 0
	a.logger.Debug("Allocator::addPage", slog.Int("pageSize", pageSize), slog.Int("pageCount", len(a.pages)))
	return nil
}

// Checkpoint captures the allocator's current cursor
func (a *Allocator) Checkpoint() Checkpoint {
	return makeCheckpoint(len(a.pages), a.offset)
}

// Restore frees every allocation made since checkpoint was taken. Outstanding checkpoints must
// be restored in the reverse of the order they were taken in: restoring a checkpoint that is
// later than the allocator's current cursor is a programming error.
func (a *Allocator) Restore(checkpoint Checkpoint) {
	current := a.Checkpoint()
	memutils.DebugAssert(checkpoint <= current, fmt.Sprintf("restoring %s, which is later than the current %s", checkpoint, current))
	if checkpoint > current {
		return
	}

	for len(a.pages) > checkpoint.PageCount() {
		a.pool.Free(a.pages[len(a.pages)-1])
		a.pages = a.pages[:len(a.pages)-1]
	}
	a.offset = checkpoint.Offset()

	topPage := len(a.pages) - 1
	for len(a.allocations) > 0 {
		last := a.allocations[len(a.allocations)-1]
		if last.page < topPage || (last.page == topPage && last.offset < a.offset) {
			break
		}
		a.allocations = a.allocations[:len(a.allocations)-1]
	}

	memutils.DebugValidate(a)
}

// Clear frees every allocation and returns every page to the pool
func (a *Allocator) Clear() {
	a.logger.Debug("Allocator::Clear")
	a.Restore(makeCheckpoint(0, 0))
}

// CheckCorruption returns nil if the anti-corruption markers following every live allocation
// are intact. Markers are only written when memutils is built with the debug_mem_utils build
// tag; otherwise this method always succeeds.
func (a *Allocator) CheckCorruption() error {
	for _, alloc := range a.allocations {
		page := a.pool.Page(a.pages[alloc.page])
		if !memutils.ValidateMagicValue(page, alloc.offset+alloc.size) {
			return errors.Errorf("MEMORY CORRUPTION DETECTED AFTER ALLOCATION AT PAGE %d OFFSET %d!", alloc.page, alloc.offset)
		}
	}

	return nil
}

// Validate performs internal consistency checks on the allocator
func (a *Allocator) Validate() error {
	if len(a.pages) == 0 {
		if a.offset != 0 || len(a.allocations) > 0 {
			return errors.Errorf("allocator holds no pages but has offset %d and %d allocations", a.offset, len(a.allocations))
		}
		return nil
	}

	if a.offset < 0 || a.offset > a.topPageSize() {
		return errors.Errorf("allocator offset %d lies outside of its %d-byte top page", a.offset, a.topPageSize())
	}

	for index := 1; index < len(a.pages); index++ {
		if a.pool.PageSize(a.pages[index]) < a.pool.PageSize(a.pages[index-1]) {
			return errors.Errorf("allocator page %d is smaller than the page before it", index)
		}
	}

	prevPage, prevEnd := 0, 0
	for _, alloc := range a.allocations {
		if alloc.page >= len(a.pages) {
			return errors.Errorf("allocation refers to page %d, but the allocator holds %d pages", alloc.page, len(a.pages))
		}
		if alloc.page == prevPage && alloc.offset < prevEnd {
			return errors.Errorf("allocation at page %d offset %d overlaps the allocation before it", alloc.page, alloc.offset)
		}
		end := alloc.offset + alloc.size + memutils.DebugMargin
		if end > a.pool.PageSize(a.pages[alloc.page]) {
			return errors.Errorf("allocation at page %d offset %d runs past the end of its page", alloc.page, alloc.offset)
		}
		if alloc.page == len(a.pages)-1 && end > a.offset {
			return errors.Errorf("allocation at offset %d ends past the allocator offset %d", alloc.offset, a.offset)
		}
		prevPage, prevEnd = alloc.page, end
	}

	return nil
}

// AddStatistics sums the allocator's pages and live allocations into the provided
// memutils.Statistics object
func (a *Allocator) AddStatistics(stats *memutils.Statistics) {
	for _, handle := range a.pages {
		stats.AddPage(a.pool.PageSize(handle))
	}

	for _, alloc := range a.allocations {
		stats.AddAllocation(alloc.size)
	}
}

// PrintJson writes the allocator's page and allocation usage into the provided json object
func (a *Allocator) PrintJson(json jwriter.ObjectState) {
	var stats memutils.Statistics
	a.AddStatistics(&stats)

	json.Name("PageCount").Int(stats.PageCount)
	json.Name("PageBytes").Int(stats.PageBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("TopPageOffset").Int(a.offset)

	pages := json.Name("PageSizes").Array()
	for _, handle := range a.pages {
		pages.Int(a.pool.PageSize(handle))
	}
	pages.End()
}
