package pagepool

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pagekit/undo/internal/utils"
	"github.com/pagekit/undo/memutils"
	"golang.org/x/exp/slog"
)

// Pool is a buddy-style pool of power-of-two pages. Pages of the largest size class are leaf
// blocks obtained from a PageSource; smaller pages are produced by splitting a larger page in
// half, handing out the lower half and keeping the upper half on the free list of its size
// class.
//
// Freed pages are pushed onto the free list of their size class and are never coalesced back
// into larger pages, nor returned to the PageSource before the pool is destroyed.
//
// A single pool may be shared by any number of buffers, stack allocators and histories.
// Unless the pool was created with CreateSynchronized, it must not be used from more than
// one goroutine at a time.
type Pool struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex
	source PageSource
	flags  CreateFlags

	minBits uint8
	maxBits uint8
	tagMask uint64

	leafBlocks [][]byte
	freePages  [MaxSizeClasses][]Handle
	livePages  [MaxSizeClasses]int
}

// PageSizeMinBits returns the base two logarithm of the smallest page size this pool hands out
func (p *Pool) PageSizeMinBits() uint8 { return p.minBits }

// PageSizeMaxBits returns the base two logarithm of the largest page size this pool hands out,
// which is the page size of the underlying PageSource
func (p *Pool) PageSizeMaxBits() uint8 { return p.maxBits }

// PageSizeMin returns the smallest page size in bytes this pool hands out
func (p *Pool) PageSizeMin() int { return memutils.SizeFromBits(p.minBits) }

// PageSizeMax returns the largest page size in bytes this pool hands out
func (p *Pool) PageSizeMax() int { return memutils.SizeFromBits(p.maxBits) }

// Flags returns the flags the pool was created with
func (p *Pool) Flags() CreateFlags { return p.flags }

// Alloc hands out a page of 2^sizeBits bytes. sizeBits must lie within
// [PageSizeMinBits, PageSizeMaxBits]. Pages are not zeroed: a recycled page holds whatever
// its previous owner left in it.
func (p *Pool) Alloc(sizeBits uint8) (Handle, error) {
	err := memutils.CheckRange(sizeBits, p.minBits, p.maxBits, "sizeBits")
	if err != nil {
		return NoPage, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	handle, err := p.allocAfterLock(sizeBits)
	if err != nil {
		return NoPage, err
	}

	p.livePages[sizeBits-p.minBits]++
	return handle, nil
}

func (p *Pool) allocAfterLock(sizeBits uint8) (Handle, error) {
	sizeIndex := sizeBits - p.minBits
	freeList := p.freePages[sizeIndex]
	if len(freeList) > 0 {
		handle := freeList[len(freeList)-1]
		p.freePages[sizeIndex] = freeList[:len(freeList)-1]
		return handle, nil
	}

	if sizeBits == p.maxBits {
		return p.allocLeafBlock()
	}

	parent, err := p.allocAfterLock(sizeBits + 1)
	if err != nil {
		return NoPage, err
	}

	leafIndex, offset := p.locate(parent)
	upper := makeHandle(leafIndex, offset+memutils.SizeFromBits(sizeBits), sizeIndex, p.maxBits)
	p.freePages[sizeIndex] = append(p.freePages[sizeIndex], upper)

	return makeHandle(leafIndex, offset, sizeIndex, p.maxBits), nil
}

func (p *Pool) allocLeafBlock() (Handle, error) {
	block, err := p.source.AllocPage()
	if err != nil {
		return NoPage, errors.Wrap(err, "failed to obtain a leaf block from the page source")
	}
	if len(block) != p.PageSizeMax() {
		return NoPage, errors.Errorf("page source returned a block of %d bytes, expected %d", len(block), p.PageSizeMax())
	}

	p.leafBlocks = append(p.leafBlocks, block)
	p.logger.Debug("Pool::allocLeafBlock", slog.Int("leafBlocks", len(p.leafBlocks)))

	return makeHandle(len(p.leafBlocks)-1, 0, p.maxBits-p.minBits, p.maxBits), nil
}

// Free returns a page to the free list of its size class. The page must have been handed out
// by this pool and must not be freed twice.
func (p *Pool) Free(handle Handle) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	memutils.DebugCheck(func() error { return p.checkHandle(handle) })

	sizeIndex := handle.sizeIndex(p.tagMask)
	p.freePages[sizeIndex] = append(p.freePages[sizeIndex], handle)
	p.livePages[sizeIndex]--
}

// Page returns the memory of the page identified by handle. The returned slice is exactly
// PageSize(handle) bytes long and stays valid until the pool is destroyed.
func (p *Pool) Page(handle Handle) []byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	memutils.DebugCheck(func() error { return p.checkHandle(handle) })

	leafIndex, offset := p.locate(handle)
	size := p.pageSize(handle)
	return p.leafBlocks[leafIndex][offset : offset+size : offset+size]
}

// PageSizeBits returns the base two logarithm of the size of the page identified by handle
func (p *Pool) PageSizeBits(handle Handle) uint8 {
	return p.minBits + handle.sizeIndex(p.tagMask)
}

// PageSize returns the size in bytes of the page identified by handle
func (p *Pool) PageSize(handle Handle) int {
	return p.pageSize(handle)
}

func (p *Pool) pageSize(handle Handle) int {
	return memutils.SizeFromBits(p.minBits + handle.sizeIndex(p.tagMask))
}

func (p *Pool) locate(handle Handle) (leafIndex int, offset int) {
	address := handle.address(p.tagMask)
	leafIndex = int(address>>p.maxBits) - 1
	offset = int(address & uint64(p.PageSizeMax()-1))
	return leafIndex, offset
}

func (p *Pool) checkHandle(handle Handle) error {
	if handle == NoPage {
		return errors.New("NoPage is not a valid page handle")
	}

	sizeIndex := handle.sizeIndex(p.tagMask)
	if int(sizeIndex) > int(p.maxBits-p.minBits) {
		return errors.Errorf("%s has an invalid size class index %d", handle, sizeIndex)
	}

	leafIndex, offset := p.locate(handle)
	if leafIndex < 0 || leafIndex >= len(p.leafBlocks) {
		return errors.Errorf("%s refers to leaf block %d, but the pool only has %d", handle, leafIndex, len(p.leafBlocks))
	}

	size := p.pageSize(handle)
	if offset%size != 0 {
		return errors.Errorf("%s has offset %d, which is not aligned to its page size %d", handle, offset, size)
	}

	return nil
}

// Validate performs internal consistency checks on the pool: every free page must be a valid
// page that appears on exactly one free list, and the live and free pages together must account
// for every byte of every leaf block.
func (p *Pool) Validate() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	seen := swiss.NewMap[uint64, struct{}](0)
	accountedBytes := 0

	for sizeIndex := 0; sizeIndex <= int(p.maxBits-p.minBits); sizeIndex++ {
		pageSize := memutils.SizeFromBits(p.minBits + uint8(sizeIndex))

		if p.livePages[sizeIndex] < 0 {
			return errors.Errorf("size class 2^%d has %d live pages: more pages were freed than allocated", p.minBits+uint8(sizeIndex), p.livePages[sizeIndex])
		}

		for _, handle := range p.freePages[sizeIndex] {
			err := p.checkHandle(handle)
			if err != nil {
				return err
			}

			if int(handle.sizeIndex(p.tagMask)) != sizeIndex {
				return errors.Errorf("%s is on the free list for 2^%d-byte pages but belongs to another size class", handle, p.minBits+uint8(sizeIndex))
			}

			address := handle.address(p.tagMask)
			if _, duplicate := seen.Get(address); duplicate {
				return errors.Errorf("%s appears more than once in the free lists", handle)
			}
			seen.Put(address, struct{}{})
		}

		accountedBytes += (len(p.freePages[sizeIndex]) + p.livePages[sizeIndex]) * pageSize
	}

	totalBytes := len(p.leafBlocks) * p.PageSizeMax()
	if accountedBytes != totalBytes {
		return errors.Errorf("live and free pages account for %d bytes, but the pool owns %d bytes of leaf blocks", accountedBytes, totalBytes)
	}

	return nil
}

// AddStatistics sums this pool's page usage into the provided memutils.Statistics object
func (p *Pool) AddStatistics(stats *memutils.Statistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats.LeafBlockCount += len(p.leafBlocks)
	stats.LeafBlockBytes += len(p.leafBlocks) * p.PageSizeMax()

	for sizeIndex := 0; sizeIndex <= int(p.maxBits-p.minBits); sizeIndex++ {
		pageSize := memutils.SizeFromBits(p.minBits + uint8(sizeIndex))
		stats.PageCount += p.livePages[sizeIndex]
		stats.PageBytes += p.livePages[sizeIndex] * pageSize
	}
}

// AddDetailedStatistics sums this pool's page usage and free list contents into the provided
// memutils.DetailedStatistics object
func (p *Pool) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats.LeafBlockCount += len(p.leafBlocks)
	stats.LeafBlockBytes += len(p.leafBlocks) * p.PageSizeMax()

	for sizeIndex := 0; sizeIndex <= int(p.maxBits-p.minBits); sizeIndex++ {
		pageSize := memutils.SizeFromBits(p.minBits + uint8(sizeIndex))
		for i := 0; i < p.livePages[sizeIndex]; i++ {
			stats.AddPage(pageSize)
		}
		for range p.freePages[sizeIndex] {
			stats.AddFreePage(pageSize)
		}
	}
}

// BuildStatsString returns a json document describing the pool's page usage. When detailed is
// true, a per-size-class breakdown is included.
func (p *Pool) BuildStatsString(detailed bool) string {
	var stats memutils.DetailedStatistics
	stats.Clear()
	p.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("PageSizeMin").Int(p.PageSizeMin())
	obj.Name("PageSizeMax").Int(p.PageSizeMax())
	obj.Name("Flags").String(p.flags.String())

	totalObj := obj.Name("Total").Object()
	totalObj.Name("LeafBlockCount").Int(stats.LeafBlockCount)
	totalObj.Name("LeafBlockBytes").Int(stats.LeafBlockBytes)
	totalObj.Name("PageCount").Int(stats.PageCount)
	totalObj.Name("PageBytes").Int(stats.PageBytes)
	totalObj.Name("FreePageCount").Int(stats.FreePageCount)
	totalObj.Name("FreePageBytes").Int(stats.FreePageBytes)
	totalObj.End()

	if detailed {
		p.printSizeClasses(&obj)
	}

	obj.End()
	return string(writer.Bytes())
}

func (p *Pool) printSizeClasses(json *jwriter.ObjectState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	classes := json.Name("SizeClasses").Array()
	defer classes.End()

	for sizeIndex := 0; sizeIndex <= int(p.maxBits-p.minBits); sizeIndex++ {
		classObj := classes.Object()
		classObj.Name("PageSize").Int(memutils.SizeFromBits(p.minBits + uint8(sizeIndex)))
		classObj.Name("LivePages").Int(p.livePages[sizeIndex])
		classObj.Name("FreePages").Int(len(p.freePages[sizeIndex]))
		classObj.End()
	}
}

// Destroy returns every leaf block to the page source. Pages that are still in use become
// invalid; they are logged as unreleased, but do not prevent destruction.
func (p *Pool) Destroy() error {
	p.logger.Debug("Pool::Destroy")

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for sizeIndex := 0; sizeIndex <= int(p.maxBits-p.minBits); sizeIndex++ {
		if p.livePages[sizeIndex] > 0 {
			p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED PAGES] pool destroyed with pages still in use",
				slog.Int("pageSize", memutils.SizeFromBits(p.minBits+uint8(sizeIndex))),
				slog.Int("count", p.livePages[sizeIndex]),
			)
		}
	}

	var err error
	for _, block := range p.leafBlocks {
		err = errors.CombineErrors(err, p.source.FreePage(block))
	}

	p.leafBlocks = nil
	for sizeIndex := range p.freePages {
		p.freePages[sizeIndex] = nil
		p.livePages[sizeIndex] = 0
	}

	return err
}
