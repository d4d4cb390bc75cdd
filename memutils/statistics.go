package memutils

import "math"

// Statistics summarizes page usage of a pool or of one of its consumers. Leaf blocks are
// the raw blocks obtained from a page source; pages are the power-of-two pages handed
// out of them; allocations are the individual requests carved out of pages.
type Statistics struct {
	LeafBlockCount  int
	LeafBlockBytes  int
	PageCount       int
	PageBytes       int
	AllocationCount int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.LeafBlockCount = 0
	s.LeafBlockBytes = 0
	s.PageCount = 0
	s.PageBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.LeafBlockCount += other.LeafBlockCount
	s.LeafBlockBytes += other.LeafBlockBytes
	s.PageCount += other.PageCount
	s.PageBytes += other.PageBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
}

// AddPage records a live page of the provided size
func (s *Statistics) AddPage(size int) {
	s.PageCount++
	s.PageBytes += size
}

// AddAllocation records a live allocation of the provided size
func (s *Statistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size
}

// DetailedStatistics extends Statistics with the state of a pool's free lists
type DetailedStatistics struct {
	Statistics
	FreePageCount   int
	FreePageBytes   int
	PageSizeMin     int
	PageSizeMax     int
	FreePageSizeMin int
	FreePageSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreePageCount = 0
	s.FreePageBytes = 0
	s.PageSizeMin = math.MaxInt
	s.PageSizeMax = 0
	s.FreePageSizeMin = math.MaxInt
	s.FreePageSizeMax = 0
}

// AddPage records a live page of the provided size
func (s *DetailedStatistics) AddPage(size int) {
	s.Statistics.AddPage(size)

	if size < s.PageSizeMin {
		s.PageSizeMin = size
	}

	if size > s.PageSizeMax {
		s.PageSizeMax = size
	}
}

// AddFreePage records a page of the provided size sitting on a free list
func (s *DetailedStatistics) AddFreePage(size int) {
	s.FreePageCount++
	s.FreePageBytes += size

	if size < s.FreePageSizeMin {
		s.FreePageSizeMin = size
	}

	if size > s.FreePageSizeMax {
		s.FreePageSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreePageCount += other.FreePageCount
	s.FreePageBytes += other.FreePageBytes

	if other.PageSizeMin < s.PageSizeMin {
		s.PageSizeMin = other.PageSizeMin
	}

	if other.PageSizeMax > s.PageSizeMax {
		s.PageSizeMax = other.PageSizeMax
	}

	if other.FreePageSizeMin < s.FreePageSizeMin {
		s.FreePageSizeMin = other.FreePageSizeMin
	}

	if other.FreePageSizeMax > s.FreePageSizeMax {
		s.FreePageSizeMax = other.FreePageSizeMax
	}
}
