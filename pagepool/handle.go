package pagepool

import "fmt"

// Handle identifies a page handed out by a Pool. It is a virtual address made of the index of
// the leaf block the page lives in and the page's byte offset within that block, with the
// page's size class packed into the low bits. Those bits are always zero in the address
// itself because every page is aligned to at least the pool's minimum page size.
//
// Handles carry no pointers; they can only be resolved to memory through the Pool that issued
// them.
type Handle uint64

const (
	// NoPage is the zero Handle, which never refers to a page
	NoPage Handle = 0
)

func makeHandle(leafIndex int, offset int, sizeIndex uint8, maxBits uint8) Handle {
	address := uint64(leafIndex+1)<<maxBits | uint64(offset)
	return Handle(address | uint64(sizeIndex))
}

func (h Handle) address(tagMask uint64) uint64 {
	return uint64(h) &^ tagMask
}

func (h Handle) sizeIndex(tagMask uint64) uint8 {
	return uint8(uint64(h) & tagMask)
}

func (h Handle) String() string {
	if h == NoPage {
		return "NoPage"
	}
	return fmt.Sprintf("Handle(0x%x)", uint64(h))
}
