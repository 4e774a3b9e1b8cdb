package market

import (
	"github.com/merl-labs/clob/pkg/types"
)

// Region is the market account's dynamic byte region, holding one
// allocator and three trees' worth of 80-byte slots contiguously. It
// implements both alloc.Region and rbtree.Accessor directly since both
// interfaces reduce to "give me the bytes."
type Region struct {
	buf []byte
}

// NewRegion wraps buf (whose length must be a multiple of
// types.MarketSlotSize) as a Region.
func NewRegion(buf []byte) *Region { return &Region{buf: buf} }

// Bytes satisfies alloc.Region.
func (r *Region) Bytes() []byte { return r.buf }

// Slot satisfies rbtree.Accessor.
func (r *Region) Slot(idx types.BlockIndex) []byte {
	off := uint64(idx) * uint64(types.MarketSlotSize)
	return r.buf[off : off+uint64(types.MarketSlotSize)]
}

// Grow replaces the region's backing slice with newBuf (§6.1, Expand). It
// copies and zeroes nothing: the caller (Expand) passes a buffer whose
// prefix already holds the current region bytes, matching how a
// preallocated host-managed account buffer would be resized before the
// engine sees it.
func (r *Region) Grow(newBuf []byte) {
	r.buf = newBuf
}
