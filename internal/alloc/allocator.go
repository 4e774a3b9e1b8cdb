// Package alloc implements the fixed-block allocator (L1) that every
// hypertree is built on: a byte-addressable dynamic region divided into
// equal-size slots, with freed slots linked through their own bytes into an
// intrusive free list, mirroring the pooled-buffer allocation style tradSys
// uses in its matching engine's order-pool (internal/matching/unified_engine.go)
// adapted here to operate over a caller-owned byte slice instead of Go
// values, since slots must survive raw serialization.
package alloc

import (
	"encoding/binary"

	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Region is the byte-addressable backing store a market or global account
// exposes to its allocator. Implementations own resizing (§6.1, Expand);
// the allocator itself never grows the slice, it only ever fails with
// ErrOutOfSpace when the region is full.
type Region interface {
	// Bytes returns the full backing slice. Its length must be a multiple
	// of the allocator's slot size.
	Bytes() []byte
}

// Allocator manages fixed-size slots within a Region's dynamic portion.
// freeHead and count are caller-owned fields (typically stored in the
// owning account's header) passed into each call, so the allocator itself
// holds no state beyond the region, the slot size and a logger.
type Allocator struct {
	region   Region
	slotSize uint32
	log      interfaces.Logger
}

// New constructs an Allocator over region, whose Bytes() must already be
// sized to a multiple of slotSize.
func New(region Region, slotSize uint32, log interfaces.Logger) *Allocator {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	return &Allocator{region: region, slotSize: slotSize, log: log}
}

// Capacity returns the number of slots the region currently has room for.
func (a *Allocator) Capacity() uint32 {
	return uint32(len(a.region.Bytes())) / a.slotSize
}

// Slot returns the byte range backing slot idx. Panics if idx is out of
// range for the current capacity; callers validate idx against header
// bounds before calling (Structural error otherwise, per §7).
func (a *Allocator) Slot(idx types.BlockIndex) []byte {
	off := uint64(idx) * uint64(a.slotSize)
	return a.region.Bytes()[off : off+uint64(a.slotSize)]
}

// freeListNext reads the next-pointer an empty slot stores in its own
// first 4 bytes.
func freeListNext(slot []byte) types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(slot[0:4]))
}

func setFreeListNext(slot []byte, next types.BlockIndex) {
	binary.LittleEndian.PutUint32(slot[0:4], uint32(next))
}

// Allocate pops a slot off the free list (given by freeHead), or, if the
// free list is empty, takes the next never-used slot up to count. It
// returns the new free-list head and count the caller must persist, along
// with the allocated index.
//
// Allocate never grows the region itself: when both the free list is
// empty and count has reached capacity, it returns ErrOutOfSpace so the
// caller can surface an Expand-and-retry (§7, Resource category).
func (a *Allocator) Allocate(freeHead types.BlockIndex, count uint32) (idx types.BlockIndex, newFreeHead types.BlockIndex, newCount uint32, err error) {
	if freeHead.Valid() {
		idx = freeHead
		next := freeListNext(a.Slot(idx))
		a.log.Debug("alloc.allocate.reuse", "slot", uint32(idx))
		return idx, next, count, nil
	}
	cap := a.Capacity()
	if count >= cap {
		return types.NilBlock, freeHead, count, clobErrors.New(clobErrors.ErrOutOfSpace, "dynamic region exhausted")
	}
	idx = types.BlockIndex(count)
	a.log.Debug("alloc.allocate.new", "slot", uint32(idx))
	return idx, freeHead, count + 1, nil
}

// Free pushes idx back onto the free list headed by freeHead, returning
// the new head the caller must persist. It does not clear the rest of the
// slot's bytes; callers zero payload fields themselves if they care about
// not leaking stale data to a future occupant's partial reads.
func (a *Allocator) Free(idx types.BlockIndex, freeHead types.BlockIndex) types.BlockIndex {
	setFreeListNext(a.Slot(idx), freeHead)
	a.log.Debug("alloc.free", "slot", uint32(idx))
	return idx
}

// Validate walks the free list starting at freeHead for at most capacity
// steps, returning an error if it cycles or runs off the end — a corrupt
// free list is a Structural error (§7), since it means two live slots
// could be allocated the same index.
func (a *Allocator) Validate(freeHead types.BlockIndex, count uint32) error {
	cap := a.Capacity()
	seen := make(map[types.BlockIndex]bool)
	cur := freeHead
	for cur.Valid() {
		if uint32(cur) >= count {
			return clobErrors.New(clobErrors.ErrAllocatorInconsistent, "free list references a slot beyond count")
		}
		if seen[cur] {
			return clobErrors.New(clobErrors.ErrAllocatorInconsistent, "free list contains a cycle")
		}
		seen[cur] = true
		if uint32(len(seen)) > cap {
			return clobErrors.New(clobErrors.ErrAllocatorInconsistent, "free list longer than capacity")
		}
		cur = freeListNext(a.Slot(cur))
	}
	return nil
}
