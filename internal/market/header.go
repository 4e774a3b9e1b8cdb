// Package market implements the market account (L3): a fixed header plus a
// dynamic region of 80-byte slots shared by three red-black trees (bids,
// asks, seats) and one allocator, following the same "fixed header + typed
// dynamic region" account shape the teacher uses for its own domain
// aggregates (pkg/types/core_types.go groups a stable header with
// growable child collections).
package market

import (
	"encoding/binary"
	"fmt"

	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

func formatSemver(major, minor, patch uint16) string {
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// Header is the fixed 256-byte prefix of a market account (§6.2).
//
// Layout (little-endian):
//
//	0   u8      discriminant
//	1   [3]u8   reserved
//	4   u16x3   format version (major, minor, patch)
//	10  [2]u8   reserved
//	12  [32]u8  base mint
//	44  [32]u8  quote mint
//	76  u32     bids root
//	80  u32     asks root
//	84  u32     seats root
//	88  u32     free list head
//	92  u32     slot count (high-water mark, not live-node count)
//	96  u64     next order sequence
//	104 u32     cached best bid mantissa
//	108 i8+pad3 cached best bid exponent
//	112 u32     cached best ask mantissa
//	116 i8+pad3 cached best ask exponent
//	120 ..256   reserved
type Header struct {
	raw []byte
}

const (
	offDiscriminant  = 0
	offFormatVersion = 4
	offBaseMint      = 12
	offQuoteMint     = 44
	offBidsRoot      = 76
	offAsksRoot      = 80
	offSeatsRoot     = 84
	offFreeHead      = 88
	offSlotCount     = 92
	offNextOrderSeq  = 96
	offBestBidMant   = 104
	offBestBidExp    = 108
	offBestAskMant   = 112
	offBestAskExp    = 116
)

// WrapHeader views raw (which must be exactly types.MarketHeaderSize bytes)
// as a Header.
func WrapHeader(raw []byte) (*Header, error) {
	if len(raw) != types.MarketHeaderSize {
		return nil, clobErrors.Newf(clobErrors.ErrInvalidDiscriminant, "market header must be %d bytes, got %d", types.MarketHeaderSize, len(raw))
	}
	return &Header{raw: raw}, nil
}

func (h *Header) Discriminant() types.Discriminant { return types.Discriminant(h.raw[offDiscriminant]) }
func (h *Header) SetDiscriminant(d types.Discriminant) { h.raw[offDiscriminant] = byte(d) }

// FormatVersion returns the stamped on-disk format version as "major.minor.patch".
func (h *Header) FormatVersion() string {
	maj := binary.LittleEndian.Uint16(h.raw[offFormatVersion:])
	min := binary.LittleEndian.Uint16(h.raw[offFormatVersion+2:])
	pat := binary.LittleEndian.Uint16(h.raw[offFormatVersion+4:])
	return formatSemver(maj, min, pat)
}

// SetFormatVersion stamps the engine's current format version.
func (h *Header) SetFormatVersion(major, minor, patch uint16) {
	binary.LittleEndian.PutUint16(h.raw[offFormatVersion:], major)
	binary.LittleEndian.PutUint16(h.raw[offFormatVersion+2:], minor)
	binary.LittleEndian.PutUint16(h.raw[offFormatVersion+4:], patch)
}

func (h *Header) BaseMint() types.TraderKey {
	var k types.TraderKey
	copy(k[:], h.raw[offBaseMint:offBaseMint+32])
	return k
}
func (h *Header) SetBaseMint(k types.TraderKey) { copy(h.raw[offBaseMint:offBaseMint+32], k[:]) }

func (h *Header) QuoteMint() types.TraderKey {
	var k types.TraderKey
	copy(k[:], h.raw[offQuoteMint:offQuoteMint+32])
	return k
}
func (h *Header) SetQuoteMint(k types.TraderKey) { copy(h.raw[offQuoteMint:offQuoteMint+32], k[:]) }

func (h *Header) BidsRoot() types.BlockIndex  { return h.BidsRootRef().Get() }
func (h *Header) AsksRoot() types.BlockIndex  { return h.AsksRootRef().Get() }
func (h *Header) SeatsRoot() types.BlockIndex { return h.SeatsRootRef().Get() }

// headerRootRef is a rbtree.RootRef backed by one 4-byte field inside the
// header's byte slice, so tree mutations persist immediately with no
// separate sync step.
type headerRootRef struct {
	raw []byte
	off int
}

func (r headerRootRef) Get() types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(r.raw[r.off:]))
}
func (r headerRootRef) Set(v types.BlockIndex) {
	binary.LittleEndian.PutUint32(r.raw[r.off:], uint32(v))
}

// BidsRootRef, AsksRootRef and SeatsRootRef expose the header's root
// fields as rbtree.RootRef for internal/rbtree.New.
func (h *Header) BidsRootRef() headerRootRef  { return headerRootRef{h.raw, offBidsRoot} }
func (h *Header) AsksRootRef() headerRootRef  { return headerRootRef{h.raw, offAsksRoot} }
func (h *Header) SeatsRootRef() headerRootRef { return headerRootRef{h.raw, offSeatsRoot} }

func (h *Header) FreeHead() types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(h.raw[offFreeHead:]))
}
func (h *Header) SetFreeHead(v types.BlockIndex) { binary.LittleEndian.PutUint32(h.raw[offFreeHead:], uint32(v)) }

func (h *Header) SlotCount() uint32 { return binary.LittleEndian.Uint32(h.raw[offSlotCount:]) }
func (h *Header) SetSlotCount(v uint32) { binary.LittleEndian.PutUint32(h.raw[offSlotCount:], v) }

func (h *Header) NextOrderSeq() types.OrderSeq {
	return types.OrderSeq(binary.LittleEndian.Uint64(h.raw[offNextOrderSeq:]))
}
func (h *Header) SetNextOrderSeq(v types.OrderSeq) {
	binary.LittleEndian.PutUint64(h.raw[offNextOrderSeq:], uint64(v))
}

// TakeOrderSeq returns the next order sequence number and advances it.
func (h *Header) TakeOrderSeq() types.OrderSeq {
	seq := h.NextOrderSeq()
	h.SetNextOrderSeq(seq + 1)
	return seq
}

func (h *Header) SetBestBid(p types.Price) {
	binary.LittleEndian.PutUint32(h.raw[offBestBidMant:], p.Mantissa)
	h.raw[offBestBidExp] = byte(p.Exponent)
}
func (h *Header) BestBid() types.Price {
	return types.Price{
		Mantissa: binary.LittleEndian.Uint32(h.raw[offBestBidMant:]),
		Exponent: int8(h.raw[offBestBidExp]),
	}
}
func (h *Header) SetBestAsk(p types.Price) {
	binary.LittleEndian.PutUint32(h.raw[offBestAskMant:], p.Mantissa)
	h.raw[offBestAskExp] = byte(p.Exponent)
}
func (h *Header) BestAsk() types.Price {
	return types.Price{
		Mantissa: binary.LittleEndian.Uint32(h.raw[offBestAskMant:]),
		Exponent: int8(h.raw[offBestAskExp]),
	}
}
