// Package global implements the cross-market global account (L6): a
// bounded-membership pool of traders whose collateral is shared across
// every market that accepts Global orders, with minimum-balance eviction
// when the pool is full and just-in-time settlement on fill.
package global

import (
	"encoding/binary"

	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// Header is the fixed 96-byte prefix of a global account (§3.2).
//
// Layout:
//
//	0  u8   discriminant
//	1  [3]  reserved
//	4  [32] mint
//	36 u32  trader tree root
//	40 u32  deposit tree root
//	44 u32  free list head
//	48 u32  slot count
//	52 u32  max traders
//	56 u32  member count
//	60 ..96 reserved
type Header struct {
	raw []byte
}

const (
	gOffDiscriminant = 0
	gOffMint         = 4
	gOffTraderRoot   = 36
	gOffDepositRoot  = 40
	gOffFreeHead     = 44
	gOffSlotCount    = 48
	gOffMaxTraders   = 52
	gOffMemberCount  = 56
)

func WrapHeader(raw []byte) (*Header, error) {
	if len(raw) != types.GlobalHeaderSize {
		return nil, clobErrors.Newf(clobErrors.ErrInvalidDiscriminant, "global header must be %d bytes, got %d", types.GlobalHeaderSize, len(raw))
	}
	return &Header{raw: raw}, nil
}

func (h *Header) Discriminant() types.Discriminant { return types.Discriminant(h.raw[gOffDiscriminant]) }
func (h *Header) SetDiscriminant(d types.Discriminant) { h.raw[gOffDiscriminant] = byte(d) }

func (h *Header) Mint() types.TraderKey {
	var k types.TraderKey
	copy(k[:], h.raw[gOffMint:gOffMint+32])
	return k
}
func (h *Header) SetMint(k types.TraderKey) { copy(h.raw[gOffMint:gOffMint+32], k[:]) }

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

func (h *Header) TraderRootRef() headerRootRef  { return headerRootRef{h.raw, gOffTraderRoot} }
func (h *Header) DepositRootRef() headerRootRef { return headerRootRef{h.raw, gOffDepositRoot} }

func (h *Header) FreeHead() types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(h.raw[gOffFreeHead:]))
}
func (h *Header) SetFreeHead(v types.BlockIndex) {
	binary.LittleEndian.PutUint32(h.raw[gOffFreeHead:], uint32(v))
}

func (h *Header) SlotCount() uint32     { return binary.LittleEndian.Uint32(h.raw[gOffSlotCount:]) }
func (h *Header) SetSlotCount(v uint32) { binary.LittleEndian.PutUint32(h.raw[gOffSlotCount:], v) }

func (h *Header) MaxTraders() uint32     { return binary.LittleEndian.Uint32(h.raw[gOffMaxTraders:]) }
func (h *Header) SetMaxTraders(v uint32) { binary.LittleEndian.PutUint32(h.raw[gOffMaxTraders:], v) }

func (h *Header) MemberCount() uint32     { return binary.LittleEndian.Uint32(h.raw[gOffMemberCount:]) }
func (h *Header) SetMemberCount(v uint32) { binary.LittleEndian.PutUint32(h.raw[gOffMemberCount:], v) }
