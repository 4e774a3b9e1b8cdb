package market

import (
	"bytes"
	"encoding/binary"

	"github.com/merl-labs/clob/pkg/types"
)

// RestingOrder is the payload of a node in the bids or asks tree (§4.1).
// It occupies the 64-byte payload region following a slot's tree header.
//
// Layout:
//
//	0  u64  order sequence
//	8  u32  seat index (into the seats tree)
//	12 u32  price mantissa
//	16 i8   price exponent
//	17 u8   side
//	18 u8   order type
//	19 u8   reserved
//	20 u64  base atoms remaining
//	28 u32  last valid slot (0 = no expiry)
//	32 u16  reverse spread bps
//	34 ..64 reserved
type RestingOrder struct {
	OrderSeq         types.OrderSeq
	SeatIndex        types.BlockIndex
	Price            types.Price
	Side             types.Side
	OrderType        types.OrderType
	BaseRemaining    types.BaseAtoms
	LastValidSlot    types.Slot
	ReverseSpreadBps uint16
}

func EncodeRestingOrder(payload []byte, o RestingOrder) {
	binary.LittleEndian.PutUint64(payload[0:], uint64(o.OrderSeq))
	binary.LittleEndian.PutUint32(payload[8:], uint32(o.SeatIndex))
	binary.LittleEndian.PutUint32(payload[12:], o.Price.Mantissa)
	payload[16] = byte(o.Price.Exponent)
	payload[17] = byte(o.Side)
	payload[18] = byte(o.OrderType)
	binary.LittleEndian.PutUint64(payload[20:], uint64(o.BaseRemaining))
	binary.LittleEndian.PutUint32(payload[28:], uint32(o.LastValidSlot))
	binary.LittleEndian.PutUint16(payload[32:], o.ReverseSpreadBps)
}

func DecodeRestingOrder(payload []byte) RestingOrder {
	return RestingOrder{
		OrderSeq:  types.OrderSeq(binary.LittleEndian.Uint64(payload[0:])),
		SeatIndex: types.BlockIndex(binary.LittleEndian.Uint32(payload[8:])),
		Price: types.Price{
			Mantissa: binary.LittleEndian.Uint32(payload[12:]),
			Exponent: int8(payload[16]),
		},
		Side:             types.Side(payload[17]),
		OrderType:        types.OrderType(payload[18]),
		BaseRemaining:    types.BaseAtoms(binary.LittleEndian.Uint64(payload[20:])),
		LastValidSlot:    types.Slot(binary.LittleEndian.Uint32(payload[28:])),
		ReverseSpreadBps: binary.LittleEndian.Uint16(payload[32:]),
	}
}

// SetBaseRemaining patches a resting order's remaining size in place,
// without touching any other field (used after a partial fill).
func SetBaseRemaining(payload []byte, v types.BaseAtoms) {
	binary.LittleEndian.PutUint64(payload[20:], uint64(v))
}

// bidComparator orders bids ascending by price (so the highest bid is the
// tree's maximum), then descending by sequence so the oldest order at a
// price level is the tree's maximum
// (§4.2: bids' "best" is the rightmost node).
func bidComparator(a, b []byte) int {
	pa := DecodeRestingOrder(a).Price
	pb := DecodeRestingOrder(b).Price
	if c := pa.Compare(pb); c != 0 {
		return c
	}
	sa := binary.LittleEndian.Uint64(a[0:])
	sb := binary.LittleEndian.Uint64(b[0:])
	switch {
	case sa > sb:
		return -1
	case sa < sb:
		return 1
	default:
		return 0
	}
}

// askComparator orders asks ascending by price, then ascending by
// sequence so the oldest order at a price level is the tree's minimum
// (§4.2: asks' "best" is the leftmost node).
func askComparator(a, b []byte) int {
	pa := DecodeRestingOrder(a).Price
	pb := DecodeRestingOrder(b).Price
	if c := pa.Compare(pb); c != 0 {
		return c
	}
	sa := binary.LittleEndian.Uint64(a[0:])
	sb := binary.LittleEndian.Uint64(b[0:])
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// ClaimedSeat is the payload of a node in the seats tree, keyed by
// TraderKey (§3.1). It fills the full 64-byte payload region.
//
// Layout:
//
//	0  [32]u8 trader key
//	32 u64    base available (withdrawable)
//	40 u64    quote available (withdrawable)
//	48 u64    base locked (backing resting asks)
//	56 u64    quote locked (backing resting bids)
type ClaimedSeat struct {
	Trader        types.TraderKey
	BaseAvailable types.BaseAtoms
	QuoteAvailable types.QuoteAtoms
	BaseLocked    types.BaseAtoms
	QuoteLocked   types.QuoteAtoms
}

func EncodeClaimedSeat(payload []byte, s ClaimedSeat) {
	copy(payload[0:32], s.Trader[:])
	binary.LittleEndian.PutUint64(payload[32:], uint64(s.BaseAvailable))
	binary.LittleEndian.PutUint64(payload[40:], uint64(s.QuoteAvailable))
	binary.LittleEndian.PutUint64(payload[48:], uint64(s.BaseLocked))
	binary.LittleEndian.PutUint64(payload[56:], uint64(s.QuoteLocked))
}

func DecodeClaimedSeat(payload []byte) ClaimedSeat {
	var s ClaimedSeat
	copy(s.Trader[:], payload[0:32])
	s.BaseAvailable = types.BaseAtoms(binary.LittleEndian.Uint64(payload[32:]))
	s.QuoteAvailable = types.QuoteAtoms(binary.LittleEndian.Uint64(payload[40:]))
	s.BaseLocked = types.BaseAtoms(binary.LittleEndian.Uint64(payload[48:]))
	s.QuoteLocked = types.QuoteAtoms(binary.LittleEndian.Uint64(payload[56:]))
	return s
}

func seatComparator(a, b []byte) int {
	return bytes.Compare(a[0:32], b[0:32])
}

// seatKey builds a lookup key for rbtree.Tree.Lookup over the seats tree:
// a trader key padded to the seat payload's comparator width.
func seatKey(trader types.TraderKey) []byte {
	key := make([]byte, 32)
	copy(key, trader[:])
	return key
}
