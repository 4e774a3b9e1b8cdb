package global

import (
	"bytes"
	"encoding/binary"

	"github.com/merl-labs/clob/pkg/types"
)

// GlobalTrader is the payload of a node in the trader-identity tree,
// keyed by TraderKey, used for membership lookup during AddTrader/Clean.
//
// Layout: 0 [32]u8 trader key, 32 u32 deposit index, 36 u32 joined slot,
// 40..48 reserved.
type GlobalTrader struct {
	Trader       types.TraderKey
	DepositIndex types.BlockIndex
	JoinedSlot   types.Slot
}

func EncodeGlobalTrader(payload []byte, t GlobalTrader) {
	copy(payload[0:32], t.Trader[:])
	binary.LittleEndian.PutUint32(payload[32:], uint32(t.DepositIndex))
	binary.LittleEndian.PutUint32(payload[36:], uint32(t.JoinedSlot))
}

func DecodeGlobalTrader(payload []byte) GlobalTrader {
	var t GlobalTrader
	copy(t.Trader[:], payload[0:32])
	t.DepositIndex = types.BlockIndex(binary.LittleEndian.Uint32(payload[32:]))
	t.JoinedSlot = types.Slot(binary.LittleEndian.Uint32(payload[36:]))
	return t
}

func traderComparator(a, b []byte) int { return bytes.Compare(a[0:32], b[0:32]) }

func traderKey(trader types.TraderKey) []byte {
	key := make([]byte, 32)
	copy(key, trader[:])
	return key
}

// GlobalDeposit is the payload of a node in the balance-ordered tree used
// for eviction candidate selection (§3.2).
//
// Layout: 0 [32]u8 trader key, 32 u64 balance, 40 u64 locked.
type GlobalDeposit struct {
	Trader  types.TraderKey
	Balance uint64
	Locked  uint64
}

func EncodeGlobalDeposit(payload []byte, d GlobalDeposit) {
	copy(payload[0:32], d.Trader[:])
	binary.LittleEndian.PutUint64(payload[32:], d.Balance)
	binary.LittleEndian.PutUint64(payload[40:], d.Locked)
}

func DecodeGlobalDeposit(payload []byte) GlobalDeposit {
	var d GlobalDeposit
	copy(d.Trader[:], payload[0:32])
	d.Balance = binary.LittleEndian.Uint64(payload[32:])
	d.Locked = binary.LittleEndian.Uint64(payload[40:])
	return d
}

// depositComparator orders the deposit tree by descending balance (ties
// broken by trader key) so that Min() is the richest member and Max() is
// the poorest — the eviction candidate when the pool is full (§3.2).
func depositComparator(a, b []byte) int {
	ba := binary.LittleEndian.Uint64(a[32:])
	bb := binary.LittleEndian.Uint64(b[32:])
	switch {
	case ba > bb:
		return -1
	case ba < bb:
		return 1
	default:
		return bytes.Compare(a[0:32], b[0:32])
	}
}
