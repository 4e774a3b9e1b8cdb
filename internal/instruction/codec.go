// Package instruction decodes the parameter payloads of the wire opcodes
// (§6.1) into typed params and dispatches each operation to the layer
// that implements it, emitting
// domain events for the audit/indexer bus. This mirrors the teacher's
// own instruction-dispatch convention
// (internal/matching/unified_engine.go's opcode switch feeding into
// per-operation handlers) generalized to this protocol's little-endian
// wire codec and validator-tagged param structs.
package instruction

import (
	"encoding/binary"

	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// DecodeDeposit/DecodeWithdraw share a 13-byte layout:
// amount u64 | seatHint u32 | hasSeatHint u8.
func decodeSeatScopedAmount(payload []byte) (amount uint64, hint types.BlockIndex, hasHint bool, err error) {
	if len(payload) < 13 {
		return 0, 0, false, clobErrors.New(clobErrors.ErrInvalidInput, "truncated deposit/withdraw payload")
	}
	amount = binary.LittleEndian.Uint64(payload[0:])
	hint = types.BlockIndex(binary.LittleEndian.Uint32(payload[8:]))
	hasHint = payload[12] != 0
	return amount, hint, hasHint, nil
}

func DecodeDepositParams(payload []byte) (types.DepositParams, error) {
	amount, hint, hasHint, err := decodeSeatScopedAmount(payload)
	if err != nil {
		return types.DepositParams{}, err
	}
	return types.DepositParams{Amount: amount, SeatHint: hint, HasSeatHint: hasHint}, nil
}

func DecodeWithdrawParams(payload []byte) (types.WithdrawParams, error) {
	amount, hint, hasHint, err := decodeSeatScopedAmount(payload)
	if err != nil {
		return types.WithdrawParams{}, err
	}
	return types.WithdrawParams{Amount: amount, SeatHint: hint, HasSeatHint: hasHint}, nil
}

// placeOrderWireSize is PlaceOrderParams' fixed 21-byte encoding:
// baseAtoms u64 | priceMantissa u32 | priceExponent i8 | isBid u8 |
// lastValidSlot u32 | orderType u8 | reverseSpreadBps u16.
const placeOrderWireSize = 21

func DecodePlaceOrderParams(payload []byte) (types.PlaceOrderParams, int, error) {
	if len(payload) < placeOrderWireSize {
		return types.PlaceOrderParams{}, 0, clobErrors.New(clobErrors.ErrInvalidInput, "truncated place-order payload")
	}
	p := types.PlaceOrderParams{
		BaseAtoms:     binary.LittleEndian.Uint64(payload[0:]),
		PriceMantissa: binary.LittleEndian.Uint32(payload[8:]),
		PriceExponent: int8(payload[12]),
		IsBid:         payload[13] != 0,
		LastValidSlot: binary.LittleEndian.Uint32(payload[14:]),
		OrderType:     types.OrderType(payload[18]),
	}
	p.ReverseSpreadBps = binary.LittleEndian.Uint16(payload[19:])
	return p, placeOrderWireSize, nil
}

// cancelWireSize is CancelParams' fixed 13-byte encoding:
// orderSeq u64 | hint u32 | hasHint u8.
const cancelWireSize = 13

func DecodeCancelParams(payload []byte) (types.CancelParams, int, error) {
	if len(payload) < cancelWireSize {
		return types.CancelParams{}, 0, clobErrors.New(clobErrors.ErrInvalidInput, "truncated cancel payload")
	}
	return types.CancelParams{
		OrderSeq: types.OrderSeq(binary.LittleEndian.Uint64(payload[0:])),
		Hint:     types.BlockIndex(binary.LittleEndian.Uint32(payload[8:])),
		HasHint:  payload[12] != 0,
	}, cancelWireSize, nil
}

// DecodeBatchUpdateParams reads: seatHint u32 | hasSeatHint u8 |
// numCancels u16 | cancels... | numOrders u16 | orders...
func DecodeBatchUpdateParams(payload []byte) (types.BatchUpdateParams, error) {
	if len(payload) < 7 {
		return types.BatchUpdateParams{}, clobErrors.New(clobErrors.ErrInvalidInput, "truncated batch-update header")
	}
	out := types.BatchUpdateParams{
		SeatHint:    types.BlockIndex(binary.LittleEndian.Uint32(payload[0:])),
		HasSeatHint: payload[4] != 0,
	}
	off := 5
	numCancels := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2
	for i := 0; i < numCancels; i++ {
		c, n, err := DecodeCancelParams(payload[off:])
		if err != nil {
			return types.BatchUpdateParams{}, err
		}
		out.Cancels = append(out.Cancels, c)
		off += n
	}
	if len(payload) < off+2 {
		return types.BatchUpdateParams{}, clobErrors.New(clobErrors.ErrInvalidInput, "truncated batch-update order count")
	}
	numOrders := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2
	for i := 0; i < numOrders; i++ {
		o, n, err := DecodePlaceOrderParams(payload[off:])
		if err != nil {
			return types.BatchUpdateParams{}, err
		}
		out.Orders = append(out.Orders, o)
		off += n
	}
	return out, nil
}

// globalAmountWireSize is GlobalDepositParams/GlobalWithdrawParams'
// 8-byte encoding: amount u64.
const globalAmountWireSize = 8

func DecodeGlobalDepositParams(payload []byte) (types.GlobalDepositParams, error) {
	if len(payload) < globalAmountWireSize {
		return types.GlobalDepositParams{}, clobErrors.New(clobErrors.ErrInvalidInput, "truncated global-deposit payload")
	}
	return types.GlobalDepositParams{Amount: binary.LittleEndian.Uint64(payload[0:])}, nil
}

func DecodeGlobalWithdrawParams(payload []byte) (types.GlobalWithdrawParams, error) {
	if len(payload) < globalAmountWireSize {
		return types.GlobalWithdrawParams{}, clobErrors.New(clobErrors.ErrInvalidInput, "truncated global-withdraw payload")
	}
	return types.GlobalWithdrawParams{Amount: binary.LittleEndian.Uint64(payload[0:])}, nil
}

// swapWireSize is SwapParams' 18-byte encoding: inAtoms u64 | outAtoms u64
// | isBaseIn u8 | isExactIn u8.
const swapWireSize = 18

func DecodeSwapParams(payload []byte) (types.SwapParams, error) {
	if len(payload) < swapWireSize {
		return types.SwapParams{}, clobErrors.New(clobErrors.ErrInvalidInput, "truncated swap payload")
	}
	return types.SwapParams{
		InAtoms:   binary.LittleEndian.Uint64(payload[0:]),
		OutAtoms:  binary.LittleEndian.Uint64(payload[8:]),
		IsBaseIn:  payload[16] != 0,
		IsExactIn: payload[17] != 0,
	}, nil
}
