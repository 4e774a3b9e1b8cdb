package types

// Opcode is the single-byte instruction discriminant (§6.1).
type Opcode uint8

const (
	OpCreateMarket Opcode = iota
	OpClaimSeat
	OpDeposit
	OpWithdraw
	OpSwap
	OpExpand
	OpBatchUpdate
	OpGlobalCreate
	OpGlobalAddTrader
	OpGlobalDeposit
	OpGlobalWithdraw
	OpGlobalEvict
	OpGlobalClean
	OpSwapV2
)

// DepositParams / WithdrawParams share a shape (§6.1, opcodes 2 and 3).
type DepositParams struct {
	Amount  uint64      `validate:"required"`
	SeatHint BlockIndex `validate:"-"`
	HasSeatHint bool
}

type WithdrawParams struct {
	Amount      uint64 `validate:"required"`
	SeatHint    BlockIndex
	HasSeatHint bool
}

// SwapParams is opcode 4 (and the payload of SwapV2, opcode 13).
type SwapParams struct {
	InAtoms    uint64 `validate:"required"`
	OutAtoms   uint64
	IsBaseIn   bool
	IsExactIn  bool
}

// PlaceOrderParams is one order within a BatchUpdate (§6.1).
type PlaceOrderParams struct {
	BaseAtoms        uint64    `validate:"required"`
	PriceMantissa    uint32    `validate:"required"`
	PriceExponent    int8      `validate:"gte=-20,lte=20"`
	IsBid            bool
	LastValidSlot    uint32
	OrderType        OrderType `validate:"lte=4"`
	ReverseSpreadBps uint16    `validate:"lte=10000"`
}

// Price reconstructs the PlaceOrderParams' price as a Price value.
func (p PlaceOrderParams) Price() Price {
	return Price{Mantissa: p.PriceMantissa, Exponent: p.PriceExponent}
}

// Side reconstructs the PlaceOrderParams' side.
func (p PlaceOrderParams) Side() Side {
	if p.IsBid {
		return SideBid
	}
	return SideAsk
}

// CancelParams identifies one resting order to cancel within a BatchUpdate.
type CancelParams struct {
	OrderSeq OrderSeq
	Hint     BlockIndex
	HasHint  bool
}

// BatchUpdateParams applies cancels, then places, atomically (§6.1 opcode 6).
type BatchUpdateParams struct {
	SeatHint    BlockIndex
	HasSeatHint bool
	Cancels     []CancelParams
	Orders      []PlaceOrderParams `validate:"dive"`
}

// GlobalAddTraderParams is opcode 8's opening deposit (§4.6: "a new
// trader joins by depositing"). Amount may be zero when the pool is
// below capacity; it must strictly exceed the current minimum-balance
// member's deposit when the pool is full, or admission is refused.
type GlobalAddTraderParams struct {
	Amount uint64
}

// GlobalDepositParams / GlobalWithdrawParams share a shape with the
// market-level deposit/withdraw instructions.
type GlobalDepositParams struct {
	Amount uint64 `validate:"required"`
}

type GlobalWithdrawParams struct {
	Amount uint64 `validate:"required"`
}
