package types

import "time"

// EventKind identifies the domain event published by the instruction
// dispatcher after a successful mutation (§SPEC_FULL domain stack). These
// are audit/indexer signals only; the engine never reads them back.
type EventKind string

const (
	EventOrderPlaced        EventKind = "order_placed"
	EventOrderFilled        EventKind = "order_filled"
	EventOrderCanceled      EventKind = "order_canceled"
	EventDeposited          EventKind = "deposited"
	EventWithdrawn          EventKind = "withdrawn"
	EventGlobalTraderJoined EventKind = "global_trader_joined"
	EventGlobalEvicted      EventKind = "global_evicted"
	EventGlobalCleaned      EventKind = "global_cleaned"
)

// Event is the envelope published on the domain event bus. Payload is one
// of the *Payload structs below, kept as interface{} so the bus package
// doesn't need to import every concrete type.
type Event struct {
	Kind      EventKind
	TraceID   string
	Market    TraderKey
	Timestamp time.Time
	Payload   interface{}
}

type OrderPlacedPayload struct {
	Trader   TraderKey
	OrderSeq OrderSeq
	Side     Side
	Price    Price
	Base     BaseAtoms
}

type OrderFilledPayload struct {
	MakerSeq   OrderSeq
	TakerTrace string
	Maker      TraderKey
	Taker      TraderKey
	Price      Price
	BaseFilled BaseAtoms
	Quote      QuoteAtoms
}

type OrderCanceledPayload struct {
	Trader   TraderKey
	OrderSeq OrderSeq
}

type DepositedPayload struct {
	Trader TraderKey
	Base   bool
	Amount uint64
}

type WithdrawnPayload struct {
	Trader TraderKey
	Base   bool
	Amount uint64
}

type GlobalTraderJoinedPayload struct {
	Trader     TraderKey
	JoinedSlot Slot
}

type GlobalEvictedPayload struct {
	Evicted  TraderKey
	Incoming TraderKey
	Returned uint64
}

type GlobalCleanedPayload struct {
	Trader TraderKey
	Reason string
}
