// Package matching implements order placement and the price-time
// priority matching procedure (L4), the core of the engine. The crossing
// loop, maker-favorable rounding, and deferred re-insertion for Reverse
// orders all follow spec.md §4.4-§4.5, built in the shape of the
// teacher's own match loop
// (internal/matching/unified_engine.go: walk the opposite book best price
// first, compute a fill, settle both legs, then either remove or shrink
// the maker and continue) generalized from the teacher's single in-memory
// order book to the block-indexed hypertree.
package matching

import (
	"github.com/merl-labs/clob/internal/balance"
	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/market"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// Fill describes one matched leg, used both for balance settlement
// bookkeeping by the caller and for domain event emission.
type Fill struct {
	MakerSeq types.OrderSeq
	Maker    types.TraderKey
	Taker    types.TraderKey
	Price    types.Price
	Base     types.BaseAtoms
	Quote    types.QuoteAtoms
}

// Expired records a resting order removed by expire-on-touch during a
// match walk, so the caller can emit a cancellation-shaped event for it.
type Expired struct {
	Trader   types.TraderKey
	OrderSeq types.OrderSeq
}

// Result is everything PlaceOrder produced, for the instruction layer to
// turn into domain events.
type Result struct {
	Fills         []Fill
	Expired       []Expired
	RestingIndex  types.BlockIndex
	RemainingBase types.BaseAtoms
}

// MaxWalked bounds how many resting orders a single PlaceOrder call will
// cross before stopping and resting (or dropping, for IOC) the remainder,
// keeping one instruction's work bounded regardless of book depth. Zero
// means unbounded; internal/instruction wires this from
// config.EngineConfig.MaxOrdersWalkedPerMatch.
type MaxWalked uint32

// PlaceOrder matches params against m's book and, if any amount remains
// and the order type rests, inserts a resting order for it (§4.4).
// takerSeat must already exist (§4.3 precondition: ClaimSeat before
// PlaceOrder). g is required when params.OrderType is Global or when any
// resting maker the walk encounters is itself a Global order; it may be
// nil otherwise.
func PlaceOrder(m *market.Market, g *global.Global, takerSeat types.BlockIndex, params types.PlaceOrderParams, currentSlot types.Slot, maxWalked MaxWalked) (*Result, error) {
	side := params.Side()
	price := params.Price()
	remaining := types.BaseAtoms(params.BaseAtoms)
	takerTrader := m.SeatTrader(takerSeat)

	if params.OrderType == types.OrderTypeGlobal && g == nil {
		return nil, clobErrors.New(clobErrors.ErrInvalidInput, "global order requires a global account")
	}

	if params.OrderType == types.OrderTypePostOnly {
		if crosses(m, side, price) {
			return nil, clobErrors.New(clobErrors.ErrPostOnlyCrossed, "post-only order would cross the book")
		}
	}

	res := &Result{RestingIndex: types.NilBlock}
	var reverseQueue []reverseFlip

	if params.OrderType.AllowedToCross() {
		walked := uint32(0)
		for remaining > 0 {
			makerIdx := bestOpposing(m, side)
			if !makerIdx.Valid() {
				break
			}
			maker := m.RestingOrderAt(makerIdx)

			if maker.LastValidSlot != 0 && maker.LastValidSlot < currentSlot {
				if err := expireMaker(m, g, makerIdx, maker, res); err != nil {
					return nil, err
				}
				continue
			}
			if !makerCrosses(side, price, maker.Price) {
				break
			}

			fillBase := remaining
			if maker.BaseRemaining < fillBase {
				fillBase = maker.BaseRemaining
			}
			roundUp := maker.Side == types.SideAsk
			fillQuote, ok := types.FillQuoteAtoms(fillBase, maker.Price, roundUp)
			if !ok {
				return nil, clobErrors.New(clobErrors.ErrOverflow, "fill quote computation overflows")
			}

			makerTrader := m.SeatTrader(maker.SeatIndex)
			if err := settleMaker(m, g, maker, fillBase, fillQuote); err != nil {
				return nil, err
			}
			if err := settleTaker(m, g, takerSeat, takerTrader, side, params.OrderType, fillBase, fillQuote); err != nil {
				return nil, err
			}

			res.Fills = append(res.Fills, Fill{
				MakerSeq: maker.OrderSeq,
				Maker:    makerTrader,
				Taker:    takerTrader,
				Price:    maker.Price,
				Base:     fillBase,
				Quote:    fillQuote,
			})

			makerRemaining := maker.BaseRemaining - fillBase
			if makerRemaining == 0 {
				m.RemoveRestingOrder(makerIdx, maker.Side)
			} else {
				m.PatchRestingRemaining(makerIdx, makerRemaining)
			}
			if maker.OrderType == types.OrderTypeReverse {
				reverseQueue = append(reverseQueue, reverseFlip{
					seat: maker.SeatIndex, trader: makerTrader, base: fillBase,
					price: maker.Price, fromSide: maker.Side, spreadBps: maker.ReverseSpreadBps,
					isGlobal: false,
				})
			}

			remaining -= fillBase
			walked++
			if maxWalked != 0 && walked >= uint32(maxWalked) {
				break
			}
		}
	}

	filledByTaker := types.BaseAtoms(params.BaseAtoms) - remaining
	if params.OrderType == types.OrderTypeReverse && filledByTaker > 0 {
		reverseQueue = append(reverseQueue, reverseFlip{
			seat: takerSeat, trader: takerTrader, base: filledByTaker,
			price: price, fromSide: side, spreadBps: params.ReverseSpreadBps,
			isGlobal: params.OrderType == types.OrderTypeGlobal,
		})
	}

	for _, flip := range reverseQueue {
		if err := applyReverseFlip(m, g, flip, currentSlot); err != nil {
			return nil, err
		}
	}

	if remaining > 0 && params.OrderType.RestsOnPartial() {
		if err := lockRemainder(m, g, takerSeat, takerTrader, params.OrderType, side, remaining, price); err != nil {
			return nil, err
		}
		seq := m.Header.TakeOrderSeq()
		idx, err := m.InsertRestingOrder(market.RestingOrder{
			OrderSeq:         seq,
			SeatIndex:        takerSeat,
			Price:            price,
			Side:             side,
			OrderType:        params.OrderType,
			BaseRemaining:    remaining,
			LastValidSlot:    types.Slot(params.LastValidSlot),
			ReverseSpreadBps: params.ReverseSpreadBps,
		})
		if err != nil {
			return nil, err
		}
		res.RestingIndex = idx
		remaining = 0
	}

	res.RemainingBase = remaining
	m.RefreshBestPrices()
	return res, nil
}

// reverseFlip is a deferred re-insertion of a Reverse order's filled
// quantity onto the opposite side, applied only after the match walk
// completes so the tree is never mutated mid-traversal (§4.5).
type reverseFlip struct {
	seat      types.BlockIndex
	trader    types.TraderKey
	base      types.BaseAtoms
	price     types.Price
	fromSide  types.Side
	spreadBps uint16
	isGlobal  bool
}

func applyReverseFlip(m *market.Market, g *global.Global, f reverseFlip, currentSlot types.Slot) error {
	newSide := opposite(f.fromSide)
	bps := int32(f.spreadBps)
	if newSide == types.SideBid {
		bps = -bps
	}
	roundUp := newSide == types.SideAsk
	newPrice := f.price.AdjustByBps(bps, roundUp)

	orderType := types.OrderTypeReverse
	if f.isGlobal {
		orderType = types.OrderTypeGlobal
	}
	if err := lockRemainder(m, g, f.seat, f.trader, orderType, newSide, f.base, newPrice); err != nil {
		return err
	}
	seq := m.Header.TakeOrderSeq()
	_, err := m.InsertRestingOrder(market.RestingOrder{
		OrderSeq:         seq,
		SeatIndex:        f.seat,
		Price:            newPrice,
		Side:             newSide,
		OrderType:        orderType,
		BaseRemaining:    f.base,
		ReverseSpreadBps: f.spreadBps,
	})
	return err
}

func opposite(side types.Side) types.Side {
	if side == types.SideBid {
		return types.SideAsk
	}
	return types.SideBid
}

func bestOpposing(m *market.Market, side types.Side) types.BlockIndex {
	if side == types.SideBid {
		return m.Asks.Min()
	}
	return m.Bids.Max()
}

// crosses reports whether an order of side at price would immediately
// cross the current best opposing price.
func crosses(m *market.Market, side types.Side, price types.Price) bool {
	idx := bestOpposing(m, side)
	if !idx.Valid() {
		return false
	}
	opp := m.RestingOrderAt(idx)
	return makerCrosses(side, price, opp.Price)
}

func makerCrosses(takerSide types.Side, takerPrice, makerPrice types.Price) bool {
	if takerSide == types.SideBid {
		return makerPrice.LessEq(takerPrice)
	}
	return makerPrice.GreaterEq(takerPrice)
}

func settleMaker(m *market.Market, g *global.Global, maker market.RestingOrder, base types.BaseAtoms, quote types.QuoteAtoms) error {
	if maker.OrderType == types.OrderTypeGlobal {
		trader := m.SeatTrader(maker.SeatIndex)
		var lockedAtPrice types.QuoteAtoms
		if maker.Side == types.SideBid {
			lockedAtPrice = quote
		}
		return g.Settle(trader, maker.Side, base, quote, lockedAtPrice)
	}
	return balance.ApplyFill(m, maker.SeatIndex, maker.Side, true, base, quote)
}

func settleTaker(m *market.Market, g *global.Global, takerSeat types.BlockIndex, takerTrader types.TraderKey, side types.Side, orderType types.OrderType, base types.BaseAtoms, quote types.QuoteAtoms) error {
	if orderType == types.OrderTypeGlobal {
		return g.SettleImmediate(takerTrader, side, base, quote)
	}
	return balance.ApplyFill(m, takerSeat, side, false, base, quote)
}

func lockRemainder(m *market.Market, g *global.Global, seatIdx types.BlockIndex, trader types.TraderKey, orderType types.OrderType, side types.Side, base types.BaseAtoms, price types.Price) error {
	if orderType == types.OrderTypeGlobal {
		return g.LockForGlobalOrder(trader, side, base, price)
	}
	return balance.LockForOrder(m, seatIdx, side, base, price)
}

func expireMaker(m *market.Market, g *global.Global, idx types.BlockIndex, maker market.RestingOrder, res *Result) error {
	trader := m.SeatTrader(maker.SeatIndex)
	var err error
	if maker.OrderType == types.OrderTypeGlobal {
		err = g.UnlockGlobalResidual(trader, maker.Side, maker.BaseRemaining, maker.Price)
	} else {
		err = balance.UnlockResidual(m, maker.SeatIndex, maker.Side, maker.BaseRemaining, maker.Price)
	}
	if err != nil {
		return err
	}
	m.RemoveRestingOrder(idx, maker.Side)
	res.Expired = append(res.Expired, Expired{Trader: trader, OrderSeq: maker.OrderSeq})
	return nil
}

// Cancel removes a resting order identified by orderSeq, unlocking its
// remaining backing funds (§4.3, opcode 6's cancel leg). hint, if valid,
// names the exact slot and is verified rather than trusted; without a
// valid hint the relevant side's tree is scanned in sequence order.
func Cancel(m *market.Market, g *global.Global, side types.Side, orderSeq types.OrderSeq, hint types.BlockIndex) error {
	idx := hint
	if !idx.Valid() || m.RestingOrderAt(idx).OrderSeq != orderSeq {
		idx = findBySeq(m, side, orderSeq)
	}
	if !idx.Valid() {
		return clobErrors.New(clobErrors.ErrOrderNotFound, "no resting order with that sequence")
	}
	order := m.RestingOrderAt(idx)
	trader := m.SeatTrader(order.SeatIndex)

	var err error
	if order.OrderType == types.OrderTypeGlobal {
		err = g.UnlockGlobalResidual(trader, order.Side, order.BaseRemaining, order.Price)
	} else {
		err = balance.UnlockResidual(m, order.SeatIndex, order.Side, order.BaseRemaining, order.Price)
	}
	if err != nil {
		return err
	}
	m.RemoveRestingOrder(idx, order.Side)
	m.RefreshBestPrices()
	return nil
}

func findBySeq(m *market.Market, side types.Side, seq types.OrderSeq) types.BlockIndex {
	tree := m.Bids
	if side == types.SideAsk {
		tree = m.Asks
	}
	var found types.BlockIndex = types.NilBlock
	tree.InOrder(func(idx types.BlockIndex) bool {
		if m.RestingOrderAt(idx).OrderSeq == seq {
			found = idx
			return false
		}
		return true
	})
	return found
}
