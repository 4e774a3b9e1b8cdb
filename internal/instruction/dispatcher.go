package instruction

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/merl-labs/clob/internal/balance"
	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/idgen"
	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/internal/matching"
	"github.com/merl-labs/clob/internal/metrics"
	"github.com/merl-labs/clob/pkg/config"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

var validate = validator.New()

// Dispatcher applies decoded instructions to one already-open market
// account (and, where relevant, one already-open global account),
// publishing a domain event per mutation. Opcodes 0 (CreateMarket) and 7
// (GlobalCreate) are account-initialization and handled by the host
// calling market.CreateMarket/global.CreateGlobal directly before a
// Dispatcher is ever constructed over the result; every other opcode goes
// through here.
type Dispatcher struct {
	Market    *market.Market
	Global    *global.Global
	Vault     interfaces.TokenVault
	Clock     interfaces.Clock
	Publisher interfaces.EventPublisher
	Log       interfaces.Logger
	Config    config.EngineConfig
	IDs       idgen.Generator
	// Metrics is optional; a nil Metrics leaves instrumentation calls as
	// no-ops rather than requiring every caller (including existing
	// tests) to wire a registry.
	Metrics *metrics.Collector
}

func New(m *market.Market, g *global.Global, vault interfaces.TokenVault, clock interfaces.Clock, pub interfaces.EventPublisher, log interfaces.Logger, cfg config.EngineConfig) *Dispatcher {
	if pub == nil {
		pub = interfaces.NoopPublisher{}
	}
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	return &Dispatcher{Market: m, Global: g, Vault: vault, Clock: clock, Publisher: pub, Log: log, Config: cfg, IDs: idgen.KSUID{}}
}

func (d *Dispatcher) publish(ctx context.Context, traceID string, kind types.EventKind, payload interface{}) {
	evt := types.Event{Kind: kind, TraceID: traceID, Market: d.Market.Header.BaseMint(), Timestamp: time.Now(), Payload: payload}
	if err := d.Publisher.Publish(ctx, evt); err != nil {
		d.Log.Warn("instruction.publish_failed", "trace", traceID, "kind", kind, "err", err.Error())
	}
}

func (d *Dispatcher) newTrace() string {
	if d.IDs == nil {
		return idgen.KSUID{}.New()
	}
	return d.IDs.New()
}

// resolveSeat finds trader's seat using hint (if present and valid) or a
// lookup by identity, never creating one.
func (d *Dispatcher) resolveSeat(trader types.TraderKey, hint types.BlockIndex, hasHint bool) (types.BlockIndex, error) {
	if hasHint && hint.Valid() {
		if d.Market.SeatTrader(hint) == trader {
			return hint, nil
		}
	}
	return d.Market.Seat(trader)
}

// ClaimSeat is opcode 1.
func (d *Dispatcher) ClaimSeat(ctx context.Context, trader types.TraderKey) (types.BlockIndex, error) {
	idx, err := d.Market.ClaimSeat(trader)
	if err != nil {
		return types.NilBlock, err
	}
	return idx, nil
}

// Deposit is opcode 2: transfer in through the vault, then credit the
// seat's ledger.
func (d *Dispatcher) Deposit(ctx context.Context, trader types.TraderKey, base bool, params types.DepositParams) error {
	if err := validate.Struct(params); err != nil {
		return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid deposit params")
	}
	seatIdx, err := d.resolveSeat(trader, params.SeatHint, params.HasSeatHint)
	if err != nil {
		return err
	}
	if d.Vault != nil {
		if err := d.Vault.TransferIn(ctx, trader, base, params.Amount); err != nil {
			return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "vault transfer-in failed")
		}
	}
	if err := balance.Deposit(d.Market, seatIdx, base, params.Amount); err != nil {
		return err
	}
	d.publish(ctx, d.newTrace(), types.EventDeposited, types.DepositedPayload{Trader: trader, Base: base, Amount: params.Amount})
	return nil
}

// Withdraw is opcode 3: debit the seat's ledger, then transfer out through
// the vault.
func (d *Dispatcher) Withdraw(ctx context.Context, trader types.TraderKey, base bool, params types.WithdrawParams) error {
	if err := validate.Struct(params); err != nil {
		return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid withdraw params")
	}
	seatIdx, err := d.resolveSeat(trader, params.SeatHint, params.HasSeatHint)
	if err != nil {
		return err
	}
	if err := balance.Withdraw(d.Market, seatIdx, base, params.Amount); err != nil {
		return err
	}
	if d.Vault != nil {
		if err := d.Vault.TransferOut(ctx, trader, base, params.Amount); err != nil {
			return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "vault transfer-out failed")
		}
	}
	d.publish(ctx, d.newTrace(), types.EventWithdrawn, types.WithdrawnPayload{Trader: trader, Base: base, Amount: params.Amount})
	return nil
}

// Expand is opcode 5.
func (d *Dispatcher) Expand(newBuf []byte) error { return d.Market.Expand(newBuf) }

// BatchUpdate is opcode 6: apply every cancel, then attempt every place,
// atomically from the caller's point of view (a failure anywhere is
// reported to the caller, who is expected to have simulated the batch
// against current state before submitting it; the hard core itself makes
// no attempt at partial rollback since each sub-operation already leaves
// the account in a structurally valid state).
func (d *Dispatcher) BatchUpdate(ctx context.Context, trader types.TraderKey, params types.BatchUpdateParams) ([]matching.Fill, error) {
	if err := validate.Struct(params); err != nil {
		return nil, clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid batch-update params")
	}
	seatIdx, err := d.resolveSeat(trader, params.SeatHint, params.HasSeatHint)
	if err != nil {
		return nil, err
	}

	for _, c := range params.Cancels {
		side, ok := d.sideOfOrder(c)
		if !ok {
			d.recordRejection("cancel_not_found")
			return nil, clobErrors.New(clobErrors.ErrOrderNotFound, "cancel references an unknown order")
		}
		hint := types.NilBlock
		if c.HasHint {
			hint = c.Hint
		}
		if err := matching.Cancel(d.Market, d.Global, side, c.OrderSeq, hint); err != nil {
			d.recordRejection("cancel_failed")
			return nil, err
		}
		d.recordCancel(side)
		d.publish(ctx, d.newTrace(), types.EventOrderCanceled, types.OrderCanceledPayload{Trader: trader, OrderSeq: c.OrderSeq})
	}

	var allFills []matching.Fill
	slot := types.Slot(0)
	if d.Clock != nil {
		slot = d.Clock.CurrentSlot()
	}
	for _, o := range params.Orders {
		if err := validate.Struct(o); err != nil {
			d.recordRejection("invalid_input")
			return allFills, clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid order params")
		}
		if o.OrderType == types.OrderTypeReverse && o.ReverseSpreadBps < d.Config.MinReverseSpreadBps {
			d.recordRejection("reverse_spread_floor")
			return allFills, clobErrors.New(clobErrors.ErrInvalidInput, "reverse spread below configured floor")
		}
		trace := d.newTrace()
		start := time.Now()
		res, err := matching.PlaceOrder(d.Market, d.Global, seatIdx, o, slot, matching.MaxWalked(d.Config.MaxOrdersWalkedPerMatch))
		if err != nil {
			d.recordRejection("place_order_failed")
			return allFills, err
		}
		d.recordPlaceOrder(o.Side(), o.OrderType, start, len(res.Fills), len(res.Expired))
		for _, exp := range res.Expired {
			d.publish(ctx, trace, types.EventOrderCanceled, types.OrderCanceledPayload{Trader: exp.Trader, OrderSeq: exp.OrderSeq})
		}
		for _, f := range res.Fills {
			d.publish(ctx, trace, types.EventOrderFilled, types.OrderFilledPayload{
				MakerSeq: f.MakerSeq, TakerTrace: trace, Maker: f.Maker, Taker: f.Taker,
				Price: f.Price, BaseFilled: f.Base, Quote: f.Quote,
			})
		}
		if res.RestingIndex.Valid() {
			resting := d.Market.RestingOrderAt(res.RestingIndex)
			d.publish(ctx, trace, types.EventOrderPlaced, types.OrderPlacedPayload{
				Trader: trader, OrderSeq: resting.OrderSeq,
				Side: o.Side(), Price: o.Price(), Base: resting.BaseRemaining,
			})
		}
		allFills = append(allFills, res.Fills...)
	}
	return allFills, nil
}

// sideOfOrder finds which side's tree currently holds the order a cancel
// targets, preferring the hint when present.
func (d *Dispatcher) sideOfOrder(c types.CancelParams) (types.Side, bool) {
	if c.HasHint && c.Hint.Valid() {
		return d.Market.RestingOrderAt(c.Hint).Side, true
	}
	for _, side := range [...]types.Side{types.SideBid, types.SideAsk} {
		found := false
		tree := d.Market.Bids
		if side == types.SideAsk {
			tree = d.Market.Asks
		}
		tree.InOrder(func(idx types.BlockIndex) bool {
			if d.Market.RestingOrderAt(idx).OrderSeq == c.OrderSeq {
				found = true
				return false
			}
			return true
		})
		if found {
			return side, true
		}
	}
	return 0, false
}

func (d *Dispatcher) recordRejection(reason string) {
	if d.Metrics != nil {
		d.Metrics.RecordRejection(reason)
	}
}

func (d *Dispatcher) recordCancel(side types.Side) {
	if d.Metrics != nil {
		d.Metrics.RecordCancel(side)
	}
}

func (d *Dispatcher) recordPlaceOrder(side types.Side, orderType types.OrderType, start time.Time, fills, expired int) {
	if d.Metrics != nil {
		d.Metrics.ObservePlaceOrder(side, orderType, start, fills, expired)
	}
}

func (d *Dispatcher) recordGlobalEviction() {
	if d.Metrics != nil {
		d.Metrics.RecordGlobalEviction()
	}
}

// GlobalAddTrader is opcode 8. The incoming trader's opening deposit
// (params.Amount) must strictly exceed the current minimum-balance
// member's balance whenever the pool is already at capacity; otherwise
// the instruction fails with no state change (§4.6, §8 scenario 6).
func (d *Dispatcher) GlobalAddTrader(ctx context.Context, trader types.TraderKey, params types.GlobalAddTraderParams) (*types.TraderKey, error) {
	slot := types.Slot(0)
	if d.Clock != nil {
		slot = d.Clock.CurrentSlot()
	}
	if params.Amount > 0 && d.Vault != nil {
		if err := d.Vault.TransferIn(ctx, trader, true, params.Amount); err != nil {
			return nil, clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "vault transfer-in failed")
		}
	}
	evicted, err := d.Global.AddTrader(trader, params.Amount, slot)
	if err != nil {
		return nil, err
	}
	if evicted != nil {
		d.recordGlobalEviction()
		dep, balErr := d.Global.Balance(*evicted)
		returned := uint64(0)
		if balErr == nil {
			returned = dep.Balance
		}
		d.publish(ctx, d.newTrace(), types.EventGlobalEvicted, types.GlobalEvictedPayload{Evicted: *evicted, Incoming: trader, Returned: returned})
	}
	d.publish(ctx, d.newTrace(), types.EventGlobalTraderJoined, types.GlobalTraderJoinedPayload{Trader: trader, JoinedSlot: slot})
	return evicted, nil
}

// GlobalDeposit is opcode 9.
func (d *Dispatcher) GlobalDeposit(ctx context.Context, trader types.TraderKey, params types.GlobalDepositParams) error {
	if err := validate.Struct(params); err != nil {
		return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid global-deposit params")
	}
	if d.Vault != nil {
		if err := d.Vault.TransferIn(ctx, trader, true, params.Amount); err != nil {
			return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "vault transfer-in failed")
		}
	}
	if err := d.Global.Deposit(trader, params.Amount); err != nil {
		return err
	}
	d.publish(ctx, d.newTrace(), types.EventDeposited, types.DepositedPayload{Trader: trader, Base: true, Amount: params.Amount})
	return nil
}

// GlobalWithdraw is opcode 10.
func (d *Dispatcher) GlobalWithdraw(ctx context.Context, trader types.TraderKey, params types.GlobalWithdrawParams) error {
	if err := validate.Struct(params); err != nil {
		return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid global-withdraw params")
	}
	if err := d.Global.Withdraw(trader, params.Amount); err != nil {
		return err
	}
	if d.Vault != nil {
		if err := d.Vault.TransferOut(ctx, trader, true, params.Amount); err != nil {
			return clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "vault transfer-out failed")
		}
	}
	d.publish(ctx, d.newTrace(), types.EventWithdrawn, types.WithdrawnPayload{Trader: trader, Base: true, Amount: params.Amount})
	return nil
}

// GlobalEvict is opcode 11: a permissionless instruction that forces
// eviction of the current minimum-balance member, used by a deployment
// that wants to reclaim a seat without waiting for AddTrader pressure.
func (d *Dispatcher) GlobalEvict(ctx context.Context) (types.TraderKey, error) {
	evicted, err := d.Global.EvictMinimum()
	if err != nil {
		return types.TraderKey{}, err
	}
	d.recordGlobalEviction()
	dep, balErr := d.Global.Balance(evicted)
	returned := uint64(0)
	if balErr == nil {
		returned = dep.Balance
	}
	d.publish(ctx, d.newTrace(), types.EventGlobalEvicted, types.GlobalEvictedPayload{Evicted: evicted, Returned: returned})
	return evicted, nil
}

// GlobalClean is opcode 12.
func (d *Dispatcher) GlobalClean(ctx context.Context, trader types.TraderKey) error {
	if err := d.Global.Clean(trader); err != nil {
		return err
	}
	d.publish(ctx, d.newTrace(), types.EventGlobalCleaned, types.GlobalCleanedPayload{Trader: trader, Reason: "zero balance"})
	return nil
}

// Swap is opcode 4 (and SwapV2, opcode 13, which carries the same params).
// SwapParams carries no limit price, only an input/output pair and which
// side is exact, so a swap is translated into a price-unbounded
// immediate-or-cancel PlaceOrder call (a true market order) and the
// unspecified side of the pair is enforced as a post-fill slippage check
// rather than a pre-trade limit price.
func (d *Dispatcher) Swap(ctx context.Context, trader types.TraderKey, seatIdx types.BlockIndex, params types.SwapParams) ([]matching.Fill, error) {
	if err := validate.Struct(params); err != nil {
		return nil, clobErrors.Wrap(err, clobErrors.ErrInvalidInput, "invalid swap params")
	}

	side := types.SideBid
	if params.IsBaseIn {
		side = types.SideAsk
	}
	limit := types.Price{Mantissa: math.MaxUint32, Exponent: types.MaxExponent}
	if side == types.SideAsk {
		limit = types.Price{Mantissa: 1, Exponent: types.MinExponent}
	}

	var baseAtoms uint64
	switch {
	case params.IsBaseIn && params.IsExactIn:
		baseAtoms = params.InAtoms
	case params.IsBaseIn && !params.IsExactIn:
		baseAtoms = params.InAtoms
	case !params.IsBaseIn && params.IsExactIn:
		baseAtoms = params.OutAtoms
	default:
		baseAtoms = params.OutAtoms
	}

	slot := types.Slot(0)
	if d.Clock != nil {
		slot = d.Clock.CurrentSlot()
	}
	trace := d.newTrace()
	res, err := matching.PlaceOrder(d.Market, d.Global, seatIdx, types.PlaceOrderParams{
		BaseAtoms: baseAtoms, PriceMantissa: limit.Mantissa, PriceExponent: limit.Exponent,
		IsBid: side == types.SideBid, OrderType: types.OrderTypeImmediateOrCancel,
	}, slot, matching.MaxWalked(d.Config.MaxOrdersWalkedPerMatch))
	if err != nil {
		return nil, err
	}

	var quoteMoved types.QuoteAtoms
	for _, f := range res.Fills {
		quoteMoved += f.Quote
		d.publish(ctx, trace, types.EventOrderFilled, types.OrderFilledPayload{
			MakerSeq: f.MakerSeq, TakerTrace: trace, Maker: f.Maker, Taker: f.Taker,
			Price: f.Price, BaseFilled: f.Base, Quote: f.Quote,
		})
	}

	if params.IsBaseIn && uint64(quoteMoved) < params.OutAtoms {
		return res.Fills, clobErrors.New(clobErrors.ErrInvalidOrder, "swap output below minimum")
	}
	if !params.IsBaseIn && uint64(quoteMoved) > params.InAtoms {
		return res.Fills, clobErrors.New(clobErrors.ErrInvalidOrder, "swap input above maximum")
	}
	return res.Fills, nil
}
