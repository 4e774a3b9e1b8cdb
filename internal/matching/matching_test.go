package matching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/internal/balance"
	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/pkg/types"
)

func newTestMarket(t *testing.T) *market.Market {
	t.Helper()
	headerRaw := make([]byte, types.MarketHeaderSize)
	regionBuf := make([]byte, 16*types.MarketSlotSize)
	var base, quote types.TraderKey
	base[0], quote[0] = 1, 2
	m, err := market.CreateMarket(headerRaw, regionBuf, base, quote, nil)
	require.NoError(t, err)
	return m
}

func seatOf(t *testing.T, m *market.Market, b byte) types.BlockIndex {
	t.Helper()
	var k types.TraderKey
	k[0] = b
	idx, err := m.ClaimSeat(k)
	require.NoError(t, err)
	return idx
}

func price(mantissa uint32, exp int8) types.Price {
	return types.Price{Mantissa: mantissa, Exponent: exp}
}

func TestPlaceOrderLimitCrossesRestingAsk(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	taker := seatOf(t, m, 2)

	require.NoError(t, balance.Deposit(m, maker, true, 100))
	res, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	require.True(t, res.RestingIndex.Valid())

	require.NoError(t, balance.Deposit(m, taker, false, 1000))
	res, err = PlaceOrder(m, nil, taker, types.PlaceOrderParams{
		BaseAtoms: 30, PriceMantissa: 10, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	require.Equal(t, types.BaseAtoms(30), res.Fills[0].Base)
	require.Equal(t, types.QuoteAtoms(300), res.Fills[0].Quote)
	require.Equal(t, types.BaseAtoms(0), res.RemainingBase)

	makerSeat := m.SeatAt(maker)
	require.Equal(t, types.BaseAtoms(20), makerSeat.BaseLocked)
	require.Equal(t, types.QuoteAtoms(300), makerSeat.QuoteAvailable)

	takerSeat := m.SeatAt(taker)
	require.Equal(t, types.BaseAtoms(30), takerSeat.BaseAvailable)
	require.Equal(t, types.QuoteAtoms(700), takerSeat.QuoteAvailable)
	require.NoError(t, m.Validate())
}

func TestPlaceOrderIOCDropsUnfilledRemainder(t *testing.T) {
	m := newTestMarket(t)
	taker := seatOf(t, m, 3)
	require.NoError(t, balance.Deposit(m, taker, false, 1000))

	res, err := PlaceOrder(m, nil, taker, types.PlaceOrderParams{
		BaseAtoms: 10, PriceMantissa: 5, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeImmediateOrCancel,
	}, 1, 0)
	require.NoError(t, err)
	require.Empty(t, res.Fills)
	require.False(t, res.RestingIndex.Valid())
	require.Equal(t, types.BaseAtoms(10), res.RemainingBase)
	require.NoError(t, m.Validate())
}

func TestPlaceOrderPostOnlyRejectsCrossingOrder(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	taker := seatOf(t, m, 2)

	require.NoError(t, balance.Deposit(m, maker, true, 100))
	_, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)

	require.NoError(t, balance.Deposit(m, taker, false, 1000))
	_, err = PlaceOrder(m, nil, taker, types.PlaceOrderParams{
		BaseAtoms: 10, PriceMantissa: 10, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypePostOnly,
	}, 1, 0)
	require.Error(t, err)
	require.NoError(t, m.Validate())
}

func TestPlaceOrderExpiresStaleMakerOnTouch(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	taker := seatOf(t, m, 2)

	require.NoError(t, balance.Deposit(m, maker, true, 100))
	res, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit, LastValidSlot: 5,
	}, 1, 0)
	require.NoError(t, err)
	require.True(t, res.RestingIndex.Valid())

	require.NoError(t, balance.Deposit(m, taker, false, 1000))
	res, err = PlaceOrder(m, nil, taker, types.PlaceOrderParams{
		BaseAtoms: 10, PriceMantissa: 10, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeImmediateOrCancel,
	}, 10, 0)
	require.NoError(t, err)
	require.Empty(t, res.Fills)
	require.Len(t, res.Expired, 1)

	makerSeat := m.SeatAt(maker)
	require.Equal(t, types.BaseAtoms(100), makerSeat.BaseAvailable)
	require.Equal(t, types.BaseAtoms(0), makerSeat.BaseLocked)
	require.NoError(t, m.Validate())
}

func TestCancelRestingOrderUnlocksFunds(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	require.NoError(t, balance.Deposit(m, maker, true, 100))

	res, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)

	order := m.RestingOrderAt(res.RestingIndex)
	require.NoError(t, Cancel(m, nil, types.SideAsk, order.OrderSeq, res.RestingIndex))

	s := m.SeatAt(maker)
	require.Equal(t, types.BaseAtoms(100), s.BaseAvailable)
	require.Equal(t, types.BaseAtoms(0), s.BaseLocked)
	require.NoError(t, m.Validate())
}

func TestCancelFallsBackToScanWithoutHint(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	require.NoError(t, balance.Deposit(m, maker, true, 100))

	res, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	order := m.RestingOrderAt(res.RestingIndex)

	require.NoError(t, Cancel(m, nil, types.SideAsk, order.OrderSeq, types.NilBlock))
	require.NoError(t, m.Validate())
}

func newTestGlobalPool(t *testing.T, maxTraders uint32) *global.Global {
	t.Helper()
	headerRaw := make([]byte, types.GlobalHeaderSize)
	regionBuf := make([]byte, 2*int(maxTraders)*types.GlobalSlotSize)
	var mint types.TraderKey
	mint[0] = 9
	g, err := global.CreateGlobal(headerRaw, regionBuf, mint, maxTraders, nil)
	require.NoError(t, err)
	return g
}

func TestPlaceOrderGlobalMakerSettlesAgainstPool(t *testing.T) {
	m := newTestMarket(t)
	g := newTestGlobalPool(t, 4)

	var makerKey types.TraderKey
	makerKey[0] = 1
	makerSeat := seatOf(t, m, 1)
	_, err := g.AddTrader(makerKey, 0, 1)
	require.NoError(t, err)
	require.NoError(t, g.Deposit(makerKey, 1000))

	res, err := PlaceOrder(m, g, makerSeat, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeGlobal,
	}, 1, 0)
	require.NoError(t, err)
	require.True(t, res.RestingIndex.Valid())

	bal, err := g.Balance(makerKey)
	require.NoError(t, err)
	require.Equal(t, uint64(50), bal.Locked)

	taker := seatOf(t, m, 2)
	require.NoError(t, balance.Deposit(m, taker, false, 1000))
	res, err = PlaceOrder(m, g, taker, types.PlaceOrderParams{
		BaseAtoms: 20, PriceMantissa: 10, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)

	bal, err = g.Balance(makerKey)
	require.NoError(t, err)
	require.Equal(t, uint64(1200), bal.Balance)
	require.Equal(t, uint64(30), bal.Locked)
	require.NoError(t, g.Validate())
	require.NoError(t, m.Validate())
}

func TestPlaceOrderGlobalTakerSettlesImmediately(t *testing.T) {
	m := newTestMarket(t)
	g := newTestGlobalPool(t, 4)

	makerSeat := seatOf(t, m, 1)
	require.NoError(t, balance.Deposit(m, makerSeat, true, 100))
	_, err := PlaceOrder(m, nil, makerSeat, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)

	var takerKey types.TraderKey
	takerKey[0] = 2
	takerSeat := seatOf(t, m, 2)
	_, err = g.AddTrader(takerKey, 0, 1)
	require.NoError(t, err)
	require.NoError(t, g.Deposit(takerKey, 1000))

	res, err := PlaceOrder(m, g, takerSeat, types.PlaceOrderParams{
		BaseAtoms: 20, PriceMantissa: 10, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeGlobal,
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)

	bal, err := g.Balance(takerKey)
	require.NoError(t, err)
	require.Equal(t, uint64(800), bal.Balance)
	require.NoError(t, g.Validate())
}

func TestPlaceOrderReverseReInsertsFilledAmountOnOppositeSide(t *testing.T) {
	m := newTestMarket(t)
	maker := seatOf(t, m, 1)
	taker := seatOf(t, m, 2)

	require.NoError(t, balance.Deposit(m, maker, true, 100))
	_, err := PlaceOrder(m, nil, maker, types.PlaceOrderParams{
		BaseAtoms: 50, PriceMantissa: 1000, PriceExponent: -2, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)

	require.NoError(t, balance.Deposit(m, taker, false, 1000))
	require.NoError(t, balance.Deposit(m, taker, true, 1000))
	res, err := PlaceOrder(m, nil, taker, types.PlaceOrderParams{
		BaseAtoms: 30, PriceMantissa: 1000, PriceExponent: -2, IsBid: true,
		OrderType: types.OrderTypeReverse, ReverseSpreadBps: 100,
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)

	flippedIdx := m.Asks.Max()
	require.True(t, flippedIdx.Valid())
	flipped := m.RestingOrderAt(flippedIdx)
	require.Equal(t, types.SideAsk, flipped.Side)
	require.Equal(t, types.BaseAtoms(30), flipped.BaseRemaining)
	require.True(t, flipped.Price.Greater(price(1000, -2)))
	require.NoError(t, m.Validate())
}

// TestPlaceOrderReverseAskFlipsToLowerPricedBid is the maker leg of the
// scenario above worked in the opposite direction: seat A rests a
// Reverse ask, seat B partially fills it, and A's filled quantity must
// reinsert as a bid priced BELOW the original ask, not above it.
func TestPlaceOrderReverseAskFlipsToLowerPricedBid(t *testing.T) {
	m := newTestMarket(t)
	a := seatOf(t, m, 1)
	b := seatOf(t, m, 2)

	require.NoError(t, balance.Deposit(m, a, true, 10))
	res, err := PlaceOrder(m, nil, a, types.PlaceOrderParams{
		BaseAtoms: 10, PriceMantissa: 100, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeReverse, ReverseSpreadBps: 100,
	}, 1, 0)
	require.NoError(t, err)
	require.True(t, res.RestingIndex.Valid())

	require.NoError(t, balance.Deposit(m, b, false, 1000))
	res, err = PlaceOrder(m, nil, b, types.PlaceOrderParams{
		BaseAtoms: 5, PriceMantissa: 100, PriceExponent: 0, IsBid: true,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	require.Equal(t, types.BaseAtoms(5), res.Fills[0].Base)

	askIdx := m.Asks.Min()
	require.True(t, askIdx.Valid())
	restingAsk := m.RestingOrderAt(askIdx)
	require.Equal(t, types.SideAsk, restingAsk.Side)
	require.Equal(t, types.BaseAtoms(5), restingAsk.BaseRemaining)
	require.Equal(t, price(100, 0), restingAsk.Price)

	bidIdx := m.Bids.Max()
	require.True(t, bidIdx.Valid())
	flipped := m.RestingOrderAt(bidIdx)
	require.Equal(t, types.SideBid, flipped.Side)
	require.Equal(t, types.BaseAtoms(5), flipped.BaseRemaining)
	require.Equal(t, m.SeatTrader(a), m.SeatTrader(flipped.SeatIndex))
	require.True(t, flipped.Price.Less(price(100, 0)))
	require.Equal(t, price(99, 0), flipped.Price)
	require.NoError(t, m.Validate())
}
