package balance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/pkg/types"
)

func newTestMarket(t *testing.T) (*market.Market, types.BlockIndex) {
	t.Helper()
	headerRaw := make([]byte, types.MarketHeaderSize)
	regionBuf := make([]byte, 4*types.MarketSlotSize)
	var base, quote, trader types.TraderKey
	base[0], quote[0], trader[0] = 1, 2, 9
	m, err := market.CreateMarket(headerRaw, regionBuf, base, quote, nil)
	require.NoError(t, err)
	idx, err := m.ClaimSeat(trader)
	require.NoError(t, err)
	return m, idx
}

func TestDepositThenWithdrawRoundTripIsNoop(t *testing.T) {
	m, seat := newTestMarket(t)

	require.NoError(t, Deposit(m, seat, true, 1000))
	require.NoError(t, Withdraw(m, seat, true, 1000))

	require.Equal(t, types.BaseAtoms(0), m.SeatAt(seat).BaseAvailable)
}

func TestWithdrawMoreThanAvailableFails(t *testing.T) {
	m, seat := newTestMarket(t)
	require.NoError(t, Deposit(m, seat, false, 50))
	err := Withdraw(m, seat, false, 51)
	require.Error(t, err)
}

func TestLockForBidReservesQuoteRoundedUp(t *testing.T) {
	m, seat := newTestMarket(t)
	require.NoError(t, Deposit(m, seat, false, 1000))

	price := types.Price{Mantissa: 3, Exponent: 0}
	err := LockForOrder(m, seat, types.SideBid, types.BaseAtoms(7), price)
	require.NoError(t, err)

	s := m.SeatAt(seat)
	require.Equal(t, types.QuoteAtoms(21), s.QuoteLocked)
	require.Equal(t, types.QuoteAtoms(979), s.QuoteAvailable)
}

func TestLockForOrderInsufficientFunds(t *testing.T) {
	m, seat := newTestMarket(t)
	require.NoError(t, Deposit(m, seat, true, 5))

	err := LockForOrder(m, seat, types.SideAsk, types.BaseAtoms(6), types.Price{Mantissa: 1, Exponent: 0})
	require.Error(t, err)
}

func TestUnlockResidualReturnsFundsAfterCancel(t *testing.T) {
	m, seat := newTestMarket(t)
	require.NoError(t, Deposit(m, seat, true, 100))

	price := types.Price{Mantissa: 1, Exponent: 0}
	require.NoError(t, LockForOrder(m, seat, types.SideAsk, types.BaseAtoms(40), price))
	require.NoError(t, UnlockResidual(m, seat, types.SideAsk, types.BaseAtoms(40), price))

	s := m.SeatAt(seat)
	require.Equal(t, types.BaseAtoms(100), s.BaseAvailable)
	require.Equal(t, types.BaseAtoms(0), s.BaseLocked)
}

func TestApplyFillCreditsMakerAndDebitsTaker(t *testing.T) {
	m, makerSeat := newTestMarket(t)
	var takerKey types.TraderKey
	takerKey[0] = 42
	takerSeat, err := m.ClaimSeat(takerKey)
	require.NoError(t, err)

	require.NoError(t, Deposit(m, makerSeat, true, 100))
	price := types.Price{Mantissa: 2, Exponent: 0}
	require.NoError(t, LockForOrder(m, makerSeat, types.SideAsk, types.BaseAtoms(100), price))

	require.NoError(t, Deposit(m, takerSeat, false, 1000))

	require.NoError(t, ApplyFill(m, makerSeat, types.SideAsk, true, types.BaseAtoms(10), types.QuoteAtoms(20)))
	require.NoError(t, ApplyFill(m, takerSeat, types.SideBid, false, types.BaseAtoms(10), types.QuoteAtoms(20)))

	maker := m.SeatAt(makerSeat)
	taker := m.SeatAt(takerSeat)
	require.Equal(t, types.BaseAtoms(90), maker.BaseLocked)
	require.Equal(t, types.QuoteAtoms(20), maker.QuoteAvailable)
	require.Equal(t, types.BaseAtoms(10), taker.BaseAvailable)
	require.Equal(t, types.QuoteAtoms(980), taker.QuoteAvailable)
}
