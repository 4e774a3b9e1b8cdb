package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/internal/balance"
	"github.com/merl-labs/clob/internal/instruction"
	"github.com/merl-labs/clob/internal/matching"
	"github.com/merl-labs/clob/pkg/config"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// TestPropertyRandomOrderSequencesPreserveInvariants is §8's "for all
// sequences of (deposit, withdraw, place, cancel, match) instructions"
// property, restricted to place/cancel (deposit/withdraw round-trip and
// fund conservation are exercised in isolation below, where an
// insufficient-balance rejection can't be confused with a genuine
// invariant violation). Every seat starts generously funded so random
// placements only ever fail for reasons the harness treats as expected
// (post-only crossing, IOC with no cross), never for underflow.
func TestPropertyRandomOrderSequencesPreserveInvariants(t *testing.T) {
	for seed := int64(0); seed < 8; seed++ {
		m, err := NewMarket(64)
		require.NoError(t, err)

		var seats []types.BlockIndex
		for i := byte(1); i <= 4; i++ {
			seat, err := m.ClaimSeat(Key(i))
			require.NoError(t, err)
			require.NoError(t, balance.Deposit(m, seat, true, 1_000_000))
			require.NoError(t, balance.Deposit(m, seat, false, 1_000_000))
			seats = append(seats, seat)
		}
		wantBase, wantQuote := SumSeatFunds(m)

		gen := NewGenerator(seed)
		var live []types.OrderSeq
		var liveSide []types.Side
		for i := 0; i < 200; i++ {
			op := gen.Next(100, 50)
			seat := seats[i%len(seats)]

			switch op.Kind {
			case OpKindPlace:
				res, err := matching.PlaceOrder(m, nil, seat, op.Order, types.Slot(i), 0)
				if err != nil {
					continue
				}
				if res.RestingIndex.Valid() {
					resting := m.RestingOrderAt(res.RestingIndex)
					live = append(live, resting.OrderSeq)
					liveSide = append(liveSide, resting.Side)
				}
			case OpKindCancel:
				if len(live) == 0 {
					continue
				}
				seq, side := live[0], liveSide[0]
				if err := matching.Cancel(m, nil, side, seq, types.NilBlock); err == nil {
					live, liveSide = live[1:], liveSide[1:]
				}
			default:
				continue
			}

			require.NoErrorf(t, ValidateMarket(m), "seed %d step %d", seed, i)
			base, quote := SumSeatFunds(m)
			require.Equalf(t, wantBase, base, "seed %d step %d: base conservation", seed, i)
			require.Equalf(t, wantQuote, quote, "seed %d step %d: quote conservation", seed, i)
		}
	}
}

// TestPropertyCancelRestoresBalance is §8's cancellation invariant: a
// seat's balance after cancelling an unfilled resting order equals its
// balance immediately before the order was placed.
func TestPropertyCancelRestoresBalance(t *testing.T) {
	m, err := NewMarket(8)
	require.NoError(t, err)
	seat, err := m.ClaimSeat(Key(1))
	require.NoError(t, err)
	require.NoError(t, balance.Deposit(m, seat, true, 100))

	before := m.SeatAt(seat)
	res, err := matching.PlaceOrder(m, nil, seat, types.PlaceOrderParams{
		BaseAtoms: 40, PriceMantissa: 10, PriceExponent: 0, IsBid: false,
		OrderType: types.OrderTypeLimit,
	}, 1, 0)
	require.NoError(t, err)
	require.True(t, res.RestingIndex.Valid())

	resting := m.RestingOrderAt(res.RestingIndex)
	require.NoError(t, matching.Cancel(m, nil, resting.Side, resting.OrderSeq, res.RestingIndex))

	after := m.SeatAt(seat)
	require.Equal(t, before, after)
}

// TestPropertyDepositWithdrawRoundTripIsNoop is §8's round-trip property:
// deposit(N); withdraw(N) on an empty order book leaves seat balance
// unchanged.
func TestPropertyDepositWithdrawRoundTripIsNoop(t *testing.T) {
	m, err := NewMarket(8)
	require.NoError(t, err)
	seat, err := m.ClaimSeat(Key(1))
	require.NoError(t, err)

	before := m.SeatAt(seat)
	require.NoError(t, balance.Deposit(m, seat, true, 777))
	require.NoError(t, balance.Withdraw(m, seat, true, 777))
	require.Equal(t, before, m.SeatAt(seat))
}

// TestPropertyEmptyBatchUpdateIsNoop is §8's idempotence property: applying
// a BatchUpdate with no cancels and no orders leaves the seat unchanged.
func TestPropertyEmptyBatchUpdateIsNoop(t *testing.T) {
	m, err := NewMarket(8)
	require.NoError(t, err)
	seat, err := m.ClaimSeat(Key(1))
	require.NoError(t, err)
	require.NoError(t, balance.Deposit(m, seat, true, 500))

	before := m.SeatAt(seat)
	d := instruction.New(m, nil, nil, interfaces.NewSystemClock(1), nil, nil, config.DefaultEngineConfig())
	fills, err := d.BatchUpdate(context.Background(), Key(1), types.BatchUpdateParams{})
	require.NoError(t, err)
	require.Empty(t, fills)
	require.Equal(t, before, m.SeatAt(seat))
	require.NoError(t, ValidateMarket(m))
}
