package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/internal/instruction"
	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/pkg/config"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

func newMarketDispatcher(t *testing.T) (*market.Market, *instruction.Dispatcher) {
	t.Helper()
	headerRaw := make([]byte, types.MarketHeaderSize)
	regionBuf := make([]byte, 16*types.MarketSlotSize)
	var base, quote types.TraderKey
	base[0], quote[0] = 1, 2
	m, err := market.CreateMarket(headerRaw, regionBuf, base, quote, nil)
	require.NoError(t, err)
	d := instruction.New(m, nil, nil, interfaces.NewSystemClock(1), nil, nil, config.DefaultEngineConfig())
	return m, d
}

func TestRunReplaysIndependentMarketsConcurrently(t *testing.T) {
	runner, err := NewRunner(4)
	require.NoError(t, err)
	defer runner.Release()

	var jobs []MarketJob
	for i := 0; i < 3; i++ {
		_, d := newMarketDispatcher(t)
		trader := types.TraderKey{byte(i + 1)}
		_, err := d.ClaimSeat(context.Background(), trader)
		require.NoError(t, err)
		require.NoError(t, d.Deposit(context.Background(), trader, true, types.DepositParams{Amount: 100}))

		jobs = append(jobs, MarketJob{
			Market:     marketName(i),
			Dispatcher: d,
			Log: []Entry{{
				Trader: trader,
				Params: types.BatchUpdateParams{
					Orders: []types.PlaceOrderParams{{
						BaseAtoms: 10, PriceMantissa: 5, PriceExponent: 0, IsBid: false,
						OrderType: types.OrderTypeLimit,
					}},
				},
			}},
		})
	}

	results := runner.Run(context.Background(), jobs)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Equal(t, 1, res.Applied)
	}
}

func TestRunRecordsErrorWithoutAbortingOtherJobs(t *testing.T) {
	runner, err := NewRunner(2)
	require.NoError(t, err)
	defer runner.Release()

	_, goodDispatcher := newMarketDispatcher(t)
	goodTrader := types.TraderKey{1}
	_, err = goodDispatcher.ClaimSeat(context.Background(), goodTrader)
	require.NoError(t, err)
	require.NoError(t, goodDispatcher.Deposit(context.Background(), goodTrader, true, types.DepositParams{Amount: 100}))

	_, badDispatcher := newMarketDispatcher(t)
	badTrader := types.TraderKey{2}

	jobs := []MarketJob{
		{
			Market:     "good",
			Dispatcher: goodDispatcher,
			Log: []Entry{{
				Trader: goodTrader,
				Params: types.BatchUpdateParams{Orders: []types.PlaceOrderParams{{
					BaseAtoms: 10, PriceMantissa: 5, PriceExponent: 0, IsBid: false, OrderType: types.OrderTypeLimit,
				}}},
			}},
		},
		{
			Market:     "bad",
			Dispatcher: badDispatcher,
			Log: []Entry{{
				Trader: badTrader,
				Params: types.BatchUpdateParams{Orders: []types.PlaceOrderParams{{
					BaseAtoms: 10, PriceMantissa: 5, PriceExponent: 0, IsBid: false, OrderType: types.OrderTypeLimit,
				}}},
			}},
		},
	}

	results := runner.Run(context.Background(), jobs)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
}

func marketName(i int) string {
	return "market-" + string(rune('a'+i))
}
