package global

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/pkg/types"
)

func newTestGlobal(t *testing.T, maxTraders uint32) *Global {
	t.Helper()
	headerRaw := make([]byte, types.GlobalHeaderSize)
	regionBuf := make([]byte, 2*int(maxTraders)*types.GlobalSlotSize)
	var mint types.TraderKey
	mint[0] = 7
	g, err := CreateGlobal(headerRaw, regionBuf, mint, maxTraders, nil)
	require.NoError(t, err)
	return g
}

func gKey(b byte) types.TraderKey {
	var k types.TraderKey
	k[0] = b
	return k
}

func TestAddTraderThenDepositAndWithdraw(t *testing.T) {
	g := newTestGlobal(t, 4)
	trader := gKey(1)

	evicted, err := g.AddTrader(trader, 0, 10)
	require.NoError(t, err)
	require.Nil(t, evicted)

	require.NoError(t, g.Deposit(trader, 500))
	require.NoError(t, g.Withdraw(trader, 200))

	bal, err := g.Balance(trader)
	require.NoError(t, err)
	require.Equal(t, uint64(300), bal.Balance)
	require.NoError(t, g.Validate())
}

// TestAddTraderRejectsNonExceedingDepositWhenFull is spec.md §8 scenario
// 6 in full: capacity 2, X deposits 100, Y deposits 200, Z attempting
// 100 (equal to, not above, the 100 minimum) must fail with no state
// change, and only a strictly-greater attempt (101) succeeds and evicts X.
func TestAddTraderRejectsNonExceedingDepositWhenFull(t *testing.T) {
	g := newTestGlobal(t, 2)

	x, y := gKey(1), gKey(2)
	_, err := g.AddTrader(x, 100, 1)
	require.NoError(t, err)
	_, err = g.AddTrader(y, 200, 2)
	require.NoError(t, err)

	z := gKey(3)
	evicted, err := g.AddTrader(z, 100, 3)
	require.Error(t, err)
	require.Nil(t, evicted)
	require.Equal(t, uint32(2), g.Header.MemberCount())
	_, err = g.Balance(z)
	require.Error(t, err, "rejected admission must not create a member record")
	require.NoError(t, g.Validate())

	evicted, err = g.AddTrader(z, 101, 3)
	require.NoError(t, err)
	require.NotNil(t, evicted)
	require.Equal(t, x, *evicted)

	_, err = g.Balance(x)
	require.Error(t, err)
	bal, err := g.Balance(z)
	require.NoError(t, err)
	require.Equal(t, uint64(101), bal.Balance)
	require.NoError(t, g.Validate())
}

func TestAddTraderEvictsMinimumBalanceWhenFull(t *testing.T) {
	g := newTestGlobal(t, 2)

	low, high := gKey(1), gKey(2)
	_, err := g.AddTrader(low, 0, 1)
	require.NoError(t, err)
	_, err = g.AddTrader(high, 0, 2)
	require.NoError(t, err)

	require.NoError(t, g.Deposit(low, 10))
	require.NoError(t, g.Deposit(high, 1000))

	newcomer := gKey(3)
	evicted, err := g.AddTrader(newcomer, 11, 3)
	require.NoError(t, err)
	require.NotNil(t, evicted)
	require.Equal(t, low, *evicted)

	_, err = g.Balance(low)
	require.Error(t, err)
	require.NoError(t, g.Validate())
}

func TestEvictionRefusesWhileBacked(t *testing.T) {
	g := newTestGlobal(t, 1)
	trader := gKey(1)
	_, err := g.AddTrader(trader, 0, 1)
	require.NoError(t, err)
	require.NoError(t, g.Deposit(trader, 100))
	require.NoError(t, g.LockForGlobalOrder(trader, types.SideAsk, types.BaseAtoms(10), types.Price{Mantissa: 1, Exponent: 0}))

	_, err = g.AddTrader(gKey(2), 200, 2)
	require.Error(t, err)
}

func TestCleanRemovesZeroBalanceMember(t *testing.T) {
	g := newTestGlobal(t, 4)
	trader := gKey(5)
	_, err := g.AddTrader(trader, 0, 1)
	require.NoError(t, err)

	require.NoError(t, g.Clean(trader))
	_, err = g.Balance(trader)
	require.Error(t, err)
}

func TestCleanRefusesNonzeroBalance(t *testing.T) {
	g := newTestGlobal(t, 4)
	trader := gKey(5)
	_, err := g.AddTrader(trader, 0, 1)
	require.NoError(t, err)
	require.NoError(t, g.Deposit(trader, 1))

	require.Error(t, g.Clean(trader))
}

func TestDepositReinsertionPreservesDepositIndex(t *testing.T) {
	g := newTestGlobal(t, 4)
	a, b, c := gKey(1), gKey(2), gKey(3)
	_, err := g.AddTrader(a, 0, 1)
	require.NoError(t, err)
	_, err = g.AddTrader(b, 0, 2)
	require.NoError(t, err)
	_, err = g.AddTrader(c, 0, 3)
	require.NoError(t, err)

	require.NoError(t, g.Deposit(a, 5))
	require.NoError(t, g.Deposit(b, 50))
	require.NoError(t, g.Deposit(c, 500))
	require.NoError(t, g.Deposit(a, 1000))

	balA, err := g.Balance(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1005), balA.Balance)
	require.NoError(t, g.Validate())
}
