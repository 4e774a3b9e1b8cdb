package hostio

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/pkg/types"
)

type stubVault struct {
	transferInErr error
	calls         int
}

func (s *stubVault) TransferIn(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error {
	s.calls++
	return s.transferInErr
}

func (s *stubVault) TransferOut(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error {
	return nil
}

func TestTransferInPassesThroughOnSuccess(t *testing.T) {
	stub := &stubVault{}
	v := New(stub, "test-vault", nil)

	err := v.TransferIn(context.Background(), types.TraderKey{1}, true, 10)
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)
	require.Equal(t, gobreaker.StateClosed, v.State())
}

func TestTransferInWrapsUnderlyingError(t *testing.T) {
	stub := &stubVault{transferInErr: errors.New("host unavailable")}
	v := New(stub, "test-vault", nil)

	err := v.TransferIn(context.Background(), types.TraderKey{1}, true, 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "host unavailable")
}

func TestTransferInTripsBreakerAfterRepeatedFailures(t *testing.T) {
	stub := &stubVault{transferInErr: errors.New("host unavailable")}
	v := New(stub, "test-vault", nil)

	for i := 0; i < 20; i++ {
		_ = v.TransferIn(context.Background(), types.TraderKey{1}, true, 10)
	}

	require.Equal(t, gobreaker.StateOpen, v.State())

	callsBeforeOpenCheck := stub.calls
	err := v.TransferIn(context.Background(), types.TraderKey{1}, true, 10)
	require.Error(t, err)
	require.Equal(t, callsBeforeOpenCheck, stub.calls)
}
