// Package hostio decorates interfaces.TokenVault with a circuit breaker,
// grounded on internal/architecture/fx/resilience/circuit_breaker.go: the
// host's token-transfer call is the one genuinely external dependency in
// the instruction path (§1 of SPEC_FULL.md puts actual token movement out
// of the engine's own scope), so it's the one collaborator worth guarding
// against a wedged or failing host runtime.
package hostio

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// BreakerSettings mirrors the teacher's DefaultSettings: trip after at
// least 10 requests with a >=50% failure ratio, half-open after Timeout.
func BreakerSettings(name string, onStateChange func(name string, from, to gobreaker.State)) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		OnStateChange: onStateChange,
	}
}

// Vault wraps an interfaces.TokenVault with a circuit breaker, so a host
// runtime that starts failing transfers gets cut off instead of being
// hammered by every subsequent deposit/withdrawal.
type Vault struct {
	inner interfaces.TokenVault
	cb    *gobreaker.CircuitBreaker
	log   interfaces.Logger
}

// New wraps inner with a circuit breaker under the given name. A nil log
// falls back to interfaces.NoopLogger, matching the rest of this module's
// optional-logger convention.
func New(inner interfaces.TokenVault, name string, log interfaces.Logger) *Vault {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	settings := BreakerSettings(name, func(name string, from, to gobreaker.State) {
		log.Warn("hostio.breaker_state_change", "name", name, "from", from.String(), "to", to.String())
	})
	return &Vault{inner: inner, cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

var _ interfaces.TokenVault = (*Vault)(nil)

// TransferIn calls through the breaker and wraps any error with %w, so
// callers can still distinguish "host refused" from "breaker open" by
// checking errors.Is(err, gobreaker.ErrOpenState).
func (v *Vault) TransferIn(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error {
	_, err := v.cb.Execute(func() (interface{}, error) {
		return nil, v.inner.TransferIn(ctx, trader, base, amount)
	})
	if err != nil {
		return fmt.Errorf("hostio: transfer in: %w", err)
	}
	return nil
}

// TransferOut calls through the breaker; see TransferIn.
func (v *Vault) TransferOut(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error {
	_, err := v.cb.Execute(func() (interface{}, error) {
		return nil, v.inner.TransferOut(ctx, trader, base, amount)
	})
	if err != nil {
		return fmt.Errorf("hostio: transfer out: %w", err)
	}
	return nil
}

// State reports the breaker's current state, exposed for health checks.
func (v *Vault) State() gobreaker.State {
	return v.cb.State()
}
