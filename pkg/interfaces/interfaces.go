// Package interfaces collects the engine's external collaborator
// boundaries (§6 of spec.md): the host clock, the token-transfer boundary,
// structured logging, and the domain event sink. None of these are
// implemented by the hard core itself — internal/instruction is handed
// concrete implementations by whatever embeds the engine.
package interfaces

import (
	"context"
	"time"

	"github.com/merl-labs/clob/pkg/types"
)

// Logger is the structured logging boundary, shaped after tradSys's
// pkg/interfaces.Logger so the zap adapter is a one-to-one swap.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// Clock is the host-supplied slot source (§6.3).
type Clock interface {
	CurrentSlot() types.Slot
}

// TokenVault is the external token-transfer collaborator (§1: "the host
// blockchain runtime... token transfers... are out of scope"). Deposit and
// Withdraw call through this boundary: Deposit calls TransferIn before
// crediting the seat's ledger, and Withdraw debits the ledger before
// calling TransferOut.
type TokenVault interface {
	TransferIn(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error
	TransferOut(ctx context.Context, trader types.TraderKey, base bool, amount uint64) error
}

// EventPublisher is the domain-event sink described in SPEC_FULL.md's
// domain stack. It is best-effort and audit-only: a publish failure is
// logged, never fatal to the instruction it describes.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// NoopPublisher discards every event; used where no bus is wired (tests).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, types.Event) error { return nil }

// NoopLogger discards every log line; the zero value of Logger-dependent
// components fall back to this rather than nil-checking on every call.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...interface{}) {}
func (NoopLogger) Info(string, ...interface{})  {}
func (NoopLogger) Warn(string, ...interface{})  {}
func (NoopLogger) Error(string, ...interface{}) {}

// SystemClock is a Clock backed by a caller-managed counter rather than
// wall time, since the host's "slot" is its own monotonic clock, not
// time.Now(). Embedders in a real host wire CurrentSlot to that chain's
// clock sysvar instead.
type SystemClock struct {
	slot types.Slot
}

func NewSystemClock(initial types.Slot) *SystemClock { return &SystemClock{slot: initial} }

func (c *SystemClock) CurrentSlot() types.Slot { return c.slot }

func (c *SystemClock) Advance(by types.Slot) { c.slot += by }

// elapsedSince returns the time elapsed since start.
func elapsedSince(start time.Time) time.Duration { return time.Since(start) }
