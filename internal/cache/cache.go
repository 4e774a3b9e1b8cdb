// Package cache provides a short-lived, in-memory cache of seat and
// global-pool read views, the same way internal/orders/service_core.go
// fronts order lookups with an OrderCache: a hot read path that tolerates a
// few hundred milliseconds of staleness in exchange for not re-walking the
// account region on every request. No package in this module imports it;
// internal/httpapi reads the market account directly.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/merl-labs/clob/pkg/types"
)

const (
	seatKeyPrefix   = "seat:"
	globalKeyPrefix = "global:"

	// DefaultExpiration and DefaultCleanupInterval are kept short, short
	// enough that a cached seat balance
	// never meaningfully diverges from on-chain state between reads.
	DefaultExpiration      = 500 * time.Millisecond
	DefaultCleanupInterval = 5 * time.Second
)

// SeatView is the cached projection of a claimed seat's balances.
type SeatView struct {
	BaseAvailable  uint64
	QuoteAvailable uint64
	BaseLocked     uint64
	QuoteLocked    uint64
}

// GlobalView is the cached projection of a global pool member's balance.
type GlobalView struct {
	Balance uint64
	Locked  uint64
}

// ReadCache is a TTL cache over read-model views, keyed per market by the
// caller (seatKey/globalKey embed the market so one ReadCache can safely
// front several markets' handlers).
type ReadCache struct {
	c *gocache.Cache
}

// New builds a ReadCache with the given expiration and cleanup interval.
// A zero expiration disables expiry (entries live until removed by the
// Invalidate* methods),
// matching gocache's own NoExpiration sentinel.
func New(expiration, cleanupInterval time.Duration) *ReadCache {
	return &ReadCache{c: gocache.New(expiration, cleanupInterval)}
}

func seatKey(market, trader types.TraderKey) string {
	return fmt.Sprintf("%s%x:%x", seatKeyPrefix, market, trader)
}

func globalKey(trader types.TraderKey) string {
	return fmt.Sprintf("%s%x", globalKeyPrefix, trader)
}

// Seat returns a cached seat view, if present and unexpired.
func (r *ReadCache) Seat(market, trader types.TraderKey) (SeatView, bool) {
	v, found := r.c.Get(seatKey(market, trader))
	if !found {
		return SeatView{}, false
	}
	return v.(SeatView), true
}

// SetSeat caches a seat view using the cache's default expiration.
func (r *ReadCache) SetSeat(market, trader types.TraderKey, view SeatView) {
	r.c.Set(seatKey(market, trader), view, gocache.DefaultExpiration)
}

// InvalidateSeat removes a cached seat view, used after a deposit,
// withdrawal, or fill changes the seat's on-chain balances.
func (r *ReadCache) InvalidateSeat(market, trader types.TraderKey) {
	r.c.Delete(seatKey(market, trader))
}

// Global returns a cached global-pool view, if present and unexpired.
func (r *ReadCache) Global(trader types.TraderKey) (GlobalView, bool) {
	v, found := r.c.Get(globalKey(trader))
	if !found {
		return GlobalView{}, false
	}
	return v.(GlobalView), true
}

// SetGlobal caches a global-pool view using the cache's default expiration.
func (r *ReadCache) SetGlobal(trader types.TraderKey, view GlobalView) {
	r.c.Set(globalKey(trader), view, gocache.DefaultExpiration)
}

// InvalidateGlobal removes a cached global-pool view.
func (r *ReadCache) InvalidateGlobal(trader types.TraderKey) {
	r.c.Delete(globalKey(trader))
}

// ItemCount reports the number of live (possibly stale-but-unexpired)
// entries, exposed for metrics/diagnostics.
func (r *ReadCache) ItemCount() int {
	return r.c.ItemCount()
}
