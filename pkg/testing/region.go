// Package testing collects harness helpers shared by every package's own
// tests: in-memory region constructors, a deterministic instruction
// generator for property tests, and invariant validators (§8's "for all
// sequences" properties). It is declared as testkit rather than testing so
// that callers can still import the standard library's testing package
// unaliased in the same file, following the teacher's pkg/testing/helpers.go
// role but avoiding its name clash with "testing" itself.
package testkit

import (
	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/market"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// NewMarket allocates a fresh in-memory header+region pair sized for
// slotCount dynamic slots and stamps it into a ready-to-use Market, the
// same shape every package's own newTestMarket helper builds by hand.
func NewMarket(slotCount int) (*market.Market, error) {
	headerRaw := make([]byte, types.MarketHeaderSize)
	regionBuf := make([]byte, slotCount*types.MarketSlotSize)
	var base, quote types.TraderKey
	base[0], quote[0] = 1, 2
	return market.CreateMarket(headerRaw, regionBuf, base, quote, interfaces.NoopLogger{})
}

// NewGlobal allocates a fresh in-memory global account sized for
// maxTraders members: each member takes two slots (a deposit node and a
// trader node), so the 2*maxTraders-slot region holds exactly a full pool.
func NewGlobal(maxTraders uint32) (*global.Global, error) {
	headerRaw := make([]byte, types.GlobalHeaderSize)
	regionBuf := make([]byte, 2*int(maxTraders)*types.GlobalSlotSize)
	var mint types.TraderKey
	mint[0] = 9
	return global.CreateGlobal(headerRaw, regionBuf, mint, maxTraders, interfaces.NoopLogger{})
}

// Key builds a TraderKey whose first byte is b, the same throwaway key
// shape every package's gKey/seatOf test helper uses.
func Key(b byte) types.TraderKey {
	var k types.TraderKey
	k[0] = b
	return k
}
