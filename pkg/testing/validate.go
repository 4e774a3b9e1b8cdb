package testkit

import (
	"github.com/merl-labs/clob/internal/global"
	"github.com/merl-labs/clob/internal/market"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// ValidateMarket checks a market's structural invariants (§3.3, §8): the
// bids, asks and seats trees are each valid red-black trees, and
// best_bid < best_ask whenever both sides are non-empty.
func ValidateMarket(m *market.Market) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bidIdx, askIdx := m.Bids.Max(), m.Asks.Min()
	if bidIdx.Valid() && askIdx.Valid() {
		bid := m.RestingOrderAt(bidIdx).Price
		ask := m.RestingOrderAt(askIdx).Price
		if !bid.Less(ask) {
			return clobErrors.Newf(clobErrors.ErrInvalidInput, "best bid %v is not below best ask %v", bid, ask)
		}
	}
	return nil
}

// ValidateGlobal checks a global account's structural invariants: the
// deposits and trader trees are valid red-black trees and the free list
// stays within the allocated slot count without cycles.
func ValidateGlobal(g *global.Global) error {
	return g.Validate()
}

// SumSeatFunds walks the seats tree and returns the total base and quote
// atoms held across every claimed seat's available plus locked balance,
// for fund-conservation checks against a known vault total (§8: "vault
// balance equals sum of withdrawable plus locked across all seats").
func SumSeatFunds(m *market.Market) (base types.BaseAtoms, quote types.QuoteAtoms) {
	m.Seats.InOrder(func(idx types.BlockIndex) bool {
		seat := m.SeatAt(idx)
		base += seat.BaseAvailable + seat.BaseLocked
		quote += seat.QuoteAvailable + seat.QuoteLocked
		return true
	})
	return base, quote
}
