// Package balance implements deposit, withdrawal, and fund lock/unlock
// against a market seat's ledger (L5). It never talks to the token
// transfer boundary itself — callers (internal/instruction) call
// interfaces.TokenVault first and only apply the ledger mutation here
// once that call has succeeded, so a failed transfer never corrupts seat
// state, mirroring the teacher's own pattern of validating an external
// call's result before mutating its own aggregate
// (internal/matching/unified_engine.go settles a fill only after its
// account-balance precheck passes).
package balance

import (
	"github.com/merl-labs/clob/internal/market"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/types"
)

// Deposit credits a seat's available balance (§6.1, opcode 2). It assumes
// the corresponding TokenVault.TransferIn has already succeeded.
func Deposit(m *market.Market, seatIdx types.BlockIndex, base bool, amount uint64) error {
	seat := m.SeatAt(seatIdx)
	if base {
		sum, ok := types.CheckedAddBase(seat.BaseAvailable, types.BaseAtoms(amount))
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "deposit overflows base available balance")
		}
		seat.BaseAvailable = sum
	} else {
		sum, ok := types.CheckedAddQuote(seat.QuoteAvailable, types.QuoteAtoms(amount))
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "deposit overflows quote available balance")
		}
		seat.QuoteAvailable = sum
	}
	m.PutSeatAt(seatIdx, seat)
	return nil
}

// Withdraw debits a seat's available (unlocked) balance (§6.1, opcode 3).
// It never touches locked balance: a trader cannot withdraw funds backing
// a resting order without first canceling it (§4.3 edge case).
func Withdraw(m *market.Market, seatIdx types.BlockIndex, base bool, amount uint64) error {
	seat := m.SeatAt(seatIdx)
	if base {
		remaining, ok := types.CheckedSubBase(seat.BaseAvailable, types.BaseAtoms(amount))
		if !ok {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "withdrawal exceeds available base balance")
		}
		seat.BaseAvailable = remaining
	} else {
		remaining, ok := types.CheckedSubQuote(seat.QuoteAvailable, types.QuoteAtoms(amount))
		if !ok {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "withdrawal exceeds available quote balance")
		}
		seat.QuoteAvailable = remaining
	}
	m.PutSeatAt(seatIdx, seat)
	return nil
}

// LockForOrder moves funds from available to locked ahead of resting an
// order: quote atoms for a bid (§4.4 step 4), base atoms for an ask.
func LockForOrder(m *market.Market, seatIdx types.BlockIndex, side types.Side, baseAtoms types.BaseAtoms, price types.Price) error {
	seat := m.SeatAt(seatIdx)
	if side == types.SideBid {
		locked, ok := types.LockedQuoteForBid(baseAtoms, price)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "locked quote amount overflows")
		}
		remaining, ok := types.CheckedSubQuote(seat.QuoteAvailable, locked)
		if !ok {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "insufficient quote balance to rest bid")
		}
		seat.QuoteAvailable = remaining
		seat.QuoteLocked, ok = types.CheckedAddQuote(seat.QuoteLocked, locked)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "locked quote balance overflows")
		}
	} else {
		remaining, ok := types.CheckedSubBase(seat.BaseAvailable, baseAtoms)
		if !ok {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "insufficient base balance to rest ask")
		}
		seat.BaseAvailable = remaining
		var ok2 bool
		seat.BaseLocked, ok2 = types.CheckedAddBase(seat.BaseLocked, baseAtoms)
		if !ok2 {
			return clobErrors.New(clobErrors.ErrOverflow, "locked base balance overflows")
		}
	}
	m.PutSeatAt(seatIdx, seat)
	return nil
}

// UnlockResidual returns a canceled or expired order's remaining locked
// backing funds to available balance (§4.3, §4.5).
func UnlockResidual(m *market.Market, seatIdx types.BlockIndex, side types.Side, baseRemaining types.BaseAtoms, price types.Price) error {
	seat := m.SeatAt(seatIdx)
	if side == types.SideBid {
		locked, ok := types.LockedQuoteForBid(baseRemaining, price)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "locked quote amount overflows")
		}
		// Locked balance may be slightly larger than the residual's exact
		// recomputed lock due to maker-favorable rounding at rest time;
		// never unlock more than is actually held.
		if locked > seat.QuoteLocked {
			locked = seat.QuoteLocked
		}
		seat.QuoteLocked -= locked
		seat.QuoteAvailable, ok = types.CheckedAddQuote(seat.QuoteAvailable, locked)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "available quote balance overflows on unlock")
		}
	} else {
		if baseRemaining > seat.BaseLocked {
			baseRemaining = seat.BaseLocked
		}
		seat.BaseLocked -= baseRemaining
		var ok bool
		seat.BaseAvailable, ok = types.CheckedAddBase(seat.BaseAvailable, baseRemaining)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "available base balance overflows on unlock")
		}
	}
	m.PutSeatAt(seatIdx, seat)
	return nil
}

// ApplyFill settles one match leg against a seat: the maker side credits
// the atoms it receives and debits the locked atoms it gave up; the taker
// side (never locked) directly debits what it pays and credits what it
// receives. Call once per side per fill. makerSide is the side of the seat
// being settled: the resting order's side for the maker leg, the taker's
// own side for the taker leg.
func ApplyFill(m *market.Market, seatIdx types.BlockIndex, makerSide types.Side, isMaker bool, base types.BaseAtoms, quote types.QuoteAtoms) error {
	seat := m.SeatAt(seatIdx)
	var err error
	if makerSide == types.SideBid {
		// The bid side gives quote, receives base.
		if isMaker {
			if quote > seat.QuoteLocked {
				quote = seat.QuoteLocked
			}
			seat.QuoteLocked -= quote
		} else {
			seat.QuoteAvailable, err = checkedSubQuoteErr(seat.QuoteAvailable, quote)
			if err != nil {
				return err
			}
		}
		seat.BaseAvailable, err = checkedAddBaseErr(seat.BaseAvailable, base)
		if err != nil {
			return err
		}
	} else {
		// The ask side gives base, receives quote.
		if isMaker {
			if base > seat.BaseLocked {
				base = seat.BaseLocked
			}
			seat.BaseLocked -= base
		} else {
			seat.BaseAvailable, err = checkedSubBaseErr(seat.BaseAvailable, base)
			if err != nil {
				return err
			}
		}
		seat.QuoteAvailable, err = checkedAddQuoteErr(seat.QuoteAvailable, quote)
		if err != nil {
			return err
		}
	}
	m.PutSeatAt(seatIdx, seat)
	return nil
}

func checkedAddBaseErr(a, b types.BaseAtoms) (types.BaseAtoms, error) {
	sum, ok := types.CheckedAddBase(a, b)
	if !ok {
		return 0, clobErrors.New(clobErrors.ErrOverflow, "base balance overflows on fill settlement")
	}
	return sum, nil
}

func checkedSubBaseErr(a, b types.BaseAtoms) (types.BaseAtoms, error) {
	diff, ok := types.CheckedSubBase(a, b)
	if !ok {
		return 0, clobErrors.New(clobErrors.ErrInsufficientFunds, "taker base balance underflows on fill settlement")
	}
	return diff, nil
}

func checkedAddQuoteErr(a, b types.QuoteAtoms) (types.QuoteAtoms, error) {
	sum, ok := types.CheckedAddQuote(a, b)
	if !ok {
		return 0, clobErrors.New(clobErrors.ErrOverflow, "quote balance overflows on fill settlement")
	}
	return sum, nil
}

func checkedSubQuoteErr(a, b types.QuoteAtoms) (types.QuoteAtoms, error) {
	diff, ok := types.CheckedSubQuote(a, b)
	if !ok {
		return 0, clobErrors.New(clobErrors.ErrInsufficientFunds, "taker quote balance underflows on fill settlement")
	}
	return diff, nil
}
