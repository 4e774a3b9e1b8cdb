package market

import (
	"github.com/merl-labs/clob/internal/alloc"
	"github.com/merl-labs/clob/internal/rbtree"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Market bundles a market account's header, dynamic region, allocator and
// three trees into one handle. It holds no state beyond references into
// the caller-owned header/region bytes: every mutation is visible to the
// caller immediately, the same way tradSys's service layer wraps a
// repository handle rather than copying state in and out of it.
type Market struct {
	Header *Header
	region *Region
	allocator *alloc.Allocator
	Bids  *rbtree.Tree
	Asks  *rbtree.Tree
	Seats *rbtree.Tree
	log   interfaces.Logger
}

// Open constructs a Market view over an existing header+region pair
// (already stamped by CreateMarket on a prior call).
func Open(header *Header, region *Region, log interfaces.Logger) *Market {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	a := alloc.New(region, types.MarketSlotSize, log)
	return &Market{
		Header:    header,
		region:    region,
		allocator: a,
		Bids:      rbtree.New(region, bidComparator, header.BidsRootRef()),
		Asks:      rbtree.New(region, askComparator, header.AsksRootRef()),
		Seats:     rbtree.New(region, seatComparator, header.SeatsRootRef()),
		log:       log,
	}
}

// CreateMarket initializes a fresh header+region pair (§6.1, opcode 0).
func CreateMarket(headerRaw []byte, regionBuf []byte, base, quote types.TraderKey, log interfaces.Logger) (*Market, error) {
	header, err := WrapHeader(headerRaw)
	if err != nil {
		return nil, err
	}
	header.SetDiscriminant(types.DiscriminantMarket)
	header.SetFormatVersion(1, 0, 0)
	header.SetBaseMint(base)
	header.SetQuoteMint(quote)
	header.BidsRootRef().Set(types.NilBlock)
	header.AsksRootRef().Set(types.NilBlock)
	header.SeatsRootRef().Set(types.NilBlock)
	header.SetFreeHead(types.NilBlock)
	header.SetSlotCount(0)
	header.SetNextOrderSeq(0)

	if len(regionBuf)%types.MarketSlotSize != 0 {
		return nil, clobErrors.Newf(clobErrors.ErrInvalidInput, "region length %d is not a multiple of slot size %d", len(regionBuf), types.MarketSlotSize)
	}
	region := NewRegion(regionBuf)
	return Open(header, region, log), nil
}

// allocateSlot pops a free slot (or extends the high-water mark),
// persisting the allocator's free-list head and slot count into the
// header.
func (m *Market) allocateSlot() (types.BlockIndex, error) {
	idx, newHead, newCount, err := m.allocator.Allocate(m.Header.FreeHead(), m.Header.SlotCount())
	if err != nil {
		return types.NilBlock, err
	}
	m.Header.SetFreeHead(newHead)
	m.Header.SetSlotCount(newCount)
	rbtree.ResetHeader(m.region.Slot(idx))
	return idx, nil
}

func (m *Market) freeSlot(idx types.BlockIndex) {
	newHead := m.allocator.Free(idx, m.Header.FreeHead())
	m.Header.SetFreeHead(newHead)
}

// Expand grows the dynamic region by appending freshly zeroed slots,
// backed by a caller-supplied larger buffer whose prefix already equals
// the current region bytes (§6.1, opcode 5: "resource errors are
// recoverable by Expand and retry").
func (m *Market) Expand(newBuf []byte) error {
	if len(newBuf) <= len(m.region.Bytes()) {
		return clobErrors.New(clobErrors.ErrInvalidInput, "expand buffer must be strictly larger than the current region")
	}
	if len(newBuf)%types.MarketSlotSize != 0 {
		return clobErrors.New(clobErrors.ErrInvalidInput, "expand buffer length must be a multiple of the slot size")
	}
	m.region.Grow(newBuf)
	return nil
}

// ClaimSeat creates a new ClaimedSeat for trader if one does not already
// exist (§3.1, opcode 1), returning its slot index either way.
func (m *Market) ClaimSeat(trader types.TraderKey) (types.BlockIndex, error) {
	if existing := m.Seats.Lookup(seatKey(trader)); existing.Valid() {
		return existing, nil
	}
	idx, err := m.allocateSlot()
	if err != nil {
		return types.NilBlock, err
	}
	slot := m.region.Slot(idx)
	rbtree.SetTag(slot, types.PayloadTagClaimedSeat)
	EncodeClaimedSeat(rbtree.Payload(slot), ClaimedSeat{Trader: trader})
	m.Seats.Insert(idx)
	m.log.Debug("market.claim_seat", "trader", trader, "slot", uint32(idx))
	return idx, nil
}

// Seat looks up trader's seat, returning (NilBlock, ErrSeatNotFound) if
// they have none.
func (m *Market) Seat(trader types.TraderKey) (types.BlockIndex, error) {
	idx := m.Seats.Lookup(seatKey(trader))
	if !idx.Valid() {
		return types.NilBlock, clobErrors.New(clobErrors.ErrSeatNotFound, "trader has not claimed a seat in this market")
	}
	return idx, nil
}

// SeatAt decodes the ClaimedSeat stored at idx.
func (m *Market) SeatAt(idx types.BlockIndex) ClaimedSeat {
	return DecodeClaimedSeat(rbtree.Payload(m.region.Slot(idx)))
}

// PutSeatAt re-encodes a ClaimedSeat in place at idx.
func (m *Market) PutSeatAt(idx types.BlockIndex, seat ClaimedSeat) {
	EncodeClaimedSeat(rbtree.Payload(m.region.Slot(idx)), seat)
}

// CloseSeat releases an empty, unlocked seat back to the free list (§4.3
// edge case): a seat with any nonzero available or locked balance is
// rejected here with ErrSeatNotEmpty.
func (m *Market) CloseSeat(idx types.BlockIndex) error {
	seat := m.SeatAt(idx)
	if seat.BaseAvailable != 0 || seat.QuoteAvailable != 0 || seat.BaseLocked != 0 || seat.QuoteLocked != 0 {
		return clobErrors.New(clobErrors.ErrSeatNotEmpty, "seat still holds balance")
	}
	m.Seats.Remove(idx)
	m.freeSlot(idx)
	return nil
}

// InsertRestingOrder allocates a new slot, encodes order into it, and
// inserts it into the appropriate side's tree, returning the new slot's
// index.
func (m *Market) InsertRestingOrder(order RestingOrder) (types.BlockIndex, error) {
	idx, err := m.allocateSlot()
	if err != nil {
		return types.NilBlock, err
	}
	slot := m.region.Slot(idx)
	rbtree.SetTag(slot, types.PayloadTagRestingOrder)
	EncodeRestingOrder(rbtree.Payload(slot), order)
	m.treeForSide(order.Side).Insert(idx)
	return idx, nil
}

// RemoveRestingOrder unlinks and frees a resting order's slot.
func (m *Market) RemoveRestingOrder(idx types.BlockIndex, side types.Side) {
	m.treeForSide(side).Remove(idx)
	m.freeSlot(idx)
}

// RestingOrderAt decodes the RestingOrder stored at idx.
func (m *Market) RestingOrderAt(idx types.BlockIndex) RestingOrder {
	return DecodeRestingOrder(rbtree.Payload(m.region.Slot(idx)))
}

// PatchRestingRemaining updates a resting order's remaining size in place
// after a partial fill, without disturbing its tree position (remaining
// size is not part of either side's ordering key).
func (m *Market) PatchRestingRemaining(idx types.BlockIndex, v types.BaseAtoms) {
	SetBaseRemaining(rbtree.Payload(m.region.Slot(idx)), v)
}

// SeatTrader returns the TraderKey owning seatIdx.
func (m *Market) SeatTrader(seatIdx types.BlockIndex) types.TraderKey {
	return m.SeatAt(seatIdx).Trader
}

func (m *Market) treeForSide(side types.Side) *rbtree.Tree {
	if side == types.SideBid {
		return m.Bids
	}
	return m.Asks
}

// RefreshBestPrices updates the header's cached best-bid/best-ask display
// fields from the trees' current extrema (see DESIGN.md: this cache is a
// read-model convenience, never consulted by matching itself).
func (m *Market) RefreshBestPrices() {
	if idx := m.Bids.Max(); idx.Valid() {
		m.Header.SetBestBid(m.RestingOrderAt(idx).Price)
	} else {
		m.Header.SetBestBid(types.Price{})
	}
	if idx := m.Asks.Min(); idx.Valid() {
		m.Header.SetBestAsk(m.RestingOrderAt(idx).Price)
	} else {
		m.Header.SetBestAsk(types.Price{})
	}
}

// Validate checks the allocator free list and all three trees' red-black
// invariants (§8's structural-soundness property).
func (m *Market) Validate() error {
	if err := m.allocator.Validate(m.Header.FreeHead(), m.Header.SlotCount()); err != nil {
		return err
	}
	if err := m.Bids.Validate(); err != nil {
		return err
	}
	if err := m.Asks.Validate(); err != nil {
		return err
	}
	return m.Seats.Validate()
}
