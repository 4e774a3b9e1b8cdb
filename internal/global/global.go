package global

import (
	"github.com/merl-labs/clob/internal/alloc"
	"github.com/merl-labs/clob/internal/rbtree"
	clobErrors "github.com/merl-labs/clob/pkg/errors"
	"github.com/merl-labs/clob/pkg/interfaces"
	"github.com/merl-labs/clob/pkg/types"
)

// Region is the global account's dynamic byte region: GlobalSlotSize
// slots shared by the trader-identity tree and the balance-ordered
// deposit tree.
type Region struct{ buf []byte }

func NewRegion(buf []byte) *Region { return &Region{buf: buf} }
func (r *Region) Bytes() []byte    { return r.buf }
func (r *Region) Slot(idx types.BlockIndex) []byte {
	off := uint64(idx) * uint64(types.GlobalSlotSize)
	return r.buf[off : off+uint64(types.GlobalSlotSize)]
}
func (r *Region) Grow(newBuf []byte) { r.buf = newBuf }

// Global bundles a global account's header, region, allocator, and its
// two trees into one handle (§3.2, §6.1 opcodes 7-12).
type Global struct {
	Header    *Header
	region    *Region
	allocator *alloc.Allocator
	Traders   *rbtree.Tree
	Deposits  *rbtree.Tree
	log       interfaces.Logger
}

func Open(header *Header, region *Region, log interfaces.Logger) *Global {
	if log == nil {
		log = interfaces.NoopLogger{}
	}
	a := alloc.New(region, types.GlobalSlotSize, log)
	return &Global{
		Header:    header,
		region:    region,
		allocator: a,
		Traders:   rbtree.New(region, traderComparator, header.TraderRootRef()),
		Deposits:  rbtree.New(region, depositComparator, header.DepositRootRef()),
		log:       log,
	}
}

// CreateGlobal initializes a fresh global account (§6.1, opcode 7).
func CreateGlobal(headerRaw, regionBuf []byte, mint types.TraderKey, maxTraders uint32, log interfaces.Logger) (*Global, error) {
	header, err := WrapHeader(headerRaw)
	if err != nil {
		return nil, err
	}
	if maxTraders == 0 || maxTraders > types.MaxGlobalTraders {
		return nil, clobErrors.Newf(clobErrors.ErrInvalidInput, "max traders must be in [1,%d]", types.MaxGlobalTraders)
	}
	header.SetDiscriminant(types.DiscriminantGlobal)
	header.SetMint(mint)
	header.TraderRootRef().Set(types.NilBlock)
	header.DepositRootRef().Set(types.NilBlock)
	header.SetFreeHead(types.NilBlock)
	header.SetSlotCount(0)
	header.SetMaxTraders(maxTraders)
	header.SetMemberCount(0)

	if len(regionBuf)%types.GlobalSlotSize != 0 {
		return nil, clobErrors.Newf(clobErrors.ErrInvalidInput, "region length %d is not a multiple of slot size %d", len(regionBuf), types.GlobalSlotSize)
	}
	return Open(header, NewRegion(regionBuf), log), nil
}

func (g *Global) allocateSlot() (types.BlockIndex, error) {
	idx, newHead, newCount, err := g.allocator.Allocate(g.Header.FreeHead(), g.Header.SlotCount())
	if err != nil {
		return types.NilBlock, err
	}
	g.Header.SetFreeHead(newHead)
	g.Header.SetSlotCount(newCount)
	rbtree.ResetHeader(g.region.Slot(idx))
	return idx, nil
}

func (g *Global) freeSlot(idx types.BlockIndex) {
	g.Header.SetFreeHead(g.allocator.Free(idx, g.Header.FreeHead()))
}

// Expand grows the dynamic region (§6.1 opcode 5 applies to global
// accounts the same way it applies to markets).
func (g *Global) Expand(newBuf []byte) error {
	if len(newBuf) <= len(g.region.Bytes()) || len(newBuf)%types.GlobalSlotSize != 0 {
		return clobErrors.New(clobErrors.ErrInvalidInput, "invalid expand buffer size")
	}
	g.region.Grow(newBuf)
	return nil
}

// trader looks up a GlobalTrader's slot by identity.
func (g *Global) trader(key types.TraderKey) types.BlockIndex {
	return g.Traders.Lookup(traderKey(key))
}

// AddTrader joins trader to the pool with an opening deposit of amount
// (§6.1, opcode 8; §4.6: "a new trader joins by depositing strictly more
// than the current minimum"). If the pool is below capacity, admission is
// unconditional. If the pool is at capacity, admission requires amount to
// strictly exceed the current minimum-balance member's balance
// (Deposits.Max()); when it does, that member is evicted to make room,
// and when it doesn't, AddTrader fails with ErrGlobalAtCapacity and makes
// no state change at all — no eviction, no slot allocated (§7, §8
// scenario 6).
func (g *Global) AddTrader(trader types.TraderKey, amount uint64, joinedSlot types.Slot) (evicted *types.TraderKey, err error) {
	if g.trader(trader).Valid() {
		return nil, nil
	}
	if g.Header.MemberCount() >= g.Header.MaxTraders() {
		candidateIdx := g.Deposits.Max()
		if !candidateIdx.Valid() {
			return nil, clobErrors.New(clobErrors.ErrGlobalAtCapacity, "pool full with no eviction candidate")
		}
		candidate := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(candidateIdx)))
		if amount <= candidate.Balance {
			return nil, clobErrors.New(clobErrors.ErrGlobalAtCapacity, "new deposit does not exceed current minimum balance")
		}
		ev, everr := g.evictMinimum()
		if everr != nil {
			return nil, everr
		}
		evicted = &ev
	}

	depIdx, err := g.allocateSlot()
	if err != nil {
		return evicted, err
	}
	depSlot := g.region.Slot(depIdx)
	rbtree.SetTag(depSlot, types.PayloadTagGlobalDeposit)
	EncodeGlobalDeposit(rbtree.Payload(depSlot), GlobalDeposit{Trader: trader, Balance: amount})
	g.Deposits.Insert(depIdx)

	trIdx, err := g.allocateSlot()
	if err != nil {
		return evicted, err
	}
	trSlot := g.region.Slot(trIdx)
	rbtree.SetTag(trSlot, types.PayloadTagGlobalTrader)
	EncodeGlobalTrader(rbtree.Payload(trSlot), GlobalTrader{Trader: trader, DepositIndex: depIdx, JoinedSlot: joinedSlot})
	g.Traders.Insert(trIdx)

	g.Header.SetMemberCount(g.Header.MemberCount() + 1)
	g.log.Info("global.add_trader", "trader", trader)
	return evicted, nil
}

// evictMinimum removes the lowest-balance member (§3.2: "bounded-seat
// eviction"), returning their funds to the caller's responsibility (the
// instruction layer is expected to have already drained or returned any
// remaining balance via TokenVault before calling AddTrader, or to accept
// that an evicted trader's residual balance is forfeited to the pool
// per the deployment's configured policy — see DESIGN.md Open Question).
// EvictMinimum forces eviction of the current minimum-balance member
// (§6.1, opcode 11 — a permissionless instruction any caller may invoke
// to reclaim a seat without waiting for AddTrader pressure).
func (g *Global) EvictMinimum() (types.TraderKey, error) {
	return g.evictMinimum()
}

func (g *Global) evictMinimum() (types.TraderKey, error) {
	depIdx := g.Deposits.Max()
	if !depIdx.Valid() {
		return types.TraderKey{}, clobErrors.New(clobErrors.ErrGlobalAtCapacity, "pool full with no eviction candidate")
	}
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(depIdx)))
	if dep.Locked != 0 {
		return types.TraderKey{}, clobErrors.New(clobErrors.ErrGlobalStillBacked, "eviction candidate still backs a resting order")
	}
	trIdx := g.trader(dep.Trader)
	if !trIdx.Valid() {
		return types.TraderKey{}, clobErrors.New(clobErrors.ErrCorruptTree, "deposit has no matching trader record")
	}

	g.Deposits.Remove(depIdx)
	g.freeSlot(depIdx)
	g.Traders.Remove(trIdx)
	g.freeSlot(trIdx)
	g.Header.SetMemberCount(g.Header.MemberCount() - 1)
	g.log.Info("global.evict", "trader", dep.Trader, "balance", dep.Balance)
	return dep.Trader, nil
}

// Deposit credits a member's global balance (§6.1, opcode 9), reinserting
// the deposit node at its same slot index since its ordering key
// (balance) changed — a plain unlink-then-relink of idx, never a
// different slot, so GlobalTrader.DepositIndex never needs updating.
func (g *Global) Deposit(trader types.TraderKey, amount uint64) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	sum := dep.Balance + amount
	if sum < dep.Balance {
		return clobErrors.New(clobErrors.ErrOverflow, "deposit overflows global balance")
	}
	dep.Balance = sum
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// Withdraw debits a member's available (unlocked) global balance (§6.1,
// opcode 10).
func (g *Global) Withdraw(trader types.TraderKey, amount uint64) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	available := dep.Balance - dep.Locked
	if amount > available {
		return clobErrors.New(clobErrors.ErrInsufficientFunds, "withdrawal exceeds available global balance")
	}
	dep.Balance -= amount
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// Settle applies a Global order's fill directly against the pool (the
// just-in-time settlement path: §4.4's Global order type draws funding
// from here instead of a market seat).
func (g *Global) Settle(trader types.TraderKey, side types.Side, base types.BaseAtoms, quote types.QuoteAtoms, priceLockedQuote types.QuoteAtoms) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	if side == types.SideBid {
		if uint64(priceLockedQuote) > dep.Locked {
			return clobErrors.New(clobErrors.ErrCorruptTree, "settlement exceeds locked global quote balance")
		}
		dep.Locked -= uint64(priceLockedQuote)
		spent := uint64(quote)
		if spent > dep.Balance {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "settlement exceeds global balance")
		}
		dep.Balance -= spent
	} else {
		if uint64(base) > dep.Locked {
			return clobErrors.New(clobErrors.ErrCorruptTree, "settlement exceeds locked global base balance")
		}
		dep.Locked -= uint64(base)
		dep.Balance += uint64(quote)
	}
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// SettleImmediate applies a fill directly against a member's available
// balance with no corresponding prior lock, used for the taker side of a
// Global order match (a Global market/IOC-style leg that crosses the
// book immediately rather than resting first).
func (g *Global) SettleImmediate(trader types.TraderKey, side types.Side, base types.BaseAtoms, quote types.QuoteAtoms) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	if side == types.SideBid {
		spent := uint64(quote)
		available := dep.Balance - dep.Locked
		if spent > available {
			return clobErrors.New(clobErrors.ErrInsufficientFunds, "settlement exceeds available global balance")
		}
		dep.Balance -= spent
	} else {
		dep.Balance += uint64(quote)
	}
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// UnlockGlobalResidual releases a canceled or expired Global order's
// remaining locked backing funds, mirroring LockForGlobalOrder's amount
// computation (§4.3, §4.5).
func (g *Global) UnlockGlobalResidual(trader types.TraderKey, side types.Side, baseRemaining types.BaseAtoms, price types.Price) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	var release uint64
	if side == types.SideBid {
		locked, ok := types.LockedQuoteForBid(baseRemaining, price)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "locked quote amount overflows")
		}
		release = uint64(locked)
	} else {
		release = uint64(baseRemaining)
	}
	if release > dep.Locked {
		release = dep.Locked
	}
	dep.Locked -= release
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// LockForGlobalOrder reserves funds ahead of resting a Global order.
func (g *Global) LockForGlobalOrder(trader types.TraderKey, side types.Side, baseAtoms types.BaseAtoms, price types.Price) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))

	var need uint64
	if side == types.SideBid {
		locked, ok := types.LockedQuoteForBid(baseAtoms, price)
		if !ok {
			return clobErrors.New(clobErrors.ErrOverflow, "locked quote amount overflows")
		}
		need = uint64(locked)
	} else {
		need = uint64(baseAtoms)
	}
	available := dep.Balance - dep.Locked
	if need > available {
		return clobErrors.New(clobErrors.ErrInsufficientFunds, "insufficient global balance to rest order")
	}
	dep.Locked += need
	g.reinsertDeposit(tr.DepositIndex, dep)
	return nil
}

// reinsertDeposit unlinks and relinks idx within the deposit tree at its
// (possibly changed) ordering key, without touching the allocator: same
// slot index throughout, so GlobalTrader.DepositIndex is never stale.
func (g *Global) reinsertDeposit(idx types.BlockIndex, dep GlobalDeposit) {
	g.Deposits.Remove(idx)
	EncodeGlobalDeposit(rbtree.Payload(g.region.Slot(idx)), dep)
	rbtree.ResetHeader(g.region.Slot(idx))
	g.Deposits.Insert(idx)
}

// Clean removes a zero-balance, zero-locked member who is not the
// deployment's concern to keep seated (§6.1, opcode 12 — a permissionless
// garbage-collection instruction any caller may invoke).
func (g *Global) Clean(trader types.TraderKey) error {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	dep := DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex)))
	if dep.Balance != 0 || dep.Locked != 0 {
		return clobErrors.New(clobErrors.ErrGlobalStillBacked, "member still holds balance")
	}

	g.Deposits.Remove(tr.DepositIndex)
	g.freeSlot(tr.DepositIndex)
	g.Traders.Remove(trIdx)
	g.freeSlot(trIdx)
	g.Header.SetMemberCount(g.Header.MemberCount() - 1)
	return nil
}

// Deposit lookup helpers used by internal/matching for Global order fills.

// Balance returns a member's current global balance and locked amount.
func (g *Global) Balance(trader types.TraderKey) (GlobalDeposit, error) {
	trIdx := g.trader(trader)
	if !trIdx.Valid() {
		return GlobalDeposit{}, clobErrors.New(clobErrors.ErrGlobalNotFound, "trader is not a pool member")
	}
	tr := DecodeGlobalTrader(rbtree.Payload(g.region.Slot(trIdx)))
	return DecodeGlobalDeposit(rbtree.Payload(g.region.Slot(tr.DepositIndex))), nil
}

// Validate checks the allocator free list and both trees' invariants.
func (g *Global) Validate() error {
	if err := g.allocator.Validate(g.Header.FreeHead(), g.Header.SlotCount()); err != nil {
		return err
	}
	if err := g.Traders.Validate(); err != nil {
		return err
	}
	return g.Deposits.Validate()
}
