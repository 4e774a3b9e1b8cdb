package testkit

import (
	"math/rand"

	"github.com/merl-labs/clob/pkg/types"
)

// Generator produces a deterministic pseudo-random stream of instructions
// for property tests (§8: "for all sequences of instructions"). Seeding it
// with the same value always reproduces the same sequence, so a failing
// run can be pinned down to one seed and replayed.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded deterministically from seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Op is one generated instruction. Only one of the *Params fields is set,
// selected by Kind.
type Op struct {
	Kind    OpKind
	Deposit types.DepositParams
	Order   types.PlaceOrderParams
	Cancel  types.CancelParams
}

type OpKind uint8

const (
	OpKindDeposit OpKind = iota
	OpKindWithdraw
	OpKindPlace
	OpKindCancel
)

// weightedKinds biases toward placing and depositing so that random
// sequences actually build up book depth instead of mostly cancelling
// nothing, while still exercising withdraw and cancel regularly.
var weightedKinds = []OpKind{
	OpKindDeposit, OpKindDeposit,
	OpKindPlace, OpKindPlace, OpKindPlace,
	OpKindWithdraw,
	OpKindCancel, OpKindCancel,
}

// Next generates one Op. maxBase and maxPriceMantissa bound the generated
// magnitudes so callers can keep sequences within a range that stays clear
// of overflow while still crossing the book regularly.
func (g *Generator) Next(maxBase, maxPriceMantissa uint32) Op {
	switch weightedKinds[g.rng.Intn(len(weightedKinds))] {
	case OpKindDeposit:
		return Op{Kind: OpKindDeposit, Deposit: types.DepositParams{Amount: uint64(1 + g.rng.Intn(int(maxBase)))}}
	case OpKindWithdraw:
		return Op{Kind: OpKindWithdraw, Deposit: types.DepositParams{Amount: uint64(1 + g.rng.Intn(int(maxBase)))}}
	case OpKindCancel:
		return Op{Kind: OpKindCancel}
	default:
		return Op{Kind: OpKindPlace, Order: g.randomOrder(maxBase, maxPriceMantissa)}
	}
}

func (g *Generator) randomOrder(maxBase, maxPriceMantissa uint32) types.PlaceOrderParams {
	orderTypes := []types.OrderType{types.OrderTypeLimit, types.OrderTypeLimit, types.OrderTypeImmediateOrCancel, types.OrderTypePostOnly}
	return types.PlaceOrderParams{
		BaseAtoms:     uint64(1 + g.rng.Intn(int(maxBase))),
		PriceMantissa: uint32(1 + g.rng.Intn(int(maxPriceMantissa))),
		PriceExponent: 0,
		IsBid:         g.rng.Intn(2) == 0,
		OrderType:     orderTypes[g.rng.Intn(len(orderTypes))],
	}
}

// Seed draws a fresh int64 from g for seeding an independent child
// generator with NewGenerator, useful for running the same kind of
// sequence against several accounts in one test without their draws
// interleaving.
func (g *Generator) Seed() int64 {
	return g.rng.Int63()
}
