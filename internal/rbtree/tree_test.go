package rbtree

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/pkg/types"
)

const testSlotSize = types.TreeHeaderSize + 8

type testRegion struct {
	slots [][]byte
}

func newTestRegion(n int) *testRegion {
	r := &testRegion{slots: make([][]byte, n)}
	for i := range r.slots {
		r.slots[i] = make([]byte, testSlotSize)
	}
	return r
}

func (r *testRegion) Slot(idx types.BlockIndex) []byte { return r.slots[idx] }

func uintCmp(a, b []byte) int {
	av := binary.LittleEndian.Uint64(a)
	bv := binary.LittleEndian.Uint64(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func insertValue(t *testing.T, region *testRegion, tree *Tree, idx types.BlockIndex, v uint64) {
	slot := region.Slot(idx)
	ResetHeader(slot)
	binary.LittleEndian.PutUint64(Payload(slot), v)
	tree.Insert(idx)
	require.NoError(t, tree.Validate())
}

func TestInsertMaintainsInvariantsAndOrder(t *testing.T) {
	const n = 200
	region := newTestRegion(n)
	root := NewVarRootRef()
	tree := New(region, uintCmp, root)

	rng := rand.New(rand.NewSource(1))
	values := rng.Perm(n)
	for i, v := range values {
		insertValue(t, region, tree, types.BlockIndex(i), uint64(v))
	}

	var collected []uint64
	tree.InOrder(func(idx types.BlockIndex) bool {
		collected = append(collected, binary.LittleEndian.Uint64(Payload(region.Slot(idx))))
		return true
	})
	require.Len(t, collected, n)
	for i := 1; i < len(collected); i++ {
		require.Less(t, collected[i-1], collected[i])
	}

	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(Payload(region.Slot(tree.Min()))))
	require.Equal(t, uint64(n-1), binary.LittleEndian.Uint64(Payload(region.Slot(tree.Max()))))
}

func TestRemoveKeepsRemainingOrderAndInvariants(t *testing.T) {
	const n = 150
	region := newTestRegion(n)
	root := NewVarRootRef()
	tree := New(region, uintCmp, root)

	for i := 0; i < n; i++ {
		insertValue(t, region, tree, types.BlockIndex(i), uint64(i))
	}

	rng := rand.New(rand.NewSource(7))
	order := rng.Perm(n)
	removed := map[int]bool{}
	for _, i := range order[:n/2] {
		tree.Remove(types.BlockIndex(i))
		removed[i] = true
		require.NoError(t, tree.Validate())
	}

	var collected []uint64
	tree.InOrder(func(idx types.BlockIndex) bool {
		collected = append(collected, binary.LittleEndian.Uint64(Payload(region.Slot(idx))))
		return true
	})
	require.Len(t, collected, n-n/2)
	for i := 1; i < len(collected); i++ {
		require.Less(t, collected[i-1], collected[i])
	}
}

func TestRemovePreservesIdentityOfSurvivingIndices(t *testing.T) {
	// Three nodes where removing the root forces a successor relink;
	// every surviving slot's index must be unchanged afterward so any
	// external reference by BlockIndex stays valid.
	region := newTestRegion(3)
	root := NewVarRootRef()
	tree := New(region, uintCmp, root)

	insertValue(t, region, tree, 0, 10)
	insertValue(t, region, tree, 1, 20)
	insertValue(t, region, tree, 2, 5)

	tree.Remove(0)
	require.NoError(t, tree.Validate())

	require.Equal(t, uint64(5), binary.LittleEndian.Uint64(Payload(region.Slot(2))))
	require.Equal(t, uint64(20), binary.LittleEndian.Uint64(Payload(region.Slot(1))))

	found := tree.Lookup(Payload(region.Slot(1)))
	require.Equal(t, types.BlockIndex(1), found)
}

func TestSuccessorPredecessorRoundTrip(t *testing.T) {
	const n = 50
	region := newTestRegion(n)
	root := NewVarRootRef()
	tree := New(region, uintCmp, root)
	for i := 0; i < n; i++ {
		insertValue(t, region, tree, types.BlockIndex(i), uint64(i))
	}

	idx := tree.Min()
	for i := 0; i < n-1; i++ {
		next := tree.Successor(idx)
		require.True(t, next.Valid())
		require.Equal(t, idx, tree.Predecessor(next))
		idx = next
	}
	require.False(t, tree.Successor(idx).Valid())
}

func TestLookupMiss(t *testing.T) {
	region := newTestRegion(4)
	root := NewVarRootRef()
	tree := New(region, uintCmp, root)
	insertValue(t, region, tree, 0, 1)
	insertValue(t, region, tree, 1, 2)

	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, 99)
	require.False(t, tree.Lookup(key).Valid())
}
