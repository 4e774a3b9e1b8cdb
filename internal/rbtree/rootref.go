package rbtree

import "github.com/merl-labs/clob/pkg/types"

// VarRootRef is a RootRef backed by a plain in-memory variable, for
// standalone trees that are not embedded in a serialized account header.
type VarRootRef struct {
	v types.BlockIndex
}

// NewVarRootRef constructs a VarRootRef starting at NilBlock.
func NewVarRootRef() *VarRootRef { return &VarRootRef{v: types.NilBlock} }

func (r *VarRootRef) Get() types.BlockIndex { return r.v }
func (r *VarRootRef) Set(v types.BlockIndex) { r.v = v }
