// Package rbtree implements the index-based red-black tree (L2): an
// ordinary CLRS red-black tree where every pointer is a 32-bit BlockIndex
// into a shared byte region instead of a native Go pointer, so the whole
// structure survives a raw serialize/deserialize round trip unchanged.
// The approach mirrors tradSys's order-book indexing
// (internal/matching/unified_engine.go uses slice indices as stable order
// handles across its pooled buffers) generalized here to a full balanced
// tree instead of a flat slice.
package rbtree

import (
	"encoding/binary"

	"github.com/merl-labs/clob/pkg/types"
)

// Color is a node's red-black color.
type Color uint8

const (
	Black Color = iota
	Red
)

// Node header layout within a slot's first types.TreeHeaderSize bytes:
//
//	bytes 0:4   left   (BlockIndex, NilBlock if none)
//	bytes 4:8   right  (BlockIndex, NilBlock if none)
//	bytes 8:12  parent (BlockIndex, NilBlock if root)
//	byte  12    color  (0=black, 1=red)
//	byte  13    tag    (types.PayloadTag)
//	bytes 14:16 reserved
const (
	offLeft   = 0
	offRight  = 4
	offParent = 8
	offColor  = 12
	offTag    = 13
)

func left(slot []byte) types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(slot[offLeft:]))
}
func setLeft(slot []byte, v types.BlockIndex) {
	binary.LittleEndian.PutUint32(slot[offLeft:], uint32(v))
}
func right(slot []byte) types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(slot[offRight:]))
}
func setRight(slot []byte, v types.BlockIndex) {
	binary.LittleEndian.PutUint32(slot[offRight:], uint32(v))
}
func parent(slot []byte) types.BlockIndex {
	return types.BlockIndex(binary.LittleEndian.Uint32(slot[offParent:]))
}
func setParent(slot []byte, v types.BlockIndex) {
	binary.LittleEndian.PutUint32(slot[offParent:], uint32(v))
}
func color(slot []byte) Color { return Color(slot[offColor]) }
func setColor(slot []byte, c Color) { slot[offColor] = byte(c) }

// Tag returns the payload tag stamped in slot.
func Tag(slot []byte) types.PayloadTag { return types.PayloadTag(slot[offTag]) }

// SetTag stamps slot's payload tag.
func SetTag(slot []byte, tag types.PayloadTag) { slot[offTag] = byte(tag) }

// Payload returns the mutable payload region following the node header.
func Payload(slot []byte) []byte { return slot[types.TreeHeaderSize:] }

// ResetHeader zeroes a freshly allocated slot's tree header fields to the
// sentinel values Insert expects from an unlinked node.
func ResetHeader(slot []byte) {
	setLeft(slot, types.NilBlock)
	setRight(slot, types.NilBlock)
	setParent(slot, types.NilBlock)
	setColor(slot, Red)
}
