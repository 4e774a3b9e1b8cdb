// Package snapshot compresses and decompresses raw account snapshots
// (a market or global header plus its dynamic region, exactly the byte
// layout internal/market and internal/global operate on in place) for
// storage or transport. Grounded on
// internal/performance/message_compressor.go's zstd usage: same library,
// same NewWriter/NewReader shape, one encoder/decoder reused across calls
// rather than allocated per snapshot.
package snapshot

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses account snapshots. A single Codec is
// safe for concurrent use — it owns one long-lived encoder and decoder,
// matching the teacher's pooled-compressor rationale of avoiding a fresh
// zstd window table allocation per message.
type Codec struct {
	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New builds a Codec at the given compression level.
func New(level zstd.EncoderLevel) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("snapshot: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("snapshot: new decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Snapshot is one account's header and dynamic region, captured together
// so a restore can validate they came from the same point in time.
type Snapshot struct {
	Header []byte
	Region []byte
}

// Compress encodes header+region into a single self-delimiting blob:
// a big-endian length prefix for Header, followed by Header, followed by
// the zstd-compressed Region.
func (c *Codec) Compress(snap Snapshot) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	headerLen := len(snap.Header)
	buf.WriteByte(byte(headerLen >> 24))
	buf.WriteByte(byte(headerLen >> 16))
	buf.WriteByte(byte(headerLen >> 8))
	buf.WriteByte(byte(headerLen))
	buf.Write(snap.Header)
	buf.Write(c.enc.EncodeAll(snap.Region, nil))
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (c *Codec) Decompress(blob []byte) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(blob) < 4 {
		return Snapshot{}, fmt.Errorf("snapshot: blob too short for header length prefix")
	}
	headerLen := int(blob[0])<<24 | int(blob[1])<<16 | int(blob[2])<<8 | int(blob[3])
	blob = blob[4:]
	if len(blob) < headerLen {
		return Snapshot{}, fmt.Errorf("snapshot: blob too short for declared header length %d", headerLen)
	}
	header := append([]byte(nil), blob[:headerLen]...)
	compressedRegion := blob[headerLen:]

	region, err := c.dec.DecodeAll(compressedRegion, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode region: %w", err)
	}
	return Snapshot{Header: header, Region: region}, nil
}

// Close releases the codec's encoder/decoder resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
