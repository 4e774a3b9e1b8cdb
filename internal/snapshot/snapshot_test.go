package snapshot

import (
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	c, err := New(zstd.SpeedDefault)
	require.NoError(t, err)
	defer c.Close()

	snap := Snapshot{
		Header: []byte("fixed-size-header-bytes"),
		Region: bytesRepeat("resting-order-slot", 200),
	}

	blob, err := c.Compress(snap)
	require.NoError(t, err)
	require.Less(t, len(blob), len(snap.Header)+len(snap.Region))

	got, err := c.Decompress(blob)
	require.NoError(t, err)
	require.Equal(t, snap.Header, got.Header)
	require.Equal(t, snap.Region, got.Region)
}

func TestDecompressRejectsTruncatedBlob(t *testing.T) {
	c, err := New(zstd.SpeedDefault)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress([]byte{0, 0})
	require.Error(t, err)
}

func TestDecompressRejectsShortHeader(t *testing.T) {
	c, err := New(zstd.SpeedDefault)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress([]byte{0, 0, 0, 10, 1, 2})
	require.Error(t, err)
}

func bytesRepeat(s string, n int) []byte {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return out
}
