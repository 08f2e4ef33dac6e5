package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint32RoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendUint32ToBufferLE(buf, 0)
	buf = AppendUint32ToBufferLE(buf, 1234567)
	buf = AppendUint32ToBufferLE(buf, 0xffffffff)
	v, off := ReadUint32FromBufferLE(buf, 0)
	require.Equal(t, uint32(0), v)
	v, off = ReadUint32FromBufferLE(buf, off)
	require.Equal(t, uint32(1234567), v)
	v, _ = ReadUint32FromBufferLE(buf, off)
	require.Equal(t, uint32(0xffffffff), v)
}

func TestUint64RoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendUint64ToBufferLE(buf, 12345678901234)
	v, off := ReadUint64FromBufferLE(buf, 0)
	require.Equal(t, uint64(12345678901234), v)
	require.Equal(t, 8, off)

	WriteUint64ToBufferLE(buf, 0, 987654321)
	v, _ = ReadUint64FromBufferLE(buf, 0)
	require.Equal(t, uint64(987654321), v)
}

func TestSignedIntWidths(t *testing.T) {
	buf := make([]byte, 16)
	WriteIntToBufferLE(buf, 0, 4, -42)
	require.Equal(t, int64(-42), ReadIntFromBufferLE(buf, 0, 4))

	WriteIntToBufferLE(buf, 8, 8, -123456789012345)
	require.Equal(t, int64(-123456789012345), ReadIntFromBufferLE(buf, 8, 8))

	WriteIntToBufferLE(buf, 4, 4, 1<<30)
	require.Equal(t, int64(1<<30), ReadIntFromBufferLE(buf, 4, 4))
}
