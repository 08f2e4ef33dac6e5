package common

import (
	"encoding/binary"
)

func AppendUint32ToBufferLE(buffer []byte, v uint32) []byte {
	return append(buffer, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func AppendUint64ToBufferLE(buffer []byte, v uint64) []byte {
	return append(buffer, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func ReadUint32FromBufferLE(buffer []byte, offset int) (uint32, int) {
	v := binary.LittleEndian.Uint32(buffer[offset:])
	return v, offset + 4
}

func ReadUint64FromBufferLE(buffer []byte, offset int) (uint64, int) {
	v := binary.LittleEndian.Uint64(buffer[offset:])
	return v, offset + 8
}

func WriteUint32ToBufferLE(buffer []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buffer[offset:], v)
}

func WriteUint64ToBufferLE(buffer []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(buffer[offset:], v)
}

// ReadIntFromBufferLE reads a width byte little-endian signed integer. Widths of
// 4 and 8 are supported, matching the column widths the kernels understand.
func ReadIntFromBufferLE(buffer []byte, offset int, width int) int64 {
	if width == 8 {
		v, _ := ReadUint64FromBufferLE(buffer, offset)
		return int64(v)
	}
	v, _ := ReadUint32FromBufferLE(buffer, offset)
	return int64(int32(v))
}

// WriteIntToBufferLE writes a width byte little-endian signed integer.
func WriteIntToBufferLE(buffer []byte, offset int, width int, v int64) {
	if width == 8 {
		WriteUint64ToBufferLE(buffer, offset, uint64(v))
		return
	}
	WriteUint32ToBufferLE(buffer, offset, uint32(int32(v)))
}
