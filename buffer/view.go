package buffer

import (
	"github.com/fabriqdb/fabriq/common"
	"github.com/fabriqdb/fabriq/errors"
)

// View interprets a raw storage region laid out by a Table. Kernels use it to read
// their input buffers and to write rows and the row count into their output buffer
// without any host-side metadata.
type View struct {
	raw      []byte
	capacity int
	widths   []int
	offsets  []int
}

func ParseView(raw []byte) (*View, error) {
	if len(raw) < 16 {
		return nil, errors.New("buffer too small for table header")
	}
	magic, _ := common.ReadUint32FromBufferLE(raw, 0)
	if magic != TableMagic {
		return nil, errors.Errorf("bad table magic %x", magic)
	}
	capacity, _ := common.ReadUint32FromBufferLE(raw, 8)
	colCount, _ := common.ReadUint32FromBufferLE(raw, 12)
	if colCount == 0 || int(colCount) > MaxColumns {
		return nil, errors.Errorf("bad column count %d", colCount)
	}
	v := &View{raw: raw, capacity: int(capacity)}
	off := dataOffset(int(colCount))
	for i := 0; i < int(colCount); i++ {
		width, _ := common.ReadUint32FromBufferLE(raw, 16+4*i)
		v.widths = append(v.widths, int(width))
		v.offsets = append(v.offsets, off)
		off += int(width) * int(capacity)
	}
	if off > len(raw) {
		return nil, errors.Errorf("buffer %d bytes too small for declared layout %d bytes", len(raw), off)
	}
	return v, nil
}

func (v *View) RowCount() int {
	n, _ := common.ReadUint32FromBufferLE(v.raw, 4)
	return int(n)
}

func (v *View) SetRowCount(n int) error {
	if n < 0 || n > v.capacity {
		return errors.Errorf("row count %d exceeds capacity %d", n, v.capacity)
	}
	common.WriteUint32ToBufferLE(v.raw, 4, uint32(n))
	return nil
}

func (v *View) Capacity() int {
	return v.capacity
}

func (v *View) ColumnCount() int {
	return len(v.widths)
}

func (v *View) Width(col int) int {
	return v.widths[col]
}

func (v *View) IntAt(col int, row int) int64 {
	return common.ReadIntFromBufferLE(v.raw, v.offsets[col]+row*v.widths[col], v.widths[col])
}

func (v *View) SetIntAt(col int, row int, val int64) {
	common.WriteIntToBufferLE(v.raw, v.offsets[col]+row*v.widths[col], v.widths[col], val)
}
