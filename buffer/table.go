package buffer

import (
	"fmt"

	"github.com/fabriqdb/fabriq/common"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

// Table layout, identical in host and device storage:
//
//	word 0  magic
//	word 1  row count
//	word 2  row capacity
//	word 3  column count
//	word 4+ per-column byte widths
//	...     zero padding up to a 64 byte boundary
//	        column 0 data (capacity * width bytes), column 1 data, ...
//
// Kernels parse the same header, so the orchestrator and the kernels never need a
// side channel for row counts - a kernel writes its output row count straight into
// the output buffer's header.
const (
	TableMagic  = 0x46425154
	headerAlign = 64
	MaxColumns  = (headerAlign - 16) / 4
)

// Column describes one column of a Table. Nullable and RowID are schema metadata
// consumed by loaders (a RowID column is generated, not loaded); kernels only see
// the width.
type Column struct {
	Name     string
	Width    int
	Nullable bool
	RowID    bool
}

// Table is a columnar memory region mirrored in host and device address spaces.
// Host storage is exclusively owned by the Table; device storage is allocated once
// per device context and released with the Table or the context.
type Table struct {
	name     string
	capacity int
	cols     []Column
	host     []byte
	dev      device.Mem
}

func NewTable(name string, capacity int) *Table {
	return &Table{name: name, capacity: capacity}
}

// AddColumn declares the next column. Columns must be declared before
// AllocateHost seals the schema.
func (t *Table) AddColumn(col Column) *Table {
	if t.host != nil {
		panic(fmt.Sprintf("table %s: cannot add column after host allocation", t.name))
	}
	t.cols = append(t.cols, col)
	return t
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Capacity() int {
	return t.capacity
}

func (t *Table) ColumnCount() int {
	return len(t.cols)
}

func (t *Table) Column(i int) Column {
	return t.cols[i]
}

// AllocateHost builds the host storage. Called exactly once, after all columns are
// declared.
func (t *Table) AllocateHost() error {
	if t.host != nil {
		return errors.Errorf("table %s: host storage already allocated", t.name)
	}
	if t.capacity <= 0 {
		return errors.NewResourceError(fmt.Sprintf("table %s has invalid capacity %d", t.name, t.capacity))
	}
	if len(t.cols) == 0 || len(t.cols) > MaxColumns {
		return errors.NewResourceError(fmt.Sprintf("table %s must have between 1 and %d columns", t.name, MaxColumns))
	}
	for _, col := range t.cols {
		if col.Width <= 0 {
			return errors.NewResourceError(fmt.Sprintf("table %s column %s has invalid width %d", t.name, col.Name, col.Width))
		}
	}
	t.host = make([]byte, t.byteSize())
	common.WriteUint32ToBufferLE(t.host, 0, TableMagic)
	common.WriteUint32ToBufferLE(t.host, 8, uint32(t.capacity))
	common.WriteUint32ToBufferLE(t.host, 12, uint32(len(t.cols)))
	for i, col := range t.cols {
		common.WriteUint32ToBufferLE(t.host, 16+4*i, uint32(col.Width))
	}
	return nil
}

// AllocateDevice mirrors the table into the given device context. Called once per
// context, before any transfer referencing the table is issued.
func (t *Table) AllocateDevice(ctx device.Context) error {
	if t.host == nil {
		return errors.NewResourceError(fmt.Sprintf("table %s: allocate host storage first", t.name))
	}
	if t.dev != nil {
		return errors.NewResourceError(fmt.Sprintf("table %s: device storage already allocated", t.name))
	}
	mem, err := ctx.Alloc(t.name, len(t.host))
	if err != nil {
		return err
	}
	t.dev = mem
	return nil
}

// Release frees the device storage. Host storage lives as long as the Table.
func (t *Table) Release(ctx device.Context) error {
	if t.dev == nil {
		return nil
	}
	err := ctx.Free(t.dev)
	t.dev = nil
	return err
}

// HostBytes exposes the host storage for transfers.
func (t *Table) HostBytes() []byte {
	return t.host
}

// ColumnBytes returns the host storage region of column col, capacity rows long.
func (t *Table) ColumnBytes(col int) []byte {
	start := t.colOffset(col)
	return t.host[start : start+t.cols[col].Width*t.capacity]
}

// DeviceMem returns the device storage handle, or nil if not allocated.
func (t *Table) DeviceMem() device.Mem {
	return t.dev
}

func (t *Table) RowCount() int {
	if t.host == nil {
		return 0
	}
	v, _ := common.ReadUint32FromBufferLE(t.host, 4)
	return int(v)
}

func (t *Table) SetRowCount(n int) error {
	if t.host == nil {
		return errors.NewResourceError(fmt.Sprintf("table %s: host storage not allocated", t.name))
	}
	if n < 0 || n > t.capacity {
		return errors.NewResourceError(fmt.Sprintf("table %s: row count %d exceeds capacity %d", t.name, n, t.capacity))
	}
	common.WriteUint32ToBufferLE(t.host, 4, uint32(n))
	return nil
}

// IntAt reads column col at row as a signed integer, honouring the column width.
func (t *Table) IntAt(col int, row int) int64 {
	c := t.cols[col]
	return common.ReadIntFromBufferLE(t.host, t.colOffset(col)+row*c.Width, c.Width)
}

func (t *Table) SetIntAt(col int, row int, v int64) {
	c := t.cols[col]
	common.WriteIntToBufferLE(t.host, t.colOffset(col)+row*c.Width, c.Width, v)
}

// StringAt reads a fixed-width char column, trimming the zero padding.
func (t *Table) StringAt(col int, row int) string {
	c := t.cols[col]
	off := t.colOffset(col) + row*c.Width
	raw := t.host[off : off+c.Width]
	end := 0
	for end < len(raw) && raw[end] != 0 {
		end++
	}
	return string(raw[:end])
}

func (t *Table) SetStringAt(col int, row int, v string) {
	c := t.cols[col]
	off := t.colOffset(col) + row*c.Width
	raw := t.host[off : off+c.Width]
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, v)
}

func (t *Table) byteSize() int {
	size := dataOffset(len(t.cols))
	for _, col := range t.cols {
		size += col.Width * t.capacity
	}
	return size
}

func (t *Table) colOffset(col int) int {
	off := dataOffset(len(t.cols))
	for i := 0; i < col; i++ {
		off += t.cols[i].Width * t.capacity
	}
	return off
}

func dataOffset(colCount int) int {
	raw := 16 + 4*colCount
	return (raw + headerAlign - 1) / headerAlign * headerAlign
}
