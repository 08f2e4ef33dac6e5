package query

import (
	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/device"
)

// Column widths of the char columns in the q9 template.
const (
	PartNameLen   = 56
	NationNameLen = 26
)

// Capacities declares the row capacities of every table in the q9 pipeline. The
// defaults match the 1G scale factor data set; tests shrink them.
type Capacities struct {
	Part     int
	PartSupp int
	Supplier int
	Lineitem int
	Orders   int
	Nation   int
	Filtered int
	Scratch  int
	Grouped  int
}

func DefaultCapacities() Capacities {
	return Capacities{
		Part:     200000,
		PartSupp: 800000,
		Supplier: 10000,
		Lineitem: 6001215,
		Orders:   1500000,
		Nation:   25,
		Filtered: 13000,
		Scratch:  400000,
		Grouped:  10000,
	}
}

// Tables holds every buffer of the q9 pipeline: the six base tables, the filtered
// part keys (th0), the ping-pong scratch pair (tk0/tk1), the group-by output (tk2)
// and the sorted result.
type Tables struct {
	Part     *buffer.Table
	PartSupp *buffer.Table
	Supplier *buffer.Table
	Lineitem *buffer.Table
	Orders   *buffer.Table
	Nation   *buffer.Table

	Th0    *buffer.Table
	Tk0    *buffer.Table
	Tk1    *buffer.Table
	Tk2    *buffer.Table
	Result *buffer.Table

	// Tmp is the kernel-internal hash build scratch shared by all join stages.
	Tmp *buffer.Table
}

func NewTables(caps Capacities) *Tables {
	t := &Tables{}
	t.Part = buffer.NewTable("part", caps.Part).
		AddColumn(buffer.Column{Name: "p_partkey", Width: 4}).
		AddColumn(buffer.Column{Name: "p_name", Width: PartNameLen})
	t.PartSupp = buffer.NewTable("partsupp", caps.PartSupp).
		AddColumn(buffer.Column{Name: "ps_partkey", Width: 4}).
		AddColumn(buffer.Column{Name: "ps_suppkey", Width: 4}).
		AddColumn(buffer.Column{Name: "ps_supplycost", Width: 4})
	t.Supplier = buffer.NewTable("supplier", caps.Supplier).
		AddColumn(buffer.Column{Name: "s_suppkey", Width: 4}).
		AddColumn(buffer.Column{Name: "s_nationkey", Width: 4})
	t.Lineitem = buffer.NewTable("lineitem", caps.Lineitem).
		AddColumn(buffer.Column{Name: "l_suppkey", Width: 4}).
		AddColumn(buffer.Column{Name: "l_partkey", Width: 4}).
		AddColumn(buffer.Column{Name: "l_orderkey", Width: 4}).
		AddColumn(buffer.Column{Name: "l_extendedprice", Width: 4}).
		AddColumn(buffer.Column{Name: "l_discount", Width: 4}).
		AddColumn(buffer.Column{Name: "l_quantity", Width: 4})
	t.Orders = buffer.NewTable("orders", caps.Orders).
		AddColumn(buffer.Column{Name: "o_orderkey", Width: 4}).
		AddColumn(buffer.Column{Name: "o_orderdate", Width: 4})
	t.Nation = buffer.NewTable("nation", caps.Nation).
		AddColumn(buffer.Column{Name: "n_nationkey", Width: 4}).
		AddColumn(buffer.Column{Name: "n_name", Width: NationNameLen}).
		AddColumn(buffer.Column{Name: "n_rowid", Width: 4, RowID: true})

	t.Th0 = intermediate("th0", caps.Filtered, 4)
	t.Tk0 = intermediate("tk0", caps.Scratch, 8)
	t.Tk1 = intermediate("tk1", caps.Scratch, 8)
	t.Tk2 = buffer.NewTable("tk2", caps.Grouped).
		AddColumn(buffer.Column{Name: "grp_nation", Width: 4}).
		AddColumn(buffer.Column{Name: "grp_year", Width: 4}).
		AddColumn(buffer.Column{Name: "grp_amount", Width: 8})
	t.Result = buffer.NewTable("result", caps.Grouped).
		AddColumn(buffer.Column{Name: "r_nation", Width: 4}).
		AddColumn(buffer.Column{Name: "r_year", Width: 4}).
		AddColumn(buffer.Column{Name: "r_amount", Width: 8})
	t.Tmp = intermediate("tmp", 512, 8)
	return t
}

// intermediate builds a generic kernel intermediate with numCols int columns.
func intermediate(name string, capacity int, numCols int) *buffer.Table {
	t := buffer.NewTable(name, capacity)
	for i := 0; i < numCols; i++ {
		t.AddColumn(buffer.Column{Name: name + "_c" + string(rune('0'+i)), Width: 4})
	}
	return t
}

// AllocateHost allocates host storage for every table.
func (t *Tables) AllocateHost() error {
	for _, tb := range t.all() {
		if err := tb.AllocateHost(); err != nil {
			return err
		}
	}
	return nil
}

// AllocateDevice mirrors the device-resident tables into the context. Tk2 and
// Result stay host-only - group-by and sort run on the host.
func (t *Tables) AllocateDevice(ctx device.Context) error {
	for _, tb := range t.deviceResident() {
		if err := tb.AllocateDevice(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Release frees all device storage.
func (t *Tables) Release(ctx device.Context) error {
	var firstErr error
	for _, tb := range t.deviceResident() {
		if err := tb.Release(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tables) all() []*buffer.Table {
	return []*buffer.Table{t.Part, t.PartSupp, t.Supplier, t.Lineitem, t.Orders, t.Nation,
		t.Th0, t.Tk0, t.Tk1, t.Tk2, t.Result, t.Tmp}
}

func (t *Tables) deviceResident() []*buffer.Table {
	return []*buffer.Table{t.PartSupp, t.Supplier, t.Lineitem, t.Orders, t.Nation,
		t.Th0, t.Tk0, t.Tk1, t.Tmp}
}
