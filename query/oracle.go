package query

import (
	"strings"

	"github.com/fabriqdb/fabriq/buffer"
)

// ReferenceResult computes the q9 result entirely on the host with ordinary maps,
// independent of the orchestration layer and the simulated kernels. The tests use
// it as the golden oracle for the accelerated pipeline.
func ReferenceResult(t *Tables, result *buffer.Table) error {
	filtered := make(map[int64]struct{})
	for row := 0; row < t.Part.RowCount(); row++ {
		if strings.Contains(t.Part.StringAt(1, row), PartNameFilter) {
			filtered[t.Part.IntAt(0, row)] = struct{}{}
		}
	}

	type psKey struct {
		partkey int64
		suppkey int64
	}
	supplycost := make(map[psKey]int64)
	for row := 0; row < t.PartSupp.RowCount(); row++ {
		k := psKey{partkey: t.PartSupp.IntAt(0, row), suppkey: t.PartSupp.IntAt(1, row)}
		if _, ok := filtered[k.partkey]; ok {
			supplycost[k] = t.PartSupp.IntAt(2, row)
		}
	}

	nationkey := make(map[int64]int64)
	for row := 0; row < t.Supplier.RowCount(); row++ {
		nationkey[t.Supplier.IntAt(0, row)] = t.Supplier.IntAt(1, row)
	}
	orderdate := make(map[int64]int64)
	for row := 0; row < t.Orders.RowCount(); row++ {
		orderdate[t.Orders.IntAt(0, row)] = t.Orders.IntAt(1, row)
	}
	nationRow := make(map[int64]int64)
	for row := 0; row < t.Nation.RowCount(); row++ {
		nationRow[t.Nation.IntAt(0, row)] = t.Nation.IntAt(2, row)
	}

	sums := make(map[groupKey]int64)
	for row := 0; row < t.Lineitem.RowCount(); row++ {
		k := psKey{partkey: t.Lineitem.IntAt(1, row), suppkey: t.Lineitem.IntAt(0, row)}
		cost, ok := supplycost[k]
		if !ok {
			continue
		}
		nk, ok := nationkey[k.suppkey]
		if !ok {
			continue
		}
		date, ok := orderdate[t.Lineitem.IntAt(2, row)]
		if !ok {
			continue
		}
		rowid, ok := nationRow[nk]
		if !ok {
			continue
		}
		extprice := t.Lineitem.IntAt(3, row)
		discount := t.Lineitem.IntAt(4, row)
		quantity := t.Lineitem.IntAt(5, row)
		amount := extprice*(100-discount)/100 - cost*quantity
		sums[groupKey{nation: rowid, year: date / 10000}] += amount
	}

	grouped := buffer.NewTable("oracle_grouped", t.Tk2.Capacity()).
		AddColumn(buffer.Column{Name: "grp_nation", Width: 4}).
		AddColumn(buffer.Column{Name: "grp_year", Width: 4}).
		AddColumn(buffer.Column{Name: "grp_amount", Width: 8})
	if err := grouped.AllocateHost(); err != nil {
		return err
	}
	row := 0
	for key, amount := range sums {
		grouped.SetIntAt(0, row, key.nation)
		grouped.SetIntAt(1, row, key.year)
		grouped.SetIntAt(2, row, amount)
		row++
	}
	if err := grouped.SetRowCount(row); err != nil {
		return err
	}
	return Sort(grouped, t.Nation, result)
}
