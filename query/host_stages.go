package query

import (
	"strings"

	"github.com/google/btree"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/errors"
)

// PartNameFilter is the predicate the q9 template applies to p_name.
const PartNameFilter = "green"

// PartFilter scans the part table on the host and writes the keys of matching
// parts into column 0 of th0. The part table itself never visits the device.
func PartFilter(part *buffer.Table, th0 *buffer.Table) error {
	out := 0
	for row := 0; row < part.RowCount(); row++ {
		if !strings.Contains(part.StringAt(1, row), PartNameFilter) {
			continue
		}
		if out >= th0.Capacity() {
			return errors.Errorf("filtered part keys overflow %s capacity %d", th0.Name(), th0.Capacity())
		}
		th0.SetIntAt(0, out, part.IntAt(0, row))
		out++
	}
	return th0.SetRowCount(out)
}

type groupKey struct {
	nation int64
	year   int64
}

// GroupBy aggregates the final join output (read back from the device into tk0)
// into per (nation, year) profit sums. Amounts are integer cents:
// extendedprice * (100 - discount) / 100 - supplycost * quantity, with discount
// in whole percent. Output order is unspecified; Sort orders it.
func GroupBy(joined *buffer.Table, out *buffer.Table) error {
	sums := make(map[groupKey]int64)
	for row := 0; row < joined.RowCount(); row++ {
		rowid := joined.IntAt(0, row)
		year := joined.IntAt(1, row) / 10000
		extprice := joined.IntAt(2, row)
		discount := joined.IntAt(3, row)
		quantity := joined.IntAt(4, row)
		supplycost := joined.IntAt(5, row)
		amount := extprice*(100-discount)/100 - supplycost*quantity
		sums[groupKey{nation: rowid, year: year}] += amount
	}
	if len(sums) > out.Capacity() {
		return errors.Errorf("group count %d overflows %s capacity %d", len(sums), out.Name(), out.Capacity())
	}
	row := 0
	for key, amount := range sums {
		out.SetIntAt(0, row, key.nation)
		out.SetIntAt(1, row, key.year)
		out.SetIntAt(2, row, amount)
		row++
	}
	return out.SetRowCount(row)
}

type resultItem struct {
	name   string
	year   int64
	nation int64
	amount int64
}

func (r resultItem) Less(than btree.Item) bool {
	o := than.(resultItem)
	if r.name != o.name {
		return r.name < o.name
	}
	// year descends within a nation
	if r.year != o.year {
		return r.year > o.year
	}
	return r.nation < o.nation
}

// Sort orders the grouped rows by nation name ascending then year descending,
// resolving nation row ids against the nation table's name column.
func Sort(grouped *buffer.Table, nation *buffer.Table, result *buffer.Table) error {
	tree := btree.New(8)
	for row := 0; row < grouped.RowCount(); row++ {
		rowid := grouped.IntAt(0, row)
		if rowid < 0 || int(rowid) >= nation.RowCount() {
			return errors.Errorf("nation row id %d out of range", rowid)
		}
		tree.ReplaceOrInsert(resultItem{
			name:   nation.StringAt(1, int(rowid)),
			year:   grouped.IntAt(1, row),
			nation: rowid,
			amount: grouped.IntAt(2, row),
		})
	}
	if tree.Len() > result.Capacity() {
		return errors.Errorf("result rows %d overflow %s capacity %d", tree.Len(), result.Name(), result.Capacity())
	}
	row := 0
	tree.Ascend(func(item btree.Item) bool {
		r := item.(resultItem)
		result.SetIntAt(0, row, r.nation)
		result.SetIntAt(1, row, r.year)
		result.SetIntAt(2, row, r.amount)
		row++
		return true
	})
	return result.SetRowCount(row)
}
