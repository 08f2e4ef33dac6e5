package tpch

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/errors"
)

// Tables are stored on disk as one flat binary file per column, named
// <table>_<column>.dat, holding fixed width little-endian records with no header.
// Row-id columns are not stored - they are generated at load time.

func columnPath(dir string, table string, col string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.dat", table, col))
}

// LoadTable fills the host storage of t from dir. The row count is derived from
// the file sizes, which must agree across columns and fit the table's capacity.
func LoadTable(dir string, t *buffer.Table) error {
	rows := -1
	for i := 0; i < t.ColumnCount(); i++ {
		col := t.Column(i)
		if col.RowID {
			continue
		}
		path := columnPath(dir, t.Name(), col.Name)
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "loading column %s of table %s", col.Name, t.Name())
		}
		if len(data)%col.Width != 0 {
			return errors.Errorf("column file %s size %d is not a multiple of width %d", path, len(data), col.Width)
		}
		n := len(data) / col.Width
		if rows == -1 {
			rows = n
		} else if rows != n {
			return errors.Errorf("column file %s has %d rows, expected %d", path, n, rows)
		}
		if n > t.Capacity() {
			return errors.NewResourceError(
				fmt.Sprintf("column file %s has %d rows, table %s capacity is %d", path, n, t.Name(), t.Capacity()))
		}
		copy(t.ColumnBytes(i), data)
	}
	if rows == -1 {
		return errors.Errorf("table %s has no loadable columns", t.Name())
	}
	for i := 0; i < t.ColumnCount(); i++ {
		if t.Column(i).RowID {
			for row := 0; row < rows; row++ {
				t.SetIntAt(i, row, int64(row))
			}
		}
	}
	if err := t.SetRowCount(rows); err != nil {
		return err
	}
	log.Debugf("loaded table %s: %d rows", t.Name(), rows)
	return nil
}

// WriteTable writes the current host contents of t to dir in the loader's format.
// Used to build test fixtures and small data sets.
func WriteTable(dir string, t *buffer.Table) error {
	for i := 0; i < t.ColumnCount(); i++ {
		col := t.Column(i)
		if col.RowID {
			continue
		}
		data := t.ColumnBytes(i)[:t.RowCount()*col.Width]
		if err := ioutil.WriteFile(columnPath(dir, t.Name(), col.Name), data, os.FileMode(0644)); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
