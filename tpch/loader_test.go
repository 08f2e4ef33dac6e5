package tpch

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/errors"
)

func newNationTable(t *testing.T, capacity int) *buffer.Table {
	tb := buffer.NewTable("nation", capacity).
		AddColumn(buffer.Column{Name: "n_nationkey", Width: 4}).
		AddColumn(buffer.Column{Name: "n_name", Width: 26}).
		AddColumn(buffer.Column{Name: "n_rowid", Width: 4, RowID: true})
	require.NoError(t, tb.AllocateHost())
	return tb
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	src := newNationTable(t, 8)
	names := []string{"ALGERIA", "BRAZIL", "CANADA"}
	for i, name := range names {
		src.SetIntAt(0, i, int64(10+i))
		src.SetStringAt(1, i, name)
	}
	require.NoError(t, src.SetRowCount(len(names)))
	require.NoError(t, WriteTable(dir, src))

	dst := newNationTable(t, 8)
	require.NoError(t, LoadTable(dir, dst))
	require.Equal(t, 3, dst.RowCount())
	for i, name := range names {
		require.Equal(t, int64(10+i), dst.IntAt(0, i))
		require.Equal(t, name, dst.StringAt(1, i))
		// row ids are generated at load time, not stored
		require.Equal(t, int64(i), dst.IntAt(2, i))
	}
}

func TestLoadMissingColumnFile(t *testing.T) {
	dir := t.TempDir()
	tb := newNationTable(t, 8)
	require.Error(t, LoadTable(dir, tb))
}

func TestLoadRowCountMismatchAcrossColumns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "nation_n_nationkey.dat"), make([]byte, 3*4), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "nation_n_name.dat"), make([]byte, 2*26), 0644))
	tb := newNationTable(t, 8)
	err := LoadTable(dir, tb)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected")
}

func TestLoadTruncatedColumnFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "nation_n_nationkey.dat"), make([]byte, 10), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "nation_n_name.dat"), make([]byte, 26), 0644))
	tb := newNationTable(t, 8)
	err := LoadTable(dir, tb)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a multiple")
}

func TestLoadOverCapacity(t *testing.T) {
	dir := t.TempDir()
	src := newNationTable(t, 8)
	for i := 0; i < 5; i++ {
		src.SetIntAt(0, i, int64(i))
		src.SetStringAt(1, i, "X")
	}
	require.NoError(t, src.SetRowCount(5))
	require.NoError(t, WriteTable(dir, src))

	dst := newNationTable(t, 4)
	err := LoadTable(dir, dst)
	require.Error(t, err)
	require.Equal(t, errors.ResourceError, errors.Code(err))
}
