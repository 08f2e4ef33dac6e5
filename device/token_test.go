package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabriqdb/fabriq/errors"
)

func TestTokenMonotonic(t *testing.T) {
	tok := NewToken("op")
	require.False(t, tok.Completed())
	require.Nil(t, tok.Err())
	tok.Complete(nil)
	require.True(t, tok.Completed())
	require.NoError(t, tok.Wait())
	// stays satisfied
	require.True(t, tok.Completed())
	require.NoError(t, tok.Wait())
}

func TestTokenCarriesError(t *testing.T) {
	tok := NewToken("op")
	failure := errors.New("device fell off the bus")
	go func() {
		time.Sleep(10 * time.Millisecond)
		tok.Complete(failure)
	}()
	require.Equal(t, failure, tok.Wait())
	require.Equal(t, failure, tok.Err())
}

func TestSatisfied(t *testing.T) {
	tok := Satisfied("host-stage")
	require.True(t, tok.Completed())
	require.NoError(t, tok.Wait())
}

func TestMergeWaitsForAll(t *testing.T) {
	t1 := NewToken("a")
	t2 := NewToken("b")
	merged := Merge("a+b", t1, t2)
	require.False(t, merged.Completed())
	t1.Complete(nil)
	require.False(t, merged.Completed())
	t2.Complete(nil)
	require.NoError(t, merged.Wait())
}

func TestMergeFirstErrorWins(t *testing.T) {
	t1 := NewToken("a")
	t2 := NewToken("b")
	merged := Merge("a+b", t1, t2)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	t2.Complete(errB)
	t1.Complete(errA)
	require.Equal(t, errA, merged.Wait())
}

func TestMergeEmptyAndSingle(t *testing.T) {
	require.NoError(t, Merge("none").Wait())
	tok := NewToken("only")
	require.Equal(t, tok, Merge("one", tok))
}
