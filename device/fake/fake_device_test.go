package fake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

func TestAllocAndFree(t *testing.T) {
	dev := NewDeviceWithMemLimit("sim", 1024)
	m1, err := dev.Alloc("a", 512)
	require.NoError(t, err)
	_, err = dev.Alloc("b", 513)
	require.Error(t, err)
	require.Equal(t, errors.ResourceError, errors.Code(err))
	require.NoError(t, dev.Free(m1))
	_, err = dev.Alloc("b", 1024)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dev := NewDevice("sim")
	m, err := dev.Alloc("buf", 8)
	require.NoError(t, err)
	host := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	wtok, err := dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: host, Mem: m}}, nil)
	require.NoError(t, err)
	back := make([]byte, 8)
	rtok, err := dev.EnqueueRead([]device.CopyOp{{Name: "buf", Host: back, Mem: m}}, []*device.Token{wtok})
	require.NoError(t, err)
	require.NoError(t, rtok.Wait())
	require.Equal(t, host, back)
	require.NoError(t, dev.Close())
}

func TestKernelObservesWaitList(t *testing.T) {
	dev := NewDevice("sim")
	m, err := dev.Alloc("buf", 4)
	require.NoError(t, err)
	dev.RegisterKernel("incr", func(args [][]byte) error {
		args[0][0]++
		return nil
	})

	// The write is gated on a token we control; the kernel must not run before
	// the write lands even though both are enqueued immediately.
	gate := device.NewToken("gate")
	wtok, err := dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: []byte{41, 0, 0, 0}, Mem: m}},
		[]*device.Token{gate})
	require.NoError(t, err)
	ktok, err := dev.EnqueueKernel("incr", []device.Mem{m}, []*device.Token{wtok})
	require.NoError(t, err)
	require.False(t, ktok.Completed())
	gate.Complete(nil)
	require.NoError(t, ktok.Wait())

	back := make([]byte, 4)
	rtok, err := dev.EnqueueRead([]device.CopyOp{{Name: "buf", Host: back, Mem: m}}, []*device.Token{ktok})
	require.NoError(t, err)
	require.NoError(t, rtok.Wait())
	require.Equal(t, byte(42), back[0])
}

func TestUnknownKernel(t *testing.T) {
	dev := NewDevice("sim")
	_, err := dev.EnqueueKernel("nope", nil, nil)
	require.Error(t, err)
	require.Equal(t, errors.UnknownKernel, errors.Code(err))
}

func TestFailurePropagatesThroughWaitList(t *testing.T) {
	dev := NewDevice("sim")
	m, err := dev.Alloc("buf", 4)
	require.NoError(t, err)
	dev.RegisterKernel("noop", func(args [][]byte) error { return nil })

	dev.FailOpAt(0, errors.New("injected"))
	wtok, err := dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: make([]byte, 4), Mem: m}}, nil)
	require.NoError(t, err)
	ktok, err := dev.EnqueueKernel("noop", []device.Mem{m}, []*device.Token{wtok})
	require.NoError(t, err)

	require.Equal(t, errors.TransferFailed, errors.Code(wtok.Wait()))
	// downstream kernel fails because its dependency failed
	require.Equal(t, errors.KernelFailed, errors.Code(ktok.Wait()))
	require.Error(t, dev.Finish())
}

func TestFailEnqueueAt(t *testing.T) {
	dev := NewDevice("sim")
	m, err := dev.Alloc("buf", 4)
	require.NoError(t, err)
	dev.FailEnqueueAt(0, errors.New("queue full"))
	_, err = dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: make([]byte, 4), Mem: m}}, nil)
	require.Error(t, err)
	// next enqueue succeeds
	_, err = dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: make([]byte, 4), Mem: m}}, nil)
	require.NoError(t, err)
}

func TestRecordsCaptureIssueOrderAndWaitLists(t *testing.T) {
	dev := NewDevice("sim")
	m, err := dev.Alloc("buf", 4)
	require.NoError(t, err)
	dev.RegisterKernel("noop", func(args [][]byte) error { return nil })

	wtok, err := dev.EnqueueWrite([]device.CopyOp{{Name: "buf", Host: make([]byte, 4), Mem: m}}, nil)
	require.NoError(t, err)
	_, err = dev.EnqueueKernel("noop", []device.Mem{m}, []*device.Token{wtok})
	require.NoError(t, err)

	recs := dev.Records()
	require.Len(t, recs, 2)
	require.Equal(t, OpWrite, recs[0].Kind)
	require.Equal(t, OpKernel, recs[1].Kind)
	require.Equal(t, 0, recs[0].Seq)
	require.Equal(t, 1, recs[1].Seq)
	require.Contains(t, recs[1].WaitFor, wtok)
	require.NoError(t, dev.Close())
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	dev := NewDevice("sim")
	require.NoError(t, dev.Close())
	_, err := dev.Alloc("buf", 4)
	require.Error(t, err)
	_, err = dev.EnqueueWrite(nil, nil)
	require.Error(t, err)
}
