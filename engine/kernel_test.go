package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/device/fake"
	"github.com/fabriqdb/fabriq/errors"
)

func sealedDesc(t *testing.T, dev *fake.Device) *buffer.CmdDescriptor {
	desc := buffer.NewCmdDescriptor("cfg")
	desc.Seal()
	require.NoError(t, desc.AllocateDevice(dev))
	return desc
}

func deviceTable(t *testing.T, dev *fake.Device, name string) *buffer.Table {
	tab := newTestTable(t, name, 16)
	require.NoError(t, tab.AllocateDevice(dev))
	return tab
}

func TestKernelBindValidation(t *testing.T) {
	dev := fake.NewDevice("sim")
	in := deviceTable(t, dev, "in")
	out := deviceTable(t, dev, "out")
	desc := sealedDesc(t, dev)

	ke := NewKernelEngine(dev, "gqeJoin", 2)

	// wrong arity
	err := ke.Bind([]*buffer.Table{in}, out, nil, desc)
	require.Error(t, err)
	require.Equal(t, errors.ConfigurationError, errors.Code(err))

	// input without device storage
	hostOnly := newTestTable(t, "hostonly", 16)
	err = ke.Bind([]*buffer.Table{in, hostOnly}, out, nil, desc)
	require.Error(t, err)
	require.Equal(t, errors.ConfigurationError, errors.Code(err))

	// unsealed descriptor
	raw := buffer.NewCmdDescriptor("raw")
	require.NoError(t, raw.AllocateDevice(dev))
	err = ke.Bind([]*buffer.Table{in, in}, out, nil, raw)
	require.Error(t, err)
	require.Equal(t, errors.ConfigurationError, errors.Code(err))

	// run before bind
	_, err = ke.Run(nil)
	require.Error(t, err)
	require.Equal(t, errors.ConfigurationError, errors.Code(err))
}

func TestKernelRun(t *testing.T) {
	dev := fake.NewDevice("sim")
	numArgs := 0
	dev.RegisterKernel("gqeJoin", func(args [][]byte) error {
		numArgs = len(args)
		return nil
	})
	in := deviceTable(t, dev, "in")
	out := deviceTable(t, dev, "out")
	scratch := deviceTable(t, dev, "scratch")
	desc := sealedDesc(t, dev)

	ke := NewKernelEngine(dev, "gqeJoin", 2)
	require.NoError(t, ke.Bind([]*buffer.Table{in, in}, out, scratch, desc))
	tok, err := ke.Run(nil)
	require.NoError(t, err)
	require.NoError(t, tok.Wait())
	// inputs, output, descriptor, scratch
	require.Equal(t, 5, numArgs)
}

func TestKernelEngineNotReentrant(t *testing.T) {
	dev := fake.NewDevice("sim")
	gate := device.NewToken("gate")
	dev.RegisterKernel("gqeJoin", func(args [][]byte) error { return nil })
	in := deviceTable(t, dev, "in")
	out := deviceTable(t, dev, "out")
	desc := sealedDesc(t, dev)

	ke := NewKernelEngine(dev, "gqeJoin", 2)
	require.NoError(t, ke.Bind([]*buffer.Table{in, in}, out, nil, desc))
	tok, err := ke.Run([]*device.Token{gate})
	require.NoError(t, err)

	// unretired invocation: both rebinding and re-running are errors
	_, err = ke.Run(nil)
	require.Error(t, err)
	require.Equal(t, errors.DeviceBusy, errors.Code(err))
	err = ke.Bind([]*buffer.Table{in, in}, out, nil, desc)
	require.Error(t, err)
	require.Equal(t, errors.DeviceBusy, errors.Code(err))

	gate.Complete(nil)
	require.NoError(t, tok.Wait())

	// retired: engine is reusable
	require.NoError(t, ke.Bind([]*buffer.Table{in, in}, out, nil, desc))
	tok2, err := ke.Run(nil)
	require.NoError(t, err)
	require.NoError(t, tok2.Wait())
}
