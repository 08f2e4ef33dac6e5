package engine

import (
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

// Buffer is anything with mirrored host and device storage that a TransferEngine
// can move - tables and command descriptors both qualify.
type Buffer interface {
	Name() string
	HostBytes() []byte
	DeviceMem() device.Mem
}

// TransferEngine batches a set of registered buffers and issues host to device or
// device to host copies for all of them in one enqueue. Multiple engines may be
// active concurrently over overlapping buffer sets; ordering between them is
// established only through wait-lists.
type TransferEngine struct {
	ctx  device.Context
	name string
	bufs []Buffer
}

func NewTransferEngine(ctx device.Context, name string) *TransferEngine {
	return &TransferEngine{ctx: ctx, name: name}
}

func (e *TransferEngine) Name() string {
	return e.name
}

// Register adds a buffer to the set this engine moves. May be called repeatedly
// between issues; each issue covers everything registered so far.
func (e *TransferEngine) Register(b Buffer) {
	e.bufs = append(e.bufs, b)
}

func (e *TransferEngine) Buffers() []Buffer {
	return e.bufs
}

// HostToDevice copies the host contents of every registered buffer to its device
// mirror. Returns without blocking; the token is satisfied when all copies land.
func (e *TransferEngine) HostToDevice(waitFor []*device.Token) (*device.Token, error) {
	ops, err := e.copyOps()
	if err != nil {
		return nil, err
	}
	return e.ctx.EnqueueWrite(ops, waitFor)
}

// DeviceToHost is the inverse of HostToDevice.
func (e *TransferEngine) DeviceToHost(waitFor []*device.Token) (*device.Token, error) {
	ops, err := e.copyOps()
	if err != nil {
		return nil, err
	}
	return e.ctx.EnqueueRead(ops, waitFor)
}

func (e *TransferEngine) copyOps() ([]device.CopyOp, error) {
	if len(e.bufs) == 0 {
		return nil, errors.NewConfigurationError("transfer engine " + e.name + " has no registered buffers")
	}
	ops := make([]device.CopyOp, 0, len(e.bufs))
	for _, b := range e.bufs {
		if b.DeviceMem() == nil {
			return nil, errors.NewDeviceStorageMissingError(b.Name())
		}
		ops = append(ops, device.CopyOp{Name: b.Name(), Host: b.HostBytes(), Mem: b.DeviceMem()})
	}
	return ops, nil
}
