package engine

import (
	"fmt"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

// KernelEngine binds one accelerator kernel to specific input/output/scratch
// buffers and a command descriptor, and enqueues invocations. A single engine
// backs a single physical kernel instance: it is not reentrant, and rebinding or
// re-running before the previous invocation's token is retired is a programming
// error. An engine is reusable across stages performing the same logical
// operation once the prior invocation has retired.
type KernelEngine struct {
	ctx       device.Context
	kernel    string
	numInputs int

	inputs  []*buffer.Table
	output  *buffer.Table
	scratch *buffer.Table
	desc    *buffer.CmdDescriptor
	last    *device.Token
}

// NewKernelEngine creates an engine for the named kernel, which exposes numInputs
// input buffer ports plus one output, one optional scratch and one descriptor port.
func NewKernelEngine(ctx device.Context, kernel string, numInputs int) *KernelEngine {
	return &KernelEngine{ctx: ctx, kernel: kernel, numInputs: numInputs}
}

func (e *KernelEngine) Kernel() string {
	return e.kernel
}

// Bind declares the buffers the next invocation will read and write. All bound
// buffers must already have device storage.
func (e *KernelEngine) Bind(inputs []*buffer.Table, output *buffer.Table, scratch *buffer.Table,
	desc *buffer.CmdDescriptor) error {
	if e.last != nil && !e.last.Completed() {
		return errors.NewDeviceBusyError(e.kernel)
	}
	if len(inputs) != e.numInputs {
		return errors.NewSchemaMismatchError(e.kernel, "inputs",
			fmt.Sprintf("kernel has %d input ports, %d buffers bound", e.numInputs, len(inputs)))
	}
	for _, in := range inputs {
		if in == nil {
			return errors.NewConfigurationError(fmt.Sprintf("kernel %s bound to nil input", e.kernel))
		}
		if in.DeviceMem() == nil {
			return errors.NewConfigurationError(fmt.Sprintf("kernel %s input %s has no device storage", e.kernel, in.Name()))
		}
	}
	if output == nil || output.DeviceMem() == nil {
		return errors.NewConfigurationError(fmt.Sprintf("kernel %s output has no device storage", e.kernel))
	}
	if scratch != nil && scratch.DeviceMem() == nil {
		return errors.NewConfigurationError(fmt.Sprintf("kernel %s scratch %s has no device storage", e.kernel, scratch.Name()))
	}
	if desc == nil {
		return errors.NewConfigurationError(fmt.Sprintf("kernel %s has no command descriptor", e.kernel))
	}
	if !desc.Sealed() {
		return errors.NewConfigurationError(fmt.Sprintf("kernel %s descriptor %s is not sealed", e.kernel, desc.Name()))
	}
	if desc.DeviceMem() == nil {
		return errors.NewConfigurationError(fmt.Sprintf("kernel %s descriptor %s has no device storage", e.kernel, desc.Name()))
	}
	e.inputs = inputs
	e.output = output
	e.scratch = scratch
	e.desc = desc
	return nil
}

// Run enqueues the invocation. The kernel observes its input data only once every
// token in waitFor is satisfied. Argument order on the device is inputs, output,
// descriptor, then scratch if bound.
func (e *KernelEngine) Run(waitFor []*device.Token) (*device.Token, error) {
	if e.output == nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("kernel %s is not bound", e.kernel))
	}
	if e.last != nil && !e.last.Completed() {
		return nil, errors.NewDeviceBusyError(e.kernel)
	}
	args := make([]device.Mem, 0, len(e.inputs)+3)
	for _, in := range e.inputs {
		args = append(args, in.DeviceMem())
	}
	args = append(args, e.output.DeviceMem(), e.desc.DeviceMem())
	if e.scratch != nil {
		args = append(args, e.scratch.DeviceMem())
	}
	tok, err := e.ctx.EnqueueKernel(e.kernel, args, waitFor)
	if err != nil {
		return nil, err
	}
	e.last = tok
	return tok, nil
}

// Bound buffer accessors used by the pipeline driver for wait-list construction.

func (e *KernelEngine) Inputs() []*buffer.Table {
	return e.inputs
}

func (e *KernelEngine) Output() *buffer.Table {
	return e.output
}

func (e *KernelEngine) Scratch() *buffer.Table {
	return e.scratch
}

func (e *KernelEngine) Descriptor() *buffer.CmdDescriptor {
	return e.desc
}
