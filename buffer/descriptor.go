package buffer

import (
	"fmt"

	"github.com/fabriqdb/fabriq/common"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

// DescriptorWords is the fixed size of a kernel command descriptor, in 32 bit
// words. The payload is opaque to the orchestrator - only the bound kernel
// interprets it.
const DescriptorWords = 512

// CmdDescriptor is the parameter block for one kernel invocation. It is populated
// on the host from a compiled template plus per-query parameters, sealed, and then
// transferred to the device exactly once per pipeline run. One descriptor belongs
// to exactly one pipeline stage.
type CmdDescriptor struct {
	name   string
	host   []byte
	dev    device.Mem
	sealed bool
}

func NewCmdDescriptor(name string) *CmdDescriptor {
	return &CmdDescriptor{name: name, host: make([]byte, DescriptorWords*4)}
}

func (c *CmdDescriptor) Name() string {
	return c.name
}

func (c *CmdDescriptor) SetWord(i int, v int32) {
	if c.sealed {
		panic(fmt.Sprintf("descriptor %s is sealed", c.name))
	}
	common.WriteUint32ToBufferLE(c.host, i*4, uint32(v))
}

func (c *CmdDescriptor) Word(i int) int32 {
	v, _ := common.ReadUint32FromBufferLE(c.host, i*4)
	return int32(v)
}

// Seal makes the descriptor immutable. Engines refuse unsealed descriptors.
func (c *CmdDescriptor) Seal() {
	c.sealed = true
}

func (c *CmdDescriptor) Sealed() bool {
	return c.sealed
}

func (c *CmdDescriptor) AllocateDevice(ctx device.Context) error {
	if c.dev != nil {
		return errors.NewResourceError(fmt.Sprintf("descriptor %s: device storage already allocated", c.name))
	}
	mem, err := ctx.Alloc(c.name, len(c.host))
	if err != nil {
		return err
	}
	c.dev = mem
	return nil
}

func (c *CmdDescriptor) Release(ctx device.Context) error {
	if c.dev == nil {
		return nil
	}
	err := ctx.Free(c.dev)
	c.dev = nil
	return err
}

func (c *CmdDescriptor) HostBytes() []byte {
	return c.host
}

func (c *CmdDescriptor) DeviceMem() device.Mem {
	return c.dev
}

// DescWord reads word i of a raw descriptor payload, for kernel implementations.
func DescWord(raw []byte, i int) int32 {
	v, _ := common.ReadUint32FromBufferLE(raw, i*4)
	return int32(v)
}
