package fake

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/fabriqdb/fabriq/common"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/errors"
)

// KernelFunc is the host-side stand-in for an accelerator kernel. It receives the
// raw device storage of each bound buffer, in bind order. The orchestrator only
// guarantees buffer readiness ordering - everything else is up to the kernel.
type KernelFunc func(args [][]byte) error

type OpKind int

const (
	OpWrite OpKind = iota
	OpRead
	OpKernel
)

func (k OpKind) String() string {
	switch k {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpKernel:
		return "kernel"
	default:
		return "unknown"
	}
}

// IssueRecord captures one enqueue call so tests can verify issue order against
// wait-list membership.
type IssueRecord struct {
	Seq     int
	Kind    OpKind
	Name    string
	WaitFor []*device.Token
	Token   *device.Token
}

// Device is an in-process simulated accelerator. Operations are executed
// asynchronously on goroutines and honour their wait-lists, so the timing
// behaviour resembles a real out-of-order command queue closely enough to
// exercise the orchestration layer. It also records every issue and supports
// fault injection.
type Device struct {
	name     string
	memLimit int

	mu          sync.Mutex
	kernels     map[string]KernelFunc
	mems        map[*mem]struct{}
	allocated   int
	seq         int
	records     []IssueRecord
	outstanding []*device.Token
	enqueueFail map[int]error
	opFail      map[int]error
	closed      common.AtomicBool
}

type mem struct {
	name string
	data []byte
}

func (m *mem) Size() int {
	return len(m.data)
}

func NewDevice(name string) *Device {
	return NewDeviceWithMemLimit(name, 0)
}

// NewDeviceWithMemLimit creates a device that refuses allocations once limit bytes
// are in use. A limit of 0 means unlimited.
func NewDeviceWithMemLimit(name string, limit int) *Device {
	return &Device{
		name:        name,
		memLimit:    limit,
		kernels:     make(map[string]KernelFunc),
		mems:        make(map[*mem]struct{}),
		enqueueFail: make(map[int]error),
		opFail:      make(map[int]error),
	}
}

func (d *Device) DeviceName() string {
	return d.name
}

func (d *Device) RegisterKernel(name string, fn KernelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = fn
}

// FailEnqueueAt makes the enqueue call with the given issue sequence number fail
// synchronously. Sequence numbers start at 0 and count every enqueue.
func (d *Device) FailEnqueueAt(seq int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueueFail[seq] = err
}

// FailOpAt makes the operation with the given issue sequence number fail
// asynchronously, after its wait-list is satisfied.
func (d *Device) FailOpAt(seq int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opFail[seq] = err
}

// Records returns a snapshot of every issue seen so far, in issue order.
func (d *Device) Records() []IssueRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	recs := make([]IssueRecord, len(d.records))
	copy(recs, d.records)
	return recs
}

func (d *Device) Alloc(name string, size int) (device.Mem, error) {
	if d.closed.Get() {
		return nil, errors.NewResourceError("device context is closed")
	}
	if size <= 0 {
		return nil, errors.NewResourceError(fmt.Sprintf("invalid allocation size %d for %s", size, name))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.memLimit > 0 && d.allocated+size > d.memLimit {
		return nil, errors.NewResourceError(fmt.Sprintf("device memory exhausted allocating %d bytes for %s", size, name))
	}
	m := &mem{name: name, data: make([]byte, size)}
	d.mems[m] = struct{}{}
	d.allocated += size
	return m, nil
}

func (d *Device) Free(dm device.Mem) error {
	m, ok := dm.(*mem)
	if !ok {
		return errors.New("mem handle does not belong to this device")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.mems[m]; !ok {
		return errors.Errorf("mem %s already freed", m.name)
	}
	delete(d.mems, m)
	d.allocated -= len(m.data)
	return nil
}

func (d *Device) EnqueueWrite(ops []device.CopyOp, waitFor []*device.Token) (*device.Token, error) {
	return d.enqueueCopy(OpWrite, ops, waitFor)
}

func (d *Device) EnqueueRead(ops []device.CopyOp, waitFor []*device.Token) (*device.Token, error) {
	return d.enqueueCopy(OpRead, ops, waitFor)
}

func (d *Device) enqueueCopy(kind OpKind, ops []device.CopyOp, waitFor []*device.Token) (*device.Token, error) {
	name := copyName(kind, ops)
	for _, op := range ops {
		if op.Mem == nil {
			return nil, errors.NewDeviceStorageMissingError(op.Name)
		}
		if _, ok := op.Mem.(*mem); !ok {
			return nil, errors.Errorf("mem handle for %s does not belong to this device", op.Name)
		}
	}
	tok, injected, err := d.issue(kind, name, waitFor)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := waitAll(waitFor); err != nil {
			tok.Complete(errors.NewTransferFailedError(name, err))
			return
		}
		if injected != nil {
			tok.Complete(errors.NewTransferFailedError(name, injected))
			return
		}
		for _, op := range ops {
			m := op.Mem.(*mem)
			if len(op.Host) > len(m.data) {
				tok.Complete(errors.NewTransferFailedError(op.Name,
					errors.Errorf("host region %d bytes exceeds device storage %d bytes", len(op.Host), len(m.data))))
				return
			}
			d.mu.Lock()
			if kind == OpWrite {
				copy(m.data, op.Host)
			} else {
				copy(op.Host, m.data[:len(op.Host)])
			}
			d.mu.Unlock()
		}
		tok.Complete(nil)
	}()
	return tok, nil
}

func (d *Device) EnqueueKernel(kernel string, args []device.Mem, waitFor []*device.Token) (*device.Token, error) {
	d.mu.Lock()
	fn, ok := d.kernels[kernel]
	d.mu.Unlock()
	if !ok {
		return nil, errors.NewUnknownKernelError(kernel)
	}
	views := make([][]byte, len(args))
	for i, a := range args {
		if a == nil {
			return nil, errors.NewDeviceStorageMissingError(fmt.Sprintf("%s arg %d", kernel, i))
		}
		m, ok := a.(*mem)
		if !ok {
			return nil, errors.Errorf("mem handle for %s arg %d does not belong to this device", kernel, i)
		}
		views[i] = m.data
	}
	tok, injected, err := d.issue(OpKernel, kernel, waitFor)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := waitAll(waitFor); err != nil {
			tok.Complete(errors.NewKernelFailedError(kernel, err))
			return
		}
		if injected != nil {
			tok.Complete(errors.NewKernelFailedError(kernel, injected))
			return
		}
		// Exclusive access to the written buffers is guaranteed by the caller's
		// wait-lists, so the kernel runs without holding the device lock.
		if err := fn(views); err != nil {
			tok.Complete(errors.NewKernelFailedError(kernel, err))
			return
		}
		tok.Complete(nil)
	}()
	return tok, nil
}

// issue records the enqueue. injected carries a fault registered via FailOpAt,
// to be surfaced asynchronously by the caller; err is a synchronous refusal.
func (d *Device) issue(kind OpKind, name string, waitFor []*device.Token) (tok *device.Token, injected, err error) {
	if d.closed.Get() {
		return nil, nil, errors.NewResourceError("device context is closed")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.seq
	d.seq++
	if failure, ok := d.enqueueFail[seq]; ok {
		delete(d.enqueueFail, seq)
		return nil, nil, failure
	}
	if failure, ok := d.opFail[seq]; ok {
		delete(d.opFail, seq)
		injected = failure
	}
	tok = device.NewToken(fmt.Sprintf("%s:%s:%d", kind, name, seq))
	wf := make([]*device.Token, len(waitFor))
	copy(wf, waitFor)
	d.records = append(d.records, IssueRecord{Seq: seq, Kind: kind, Name: name, WaitFor: wf, Token: tok})
	d.outstanding = append(d.outstanding, tok)
	log.Debugf("device %s issued %s %s seq %d waiting on %d tokens", d.name, kind, name, seq, len(waitFor))
	return tok, injected, nil
}

func (d *Device) Finish() error {
	d.mu.Lock()
	toks := make([]*device.Token, len(d.outstanding))
	copy(toks, d.outstanding)
	d.mu.Unlock()
	var firstErr error
	for _, tok := range toks {
		if err := tok.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Device) Close() error {
	if !d.closed.CompareAndSet(false, true) {
		return errors.New("device context already closed")
	}
	err := d.Finish()
	d.mu.Lock()
	d.mems = make(map[*mem]struct{})
	d.allocated = 0
	d.mu.Unlock()
	return err
}

func waitAll(tokens []*device.Token) error {
	for _, tok := range tokens {
		if err := tok.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func copyName(kind OpKind, ops []device.CopyOp) string {
	if len(ops) == 0 {
		return kind.String()
	}
	if len(ops) == 1 {
		return ops[0].Name
	}
	return fmt.Sprintf("%s+%d", ops[0].Name, len(ops)-1)
}
