package pipeline

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/engine"
	"github.com/fabriqdb/fabriq/errors"
	"github.com/fabriqdb/fabriq/metrics"
)

// Resource is anything a stage can read or write - tables and command
// descriptors. The driver keys its dependency bookkeeping on resource identity.
type Resource interface {
	Name() string
}

type State int

const (
	Building State = iota
	Running
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case Building:
		return "Building"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

type StageState int

const (
	StageUnissued StageState = iota
	StageIssued
	StageCompleted
	StageFailed
)

func (s StageState) String() string {
	switch s {
	case StageUnissued:
		return "Unissued"
	case StageIssued:
		return "Issued"
	case StageCompleted:
		return "Completed"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type stage struct {
	name  string
	host  bool
	reads func() []Resource
	write func() []Resource
	issue func(waitFor []*device.Token) (*device.Token, error)
	fn    func() error

	state    StageState
	token    *device.Token
	issuedAt time.Time
	doneAt   time.Time
}

// Driver wires a fixed sequence of stages - transfers, kernel invocations and
// host compute steps - threading completion tokens from each stage into the
// wait-lists of later stages. A stage's wait-list is the set of tokens for the
// most recent write to each resource it reads, plus the token of the last
// operation that touched each resource it writes. The driver performs no retries:
// the first failure aborts issuance of the remaining stages and is surfaced with
// the index of the failing stage. Synchronous barriers happen only at pipeline
// start and end - interior stages overlap.
type Driver struct {
	ctx    device.Context
	stages []*stage
	state  State

	lastWrite map[Resource]*device.Token
	lastTouch map[Resource]*device.Token

	stagesIssued metrics.Counter
	stagesFailed metrics.Counter
}

func NewDriver(ctx device.Context) *Driver {
	return &Driver{
		ctx:       ctx,
		state:     Building,
		lastWrite: make(map[Resource]*device.Token),
		lastTouch: make(map[Resource]*device.Token),
	}
}

// SetCounters wires optional stage counters, typically from the prometheus
// factory. Nil counters are fine.
func (d *Driver) SetCounters(issued metrics.Counter, failed metrics.Counter) {
	d.stagesIssued = issued
	d.stagesFailed = failed
}

// AddHostToDevice appends a stage copying the engine's registered buffers to the
// device. The buffer set is evaluated at issue time, so buffers may be registered
// on the engine after this call, as long as it happens before Run.
func (d *Driver) AddHostToDevice(name string, te *engine.TransferEngine) {
	d.mustBeBuilding(name)
	d.stages = append(d.stages, &stage{
		name:  name,
		reads: func() []Resource { return nil },
		write: func() []Resource { return transferResources(te) },
		issue: te.HostToDevice,
	})
}

// AddDeviceToHost appends a stage copying the engine's registered buffers back to
// the host. It both reads the device storage and rewrites the host mirror, so it
// orders after the last device-side writer and before any later host reader.
func (d *Driver) AddDeviceToHost(name string, te *engine.TransferEngine) {
	d.mustBeBuilding(name)
	d.stages = append(d.stages, &stage{
		name:  name,
		reads: func() []Resource { return transferResources(te) },
		write: func() []Resource { return transferResources(te) },
		issue: te.DeviceToHost,
	})
}

// AddKernel appends a kernel invocation stage. The engine must be bound before
// Run; bound buffers are picked up at issue time.
func (d *Driver) AddKernel(name string, ke *engine.KernelEngine) {
	d.mustBeBuilding(name)
	d.stages = append(d.stages, &stage{
		name: name,
		reads: func() []Resource {
			var rs []Resource
			for _, in := range ke.Inputs() {
				rs = append(rs, in)
			}
			if desc := ke.Descriptor(); desc != nil {
				rs = append(rs, desc)
			}
			return rs
		},
		write: func() []Resource {
			var rs []Resource
			if out := ke.Output(); out != nil {
				rs = append(rs, out)
			}
			if scratch := ke.Scratch(); scratch != nil {
				rs = append(rs, scratch)
			}
			return rs
		},
		issue: ke.Run,
	})
}

// AddHostStage appends a synchronous host compute step. The driver blocks
// host-side until the stage's input tokens are satisfied, runs fn on the calling
// goroutine, and records completion as an already-satisfied token so later device
// stages can depend on it.
func (d *Driver) AddHostStage(name string, reads []Resource, writes []Resource, fn func() error) {
	d.mustBeBuilding(name)
	readsCopy := append([]Resource(nil), reads...)
	writesCopy := append([]Resource(nil), writes...)
	d.stages = append(d.stages, &stage{
		name:  name,
		host:  true,
		reads: func() []Resource { return readsCopy },
		write: func() []Resource { return writesCopy },
		fn:    fn,
	})
}

func (d *Driver) State() State {
	return d.state
}

func (d *Driver) StageCount() int {
	return len(d.stages)
}

func (d *Driver) StageState(i int) StageState {
	return d.stages[i].state
}

func (d *Driver) StageName(i int) string {
	return d.stages[i].name
}

// StageElapsed returns the time from issue to observed completion of stage i.
// Stages overlap, so the values do not sum to the pipeline wall time. Zero for
// stages that never completed.
func (d *Driver) StageElapsed(i int) time.Duration {
	st := d.stages[i]
	if st.doneAt.IsZero() {
		return 0
	}
	return st.doneAt.Sub(st.issuedAt)
}

// Run issues every stage in order and blocks until the pipeline has drained. A
// driver runs exactly once; build a fresh driver to repeat the pipeline.
func (d *Driver) Run() error {
	if d.state != Building {
		return errors.NewConfigurationError("pipeline driver has already run")
	}
	d.state = Running

	// Start barrier: guarantees device storage allocation and any setup transfers
	// have retired before the first stage is issued.
	if err := d.ctx.Finish(); err != nil {
		d.state = Aborted
		return errors.Wrap(err, "pipeline start barrier")
	}

	for i, st := range d.stages {
		waitFor := d.waitList(st)
		if err := d.issueStage(st, waitFor); err != nil {
			d.state = Aborted
			if d.stagesFailed != nil {
				d.stagesFailed.Inc()
			}
			// A host stage's input wait can be the first to observe an earlier
			// stage's asynchronous failure; the abort belongs to the earliest
			// stage that actually failed, not to the stage that noticed.
			idx := i
			for j := 0; j < i; j++ {
				if prev := d.stages[j]; prev.token != nil && prev.token.Err() != nil {
					idx = j
					break
				}
			}
			failed := d.stages[idx]
			failed.state = StageFailed
			log.Errorf("pipeline aborted at stage %d (%s): %v", idx, failed.name, err)
			return errors.NewPipelineAbortedError(idx, failed.name, err)
		}
		if d.stagesIssued != nil {
			d.stagesIssued.Inc()
		}
		d.recordStage(st)
	}

	// End barrier: results must be host-visible before post-processing. Walk the
	// stages in issue order so the first failure is attributed to its stage index.
	for i, st := range d.stages {
		if err := st.token.Wait(); err != nil {
			st.state = StageFailed
			d.state = Aborted
			if d.stagesFailed != nil {
				d.stagesFailed.Inc()
			}
			return errors.NewPipelineAbortedError(i, st.name, err)
		}
		if st.doneAt.IsZero() {
			st.doneAt = time.Now()
		}
		st.state = StageCompleted
	}
	if err := d.ctx.Finish(); err != nil {
		d.state = Aborted
		return errors.Wrap(err, "pipeline end barrier")
	}
	d.state = Finished
	return nil
}

func (d *Driver) issueStage(st *stage, waitFor []*device.Token) error {
	st.issuedAt = time.Now()
	if st.host {
		// Host-side wait, not a device-side one.
		if err := device.Merge(st.name+"-inputs", waitFor...).Wait(); err != nil {
			return err
		}
		if err := st.fn(); err != nil {
			return err
		}
		st.token = device.Satisfied(st.name)
		st.state = StageCompleted
		st.doneAt = time.Now()
		return nil
	}
	tok, err := st.issue(waitFor)
	if err != nil {
		return err
	}
	st.token = tok
	st.state = StageIssued
	return nil
}

// waitList looks up the token of the most recent write to each resource the stage
// reads, and the token of the last operation that touched each resource the stage
// writes. Submission order alone is never relied upon.
func (d *Driver) waitList(st *stage) []*device.Token {
	var toks []*device.Token
	seen := make(map[*device.Token]struct{})
	add := func(tok *device.Token) {
		if tok == nil {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		toks = append(toks, tok)
	}
	for _, r := range st.reads() {
		add(d.lastWrite[r])
	}
	for _, r := range st.write() {
		add(d.lastTouch[r])
	}
	return toks
}

func (d *Driver) recordStage(st *stage) {
	for _, r := range st.reads() {
		d.lastTouch[r] = st.token
	}
	for _, r := range st.write() {
		d.lastWrite[r] = st.token
		d.lastTouch[r] = st.token
	}
}

func (d *Driver) mustBeBuilding(name string) {
	if d.state != Building {
		panic("stage " + name + " added after pipeline start")
	}
}

func transferResources(te *engine.TransferEngine) []Resource {
	var rs []Resource
	for _, b := range te.Buffers() {
		rs = append(rs, b)
	}
	return rs
}
