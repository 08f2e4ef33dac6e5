package query

import (
	"time"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/device"
	"github.com/fabriqdb/fabriq/engine"
	"github.com/fabriqdb/fabriq/metrics"
	"github.com/fabriqdb/fabriq/pipeline"
)

// NumStages is the number of kernel join stages in the q9 template.
const NumStages = 5

// Runner owns the hand-wired q9 pipeline: five gqeJoin stages fed by batched
// host-to-device transfers, bracketed by the host-side part filter in front and
// group-by plus sort behind the device-to-host read of the final join output.
// The DAG is fixed per query template; only the data varies.
type Runner struct {
	ctx   device.Context
	tbs   *Tables
	descs [NumStages]*buffer.CmdDescriptor
	joins [NumStages]*engine.KernelEngine

	transBase     *engine.TransferEngine
	transTh0      *engine.TransferEngine
	transLineitem *engine.TransferEngine
	transOrders   *engine.TransferEngine
	transOut      *engine.TransferEngine

	stagesIssued metrics.Counter
	stagesFailed metrics.Counter
}

// Stats reports diagnostic timings for one pipeline run. Not part of any
// contract - the CLI prints them to stdout. Stages overlap, so stage timings do
// not sum to the total.
type Stats struct {
	Total      time.Duration
	ResultRows int
	Stages     []StageTiming
}

type StageTiming struct {
	Name    string
	Elapsed time.Duration
}

// NewRunner allocates device storage for every device-resident table and
// descriptor and prepares the engines. Host storage must already be allocated
// and loaded by the caller.
func NewRunner(ctx device.Context, tbs *Tables) (*Runner, error) {
	r := &Runner{ctx: ctx, tbs: tbs, descs: Descriptors()}
	if err := tbs.AllocateDevice(ctx); err != nil {
		return nil, err
	}
	for _, d := range r.descs {
		if err := d.AllocateDevice(ctx); err != nil {
			return nil, err
		}
	}
	for i := range r.joins {
		r.joins[i] = engine.NewKernelEngine(ctx, GqeJoinKernelName, 2)
	}

	r.transBase = engine.NewTransferEngine(ctx, "trans-base")
	r.transBase.Register(tbs.PartSupp)
	r.transBase.Register(tbs.Supplier)
	r.transBase.Register(tbs.Nation)
	// The scratch tables carry their layout headers in the host mirror; seeding
	// them gives the kernels parseable output buffers before the first join runs.
	r.transBase.Register(tbs.Tk0)
	r.transBase.Register(tbs.Tk1)
	r.transBase.Register(tbs.Tmp)
	for _, d := range r.descs {
		r.transBase.Register(d)
	}
	r.transTh0 = engine.NewTransferEngine(ctx, "trans-th0")
	r.transTh0.Register(tbs.Th0)
	r.transLineitem = engine.NewTransferEngine(ctx, "trans-lineitem")
	r.transLineitem.Register(tbs.Lineitem)
	r.transOrders = engine.NewTransferEngine(ctx, "trans-orders")
	r.transOrders.Register(tbs.Orders)
	r.transOut = engine.NewTransferEngine(ctx, "trans-out")
	r.transOut.Register(tbs.Tk0)
	return r, nil
}

// SetCounters wires optional pipeline stage counters.
func (r *Runner) SetCounters(issued metrics.Counter, failed metrics.Counter) {
	r.stagesIssued = issued
	r.stagesFailed = failed
}

// Run executes the pipeline once. It may be called repeatedly; each run rebinds
// the kernel engines and re-transfers every buffer, so runs over unchanged input
// produce identical results.
func (r *Runner) Run() (Stats, error) {
	start := time.Now()
	if err := r.bind(); err != nil {
		return Stats{}, err
	}

	tbs := r.tbs
	d := pipeline.NewDriver(r.ctx)
	d.SetCounters(r.stagesIssued, r.stagesFailed)
	d.AddHostToDevice("trans-base", r.transBase)
	d.AddHostStage("part-filter",
		[]pipeline.Resource{tbs.Part}, []pipeline.Resource{tbs.Th0},
		func() error { return PartFilter(tbs.Part, tbs.Th0) })
	d.AddHostToDevice("trans-th0", r.transTh0)
	d.AddKernel("join-part-partsupp", r.joins[0])
	d.AddKernel("join-supplier", r.joins[1])
	d.AddHostToDevice("trans-lineitem", r.transLineitem)
	d.AddKernel("join-lineitem", r.joins[2])
	d.AddHostToDevice("trans-orders", r.transOrders)
	d.AddKernel("join-orders", r.joins[3])
	d.AddKernel("join-nation", r.joins[4])
	d.AddDeviceToHost("read-result", r.transOut)
	d.AddHostStage("group-by",
		[]pipeline.Resource{tbs.Tk0}, []pipeline.Resource{tbs.Tk2},
		func() error { return GroupBy(tbs.Tk0, tbs.Tk2) })
	d.AddHostStage("sort",
		[]pipeline.Resource{tbs.Tk2, tbs.Nation}, []pipeline.Resource{tbs.Result},
		func() error { return Sort(tbs.Tk2, tbs.Nation, tbs.Result) })

	if err := d.Run(); err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: time.Since(start), ResultRows: tbs.Result.RowCount()}
	for i := 0; i < d.StageCount(); i++ {
		stats.Stages = append(stats.Stages, StageTiming{Name: d.StageName(i), Elapsed: d.StageElapsed(i)})
	}
	return stats, nil
}

// Release frees all device storage owned by the runner.
func (r *Runner) Release() error {
	firstErr := r.tbs.Release(r.ctx)
	for _, desc := range r.descs {
		if err := desc.Release(r.ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// bind rebinds the five join stages, alternating the tk0/tk1 scratch pair so each
// stage reads what the previous stage wrote.
func (r *Runner) bind() error {
	tbs := r.tbs
	ring := pipeline.NewRing(tbs.Tk1, tbs.Tk0)
	if err := r.joins[0].Bind([]*buffer.Table{tbs.Th0, tbs.PartSupp}, ring.Output(), tbs.Tmp, r.descs[0]); err != nil {
		return err
	}
	ring.Flip()
	if err := r.joins[1].Bind([]*buffer.Table{tbs.Supplier, ring.Input()}, ring.Output(), tbs.Tmp, r.descs[1]); err != nil {
		return err
	}
	ring.Flip()
	if err := r.joins[2].Bind([]*buffer.Table{ring.Input(), tbs.Lineitem}, ring.Output(), tbs.Tmp, r.descs[2]); err != nil {
		return err
	}
	ring.Flip()
	if err := r.joins[3].Bind([]*buffer.Table{ring.Input(), tbs.Orders}, ring.Output(), tbs.Tmp, r.descs[3]); err != nil {
		return err
	}
	ring.Flip()
	if err := r.joins[4].Bind([]*buffer.Table{tbs.Nation, ring.Input()}, ring.Output(), tbs.Tmp, r.descs[4]); err != nil {
		return err
	}
	return nil
}
