package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	log "github.com/sirupsen/logrus"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/conf"
	"github.com/fabriqdb/fabriq/device/fake"
	"github.com/fabriqdb/fabriq/errors"
	flog "github.com/fabriqdb/fabriq/log"
	"github.com/fabriqdb/fabriq/metrics"
	"github.com/fabriqdb/fabriq/metrics/prometheus"
	"github.com/fabriqdb/fabriq/query"
	"github.com/fabriqdb/fabriq/tpch"
)

type arguments struct {
	Config kong.ConfigFlag `help:"Path to config file" type:"existingfile"`
	Log    flog.Config     `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Engine conf.Config     `help:"Pipeline configuration" embed:"" prefix:""`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := arguments{}
	parser, err := kong.New(&cfg, kong.Configuration(konghcl.Loader))
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := parser.Parse(args); err != nil {
		return errors.WithStack(err)
	}
	if err := cfg.Log.Configure(); err != nil {
		return err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Engine.XclbinPath); err != nil {
		return errors.NewInvalidConfigurationError(fmt.Sprintf("cannot read accelerator binary %s: %v", cfg.Engine.XclbinPath, err))
	}
	rep, clamped := cfg.Engine.ClampedRepeat()
	if clamped {
		log.Warnf("limited repeat to %d times", rep)
	}

	var factory metrics.Factory = &metrics.NoopFactory{}
	if cfg.Engine.EnableMetrics {
		factory = prometheus.NewFactory(cfg.Engine)
	}
	if err := factory.Start(); err != nil {
		return err
	}
	defer func() {
		if err := factory.Stop(); err != nil {
			log.Errorf("failed to stop metrics factory: %v", err)
		}
	}()
	stagesIssued, err := factory.CreateCounter("fabriq_stages_issued", "Number of pipeline stages issued")
	if err != nil {
		return err
	}
	stagesFailed, err := factory.CreateCounter("fabriq_stages_failed", "Number of pipeline stages failed")
	if err != nil {
		return err
	}

	// The simulated device stands in for the OpenCL context; device bring-up and
	// binary image loading stay outside the orchestration core.
	dev := fake.NewDevice(fmt.Sprintf("sim_board_%d", cfg.Engine.Board))
	dev.RegisterKernel(query.GqeJoinKernelName, query.GqeJoinKernel)
	defer func() {
		if err := dev.Close(); err != nil {
			log.Errorf("failed to close device context: %v", err)
		}
	}()
	log.Infof("Selected device %s", dev.DeviceName())

	tbs := query.NewTables(query.DefaultCapacities())
	if err := tbs.AllocateHost(); err != nil {
		return err
	}
	for _, t := range []*buffer.Table{tbs.Part, tbs.PartSupp, tbs.Supplier, tbs.Lineitem, tbs.Orders, tbs.Nation} {
		if err := tpch.LoadTable(cfg.Engine.DataDir, t); err != nil {
			return err
		}
	}

	runner, err := query.NewRunner(dev, tbs)
	if err != nil {
		return err
	}
	runner.SetCounters(stagesIssued, stagesFailed)
	for i := 0; i < rep; i++ {
		stats, err := runner.Run()
		if err != nil {
			return err
		}
		fmt.Printf("run %d: %d result rows in %d ms\n", i, stats.ResultRows, stats.Total.Milliseconds())
		for _, st := range stats.Stages {
			fmt.Printf("  %-20s %.3f ms\n", st.Name, float64(st.Elapsed.Microseconds())/1000)
		}
	}
	printResult(tbs)
	return runner.Release()
}

// printResult dumps the leading result rows, resolving nation names.
func printResult(tbs *query.Tables) {
	rows := tbs.Result.RowCount()
	if rows > 10 {
		rows = 10
	}
	for row := 0; row < rows; row++ {
		nation := tbs.Nation.StringAt(1, int(tbs.Result.IntAt(0, row)))
		fmt.Printf("%-26s %d %d\n", nation, tbs.Result.IntAt(1, row), tbs.Result.IntAt(2, row))
	}
}
