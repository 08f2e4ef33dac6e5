package conf

import (
	"github.com/fabriqdb/fabriq/errors"
)

// MaxRepeat caps the pipeline repetition count. An excessive count is clamped
// with a warning rather than rejected, matching the behaviour users of the
// reference flow expect.
const MaxRepeat = 20

const DefaultMetricsListenAddr = "localhost:2112"

type Config struct {
	Board                 int    `name:"board" help:"Index of the accelerator device to use." default:"0"`
	XclbinPath            string `name:"xclbin" help:"Path to the accelerator binary image."`
	DataDir               string `name:"in" help:"Directory holding the flat per-column table files."`
	Repeat                int    `name:"rep" help:"Number of times to run the pipeline." default:"1"`
	EnableMetrics         bool   `name:"enable-metrics" help:"Serve prometheus metrics over HTTP."`
	MetricsHTTPListenAddr string `name:"metrics-bind" help:"Listen address for the prometheus endpoint." default:"localhost:2112"`
}

func (c *Config) Validate() error {
	if c.Board < 0 {
		return errors.NewInvalidConfigurationError("Board must be >= 0")
	}
	if c.XclbinPath == "" {
		return errors.NewInvalidConfigurationError("XclbinPath must be specified")
	}
	if c.DataDir == "" {
		return errors.NewInvalidConfigurationError("DataDir must be specified")
	}
	if c.Repeat < 1 {
		return errors.NewInvalidConfigurationError("Repeat must be >= 1")
	}
	return nil
}

// ClampedRepeat returns the effective repetition count and whether clamping was
// applied. The caller is expected to log a warning when it was.
func (c *Config) ClampedRepeat() (int, bool) {
	if c.Repeat > MaxRepeat {
		return MaxRepeat, true
	}
	return c.Repeat, false
}
