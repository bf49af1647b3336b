package runtime

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/librebol/eval"
)

// DefaultRecycleThreshold is the number of Malloc bytes after which the
// collector runs.
const DefaultRecycleThreshold = 4 << 20

// Config holds runtime configuration options.
// A nil Config or zero fields select defaults.
type Config struct {
	// Logger receives lifecycle, leak and usage diagnostics.
	// Defaults to the package Logger().
	Logger *zap.Logger

	// Stdout is where PRINT writes. Defaults to os.Stdout.
	Stdout io.Writer

	// Debug turns usage errors (double release, releasing a managed
	// handle, freeing a buffer twice) into panics.
	Debug bool

	// RecycleThreshold is the Malloc byte count that triggers Recycle.
	RecycleThreshold int

	// MaxDepth bounds evaluator recursion.
	MaxDepth int
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = Logger()
	}
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.RecycleThreshold <= 0 {
		out.RecycleThreshold = DefaultRecycleThreshold
	}
	if out.MaxDepth <= 0 {
		out.MaxDepth = eval.DefaultMaxDepth
	}
	return out
}
