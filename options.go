package vecforest

import (
	"log/slog"

	"github.com/hupe1980/vecforest/internal/fs"
	"github.com/hupe1980/vecforest/resource"
)

type options struct {
	seed             uint64
	verbose          bool
	leafCapacity     int
	metricsCollector MetricsCollector
	logger           *Logger
	resource         *resource.Controller
	fs               fs.FileSystem
}

// Option configures an Index at construction.
type Option func(*options)

// WithSeed sets the seed of the tree builder. The same seed, items and a
// single worker reproduce the same forest. Equivalent to calling SetSeed.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithVerbose logs build progress at info level instead of debug.
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithLeafCapacity overrides the largest number of item ids stored in one
// leaf list (default 32). The value is recorded in saved files and must
// match when loading them.
func WithLeafCapacity(n int) Option {
	return func(o *options) {
		o.leafCapacity = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecforest.BasicMetricsCollector{}
//	idx, _ := vecforest.New(128, distance.Angular, vecforest.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecforest.NewJSONLogger(slog.LevelInfo)
//	idx, _ := vecforest.New(128, distance.Euclidean, vecforest.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares memory, build worker and IO limits between
// indexes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithResourceLimits is a convenience wrapper creating a controller from cfg.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resource = resource.NewController(cfg)
	}
}

// WithFileSystem replaces the file system used to write index files.
// Mainly useful for fault injection in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fs:               fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.fs == nil {
		o.fs = fs.Default
	}
	return o
}
