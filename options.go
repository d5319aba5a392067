package clam

type options struct {
	logger      *Logger
	metrics     MetricsCollector
	parallelism int
	seed        int64
}

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		parallelism: 1,
		seed:        1,
	}
}

// Option configures Build/Load behavior.
type Option func(*options)

// WithLogger configures a structured logger for build and search tracing.
// If nil is passed, logging stays disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics configures a metrics collector for monitoring operations.
// If nil is passed, metrics collection stays disabled.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithParallelism enables layer-parallel tree construction with up to n
// concurrent partition steps.
//
// The two children of a node are independent once poles and assignments are
// computed, so clusters of one tree layer partition concurrently. The
// distance cache tolerates this: racing writers recompute the same value
// rather than corrupting cache state. Results are identical to a sequential
// build.
//
// n <= 1 keeps the default sequential build.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithSeed sets the seed used for graph random walks. Builds themselves are
// deterministic and unaffected by the seed.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}
