package supers

import (
	"github.com/iwanowww/supers/resource"
	"github.com/iwanowww/supers/table"
)

type options struct {
	cfg     table.Config
	seed    uint64
	logger  *Logger
	metrics MetricsCollector
	res     *resource.Controller
}

func defaultOptions() options {
	return options{
		cfg:     table.DefaultConfig,
		seed:    1,
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
		res:     resource.NewController(resource.Config{}),
	}
}

// Option configures a Hierarchy at construction time.
//
// The build configuration is deliberately construction-only: seed field
// widths and probe reduction are process-wide invariants, and changing them
// under published tables would break the seed/size agreement.
type Option func(*options)

// WithConfig sets the build configuration (table sizing, attempt budget,
// addressing mode, verify mode). It is validated by New.
func WithConfig(cfg table.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithSeed sets the entropy seed for ID assignment and placement search.
// Two hierarchies created with the same seed and fed the same definitions
// assign identical IDs and find identical placements.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger sets the logger used for build tracing. Nil restores the no-op
// logger. The query path never logs.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the collector notified after each table build.
// Nil disables collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithResourceController bounds the build concurrency of DefineAll.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		if rc == nil {
			rc = resource.NewController(resource.Config{})
		}
		o.res = rc
	}
}
