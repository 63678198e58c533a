package manager

import (
	"log/slog"

	"github.com/Thifhi/metall/internal/format"
)

// config holds the resolved construction-time options for a Manager.
type config struct {
	capacity       int64
	chunkSize      int64
	clone          bool
	maxCopyThreads int
	logger         *slog.Logger
}

func defaultConfig() *config {
	return &config{
		capacity:       64 << 30, // 64 GiB VM reservation ceiling by default
		chunkSize:      format.DefaultChunkSize,
		clone:          true,
		maxCopyThreads: 0,
		logger:         slog.Default(),
	}
}

// Option configures a Manager at Create/Open time.
type Option func(*config)

// WithCapacity sets the VM reservation upper bound, in bytes. The actual
// limit may be slightly below this after chunk alignment.
func WithCapacity(bytes int64) Option {
	return func(c *config) { c.capacity = bytes }
}

// WithChunkSize sets the coarse allocation unit, in bytes. Must be a
// multiple of the OS page size; validated at Create/Open time, not here.
func WithChunkSize(bytes int64) Option {
	return func(c *config) { c.chunkSize = bytes }
}

// WithClone records a reflink-clone preference in the Manager's config.
// Snapshot and Copy do not read it; each takes its own clone argument.
func WithClone(clone bool) Option {
	return func(c *config) { c.clone = clone }
}

// WithMaxCopyThreads bounds the worker pool of Snapshot's tree copy when
// Snapshot's own threads argument is <= 0. n<=0 auto-selects via
// runtime.NumCPU(). The package-level Copy does not read it.
func WithMaxCopyThreads(n int) Option {
	return func(c *config) { c.maxCopyThreads = n }
}

// WithLogger supplies a structured logger for the manager and the
// sub-components it owns. A nil logger is replaced by slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

func resolveOptions(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}
