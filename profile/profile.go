package profile

// Config describes one profiling session.
type Config struct {
	Mode  string
	Path  string
	Quiet bool
}

// Option modifies a Config.
type Option func(Config) Config

// Stopper ends a profiling session.
type Stopper interface{ Stop() }

// New returns a Config with opts applied.
func New(opts ...Option) Config {
	var c Config

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithMode sets the profiling mode, one of [Modes].
func WithMode(mode string) Option {
	return func(c Config) Config {
		c.Mode = mode

		return c
	}
}

// WithPath sets the directory profiles are written to.
func WithPath(path string) Option {
	return func(c Config) Config {
		c.Path = path

		return c
	}
}

// WithQuiet suppresses the profiler's own log output.
func WithQuiet(quiet bool) Option {
	return func(c Config) Config {
		c.Quiet = quiet

		return c
	}
}

// Start begins profiling and returns a [Stopper] that ends it.
//
// If the mode is empty or unknown, or the "pprof" build tag is unset, Start
// returns a no-op. Both Start and Stop are always safely callable.
func (c Config) Start() Stopper {
	if c.Mode == "" {
		return ignore{}
	}

	return start(c)
}

type ignore struct{}

func (ignore) Stop() {}
