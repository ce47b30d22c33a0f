package updater

import "github.com/juju/clock"

// Default configuration values.
const (
	// DefaultChunkSize is the number of bytes copied per flash write,
	// one flash sector
	DefaultChunkSize = 4096

	// MaxChunkSize is the largest accepted chunk size
	MaxChunkSize = 64 * 1024

	// DefaultPrivilegedImage is the file name of the menu image whose
	// metadata is mirrored into the reference store
	DefaultPrivilegedImage = "/menu.bin"
)

// Config holds the updater configuration.
type Config struct {
	// Reporter receives progress when Apply is not given one (optional)
	Reporter Reporter

	// Logger is used for logging operations (optional)
	Logger Logger

	// ChunkSize is the number of bytes read from the source per write
	ChunkSize int

	// PrivilegedImage is the label, compared case-sensitively, whose
	// successful update refreshes the reference record
	PrivilegedImage string

	// Watchdog is disabled while UpdateFromFS writes flash (optional)
	Watchdog Watchdog

	// Clock measures elapsed time for progress reports
	Clock clock.Clock
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ChunkSize:       DefaultChunkSize,
		PrivilegedImage: DefaultPrivilegedImage,
		Clock:           clock.WallClock,
	}
}

// Option is a functional option for configuring the Updater.
type Option func(*Config)

// WithReporter sets the default progress reporter.
//
// Example:
//
//	up := updater.New(dev, refs, updater.WithReporter(lcd))
func WithReporter(r Reporter) Option {
	return func(c *Config) {
		c.Reporter = r
	}
}

// WithProgressCallback sets a callback function to track write progress.
//
// Example:
//
//	up := updater.New(dev, refs,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("%d%% complete\n", p.Percent)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		if callback != nil {
			c.Reporter = callback
		}
	}
}

// WithLogger sets a logger for the updater operations.
//
// Example:
//
//	up := updater.New(dev, refs, updater.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets the number of bytes copied per flash write.
// Values outside 1..MaxChunkSize are ignored.
//
// Example:
//
//	up := updater.New(dev, refs, updater.WithChunkSize(1024))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= MaxChunkSize {
			c.ChunkSize = size
		}
	}
}

// WithPrivilegedImage sets the label of the image mirrored into the
// reference store. Default is "/menu.bin".
//
// Example:
//
//	up := updater.New(dev, refs, updater.WithPrivilegedImage("/launcher.bin"))
func WithPrivilegedImage(label string) Option {
	return func(c *Config) {
		if label != "" {
			c.PrivilegedImage = label
		}
	}
}

// WithWatchdog sets a watchdog to disable while UpdateFromFS writes flash.
func WithWatchdog(w Watchdog) Option {
	return func(c *Config) {
		c.Watchdog = w
	}
}

// WithClock sets the clock used for elapsed time in progress reports.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		if clk != nil {
			c.Clock = clk
		}
	}
}
