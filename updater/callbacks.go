package updater

import "time"

// Progress describes how far an update has been written.
// Passed to Reporter.Progress while the image is streamed into flash.
type Progress struct {
	// Label names the image being written
	Label string

	// BytesWritten is the number of bytes written so far
	BytesWritten int64

	// TotalBytes is the declared image size
	TotalBytes int64

	// Percent is BytesWritten as an integer percentage of TotalBytes
	Percent int

	// ElapsedTime is the time since the write session began
	ElapsedTime time.Duration
}

// Reporter receives update progress. Calls are made synchronously from the
// write loop, so implementations should return quickly.
//
// Progress is only called when Percent differs from the previously
// reported value, at most once per percentage point.
type Reporter interface {
	// Announce is called once, before the write session begins.
	Announce(label string)

	// Progress is called after a chunk is written and the percentage moved.
	Progress(p Progress)
}

// ProgressCallback is called when the write percentage changes.
//
// Example:
//
//	up := updater.New(dev, refs,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("%s: %d%%\n", p.Label, p.Percent)
//	    }),
//	)
type ProgressCallback func(Progress)

// Announce implements Reporter; a ProgressCallback ignores announcements.
func (f ProgressCallback) Announce(string) {}

// Progress implements Reporter.
func (f ProgressCallback) Progress(p Progress) {
	if f != nil {
		f(p)
	}
}

type nopReporter struct{}

func (nopReporter) Announce(string)   {}
func (nopReporter) Progress(Progress) {}

// Logger is an optional logging interface that can be provided to the updater.
// This allows integration with any logging framework; NewLoggoLogger adapts
// a loggo.Logger.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	up := updater.New(dev, refs, updater.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Watchdog is a task watchdog that must not fire while flash is written.
type Watchdog interface {
	Disable()
	Enable()
}
