package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-sdupdater/flash"
	"github.com/moffa90/go-sdupdater/refstore"
)

// Updater writes firmware images into the inactive slot of a two-slot
// device and decides when to roll back to the other slot.
//
// Updater keeps no state between calls. It must not be used from more than
// one goroutine at a time, since the flash subsystem allows a single writer.
type Updater struct {
	flash  flash.Subsystem
	refs   *refstore.Store
	config Config
}

// Result describes a finished Apply call.
type Result struct {
	// Session identifies the update in log lines
	Session string

	// Label names the image
	Label string

	// Declared is the declared image size
	Declared int64

	// Written is the number of bytes written to flash
	Written int64

	// ShortWrite is set when the source ended before Declared bytes
	ShortWrite bool

	// ReferenceUpdated is set when the reference record was refreshed
	ReferenceUpdated bool
}

// session is the state of one Apply call.
type session struct {
	id          string
	label       string
	declared    int64
	written     int64
	lastPercent int
	started     time.Time
	reporter    Reporter
}

// New creates an Updater for the given flash subsystem and reference store.
//
// Example:
//
//	dev, _ := flash.OpenSim("/var/lib/device")
//	store, _ := nvs.OpenSQLite("/var/lib/device/nvs.db")
//	up := updater.New(dev, refstore.New(store),
//	    updater.WithLogger(updater.NewLoggoLogger(loggo.GetLogger("sdupdater"))),
//	)
func New(sys flash.Subsystem, refs *refstore.Store, opts ...Option) *Updater {
	if sys == nil {
		panic("flash subsystem cannot be nil")
	}
	if refs == nil {
		panic("reference store cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Updater{
		flash:  sys,
		refs:   refs,
		config: cfg,
	}
}

// Apply streams size bytes from src into the next update partition and
// finalizes it:
//  1. Announce the label to the reporter
//  2. Begin a write session of exactly size bytes
//  3. Copy the source in chunks, reporting progress per percentage point
//  4. End the session; its outcome decides success, not the byte count
//  5. Check the subsystem reports the update finished
//  6. For the privileged image, record the new slot's size and digest
//
// reporter may be nil, in which case the configured Reporter is used.
// A source that ends early is logged and flagged in Result.ShortWrite but
// finalization is still attempted. The caller restarts the device after a
// successful update.
//
// Example:
//
//	f, _ := os.Open("menu.bin")
//	info, _ := f.Stat()
//	res, err := up.Apply(ctx, f, info.Size(), "/menu.bin", nil)
func (u *Updater) Apply(ctx context.Context, src io.Reader, size int64, label string, reporter Reporter) (Result, error) {
	if src == nil {
		return Result{}, fmt.Errorf("source cannot be nil")
	}
	if size <= 0 {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}

	s := u.newSession(label, size, reporter)
	res := Result{Session: s.id, Label: label, Declared: size}

	s.reporter.Announce(label)

	if err := u.flash.Begin(size); err != nil {
		u.logError("not enough space to begin update",
			"session", s.id, "label", label, "size", size, "error", err)
		return res, fmt.Errorf("%w: %w", ErrNoSpace, err)
	}

	u.logDebug("write session started",
		"session", s.id,
		"label", label,
		"size", size,
		"partition", u.flash.NextUpdatePartition().String(),
	)

	err := u.copy(ctx, s, src)
	res.Written = s.written
	if err != nil {
		if aerr := u.flash.Abort(); aerr != nil {
			u.logError("abort failed", "session", s.id, "error", aerr)
		}
		return res, err
	}

	if s.written == size {
		u.logInfo("written successfully", "session", s.id, "bytes", s.written)
	} else {
		res.ShortWrite = true
		u.logError("short write", "session", s.id, "written", s.written, "size", size)
	}

	if err := u.flash.End(); err != nil {
		code := flash.CodeOf(err)
		u.logError("finalize failed", "session", s.id, "code", uint8(code), "error", err)
		return res, &FinalizeError{Code: code, Err: err}
	}

	if !u.flash.IsFinished() {
		u.logError("update not finished after finalize", "session", s.id)
		if err := u.flash.Abort(); err != nil {
			u.logError("abort failed", "session", s.id, "error", err)
		}
		return res, ErrIncomplete
	}

	if label == u.config.PrivilegedImage {
		res.ReferenceUpdated = u.updateReference(s)
	}

	u.logInfo("update complete",
		"session", s.id,
		"label", label,
		"bytes", s.written,
		"elapsed", u.config.Clock.Now().Sub(s.started).String(),
	)
	return res, nil
}

func (u *Updater) newSession(label string, size int64, reporter Reporter) *session {
	if reporter == nil {
		reporter = u.config.Reporter
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &session{
		id:       uuid.NewString(),
		label:    label,
		declared: size,
		started:  u.config.Clock.Now(),
		reporter: reporter,
	}
}

// copy streams the source into the open write session. It stops when the
// declared size is reached, the source ends, or a read or write fails;
// those conditions are left for End to judge. Only cancellation is
// returned as an error.
func (u *Updater) copy(ctx context.Context, s *session, src io.Reader) error {
	buf := make([]byte, u.config.ChunkSize)

	for s.written < s.declared {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		chunk := buf
		if remain := s.declared - s.written; remain < int64(len(chunk)) {
			chunk = chunk[:remain]
		}

		n, rerr := io.ReadFull(src, chunk)
		if n > 0 {
			m, werr := u.flash.Write(chunk[:n])
			s.written += int64(m)
			u.reportProgress(s)
			if werr != nil {
				u.logError("flash write failed", "session", s.id, "offset", s.written, "error", werr)
				return nil
			}
			if m < n {
				u.logError("flash write truncated", "session", s.id, "offset", s.written, "wrote", m, "of", n)
				return nil
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return nil
		default:
			u.logError("source read failed", "session", s.id, "offset", s.written, "error", rerr)
			return nil
		}
	}
	return nil
}

// reportProgress emits progress when the integer percentage changed since
// the last report of this session.
func (u *Updater) reportProgress(s *session) {
	percent := int(s.written * 100 / s.declared)
	if percent == s.lastPercent {
		return
	}
	s.lastPercent = percent
	s.reporter.Progress(Progress{
		Label:        s.label,
		BytesWritten: s.written,
		TotalBytes:   s.declared,
		Percent:      percent,
		ElapsedTime:  u.config.Clock.Now().Sub(s.started),
	})
}

// updateReference records the size and digest of the image just written.
// A failed save is logged and otherwise ignored: the update itself has
// succeeded.
func (u *Updater) updateReference(s *session) bool {
	meta := u.flash.NextUpdatePartition().Metadata()
	u.logInfo("updating reference record",
		"session", s.id,
		"size", meta.Length,
		"digest", meta.Digest.String(),
	)
	if err := u.refs.Save(meta.Length, meta.Digest); err != nil {
		u.logError("reference record not saved", "session", s.id, "error", err)
		return false
	}
	return true
}

// logDebug logs a debug message if a logger is configured.
func (u *Updater) logDebug(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (u *Updater) logInfo(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (u *Updater) logError(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Error(msg, keysAndValues...)
	}
}
