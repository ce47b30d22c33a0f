package flash

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/moffa90/go-sdupdater/espimage"
)

// Simulator layout defaults.
const (
	// DefaultSlotSize is the capacity of each simulated slot (1.25 MiB)
	DefaultSlotSize = 0x140000

	// FirstSlotAddress is the flash offset of ota_0
	FirstSlotAddress = 0x10000

	// otadataFile holds the CBOR-encoded boot selection
	otadataFile = "otadata"
)

var slotLabels = [2]string{"ota_0", "ota_1"}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("flash: CBOR encoder initialization failed: " + err.Error())
	}
}

// otaState is the persisted boot selection.
type otaState struct {
	// Running is the slot the device booted from
	Running int `cbor:"1,keyasint"`

	// Boot is the slot selected for the next restart
	Boot int `cbor:"2,keyasint"`

	// Seq counts boot selection changes
	Seq uint32 `cbor:"3,keyasint"`
}

type writeSession struct {
	slot     int
	file     *os.File
	declared int64
	written  int64
	failure  ErrorCode
}

// SimOption configures a SimDevice.
type SimOption func(*SimDevice)

// WithSlotSize sets the capacity of each slot.
func WithSlotSize(size uint32) SimOption {
	return func(d *SimDevice) {
		if size > 0 {
			d.slotSize = size
		}
	}
}

// WithRestartHook sets a function called by Restart with the partition the
// device now runs from.
func WithRestartHook(hook func(*Partition)) SimOption {
	return func(d *SimDevice) {
		d.onRestart = hook
	}
}

// SimDevice simulates a two-slot device in a directory: ota_0.bin and
// ota_1.bin hold the slot contents and otadata holds the boot selection.
//
// SimDevice is not safe for concurrent use. It enforces a single write
// session at a time.
type SimDevice struct {
	dir       string
	slotSize  uint32
	state     otaState
	session   *writeSession
	finished  bool
	onRestart func(*Partition)
}

// OpenSim opens the simulated device in dir, creating it if needed.
func OpenSim(dir string, opts ...SimOption) (*SimDevice, error) {
	d := &SimDevice{
		dir:      dir,
		slotSize: DefaultSlotSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Annotatef(err, "create device dir %s", dir)
	}
	for i := range slotLabels {
		f, err := os.OpenFile(d.slotPath(i), os.O_CREATE|os.O_RDONLY, 0o644)
		if err != nil {
			return nil, errors.Annotatef(err, "create slot %s", slotLabels[i])
		}
		_ = f.Close()
	}

	raw, err := os.ReadFile(filepath.Join(dir, otadataFile))
	switch {
	case os.IsNotExist(err):
		if err := d.commit(d.state); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, errors.Annotate(err, "read otadata")
	default:
		if err := cbor.Unmarshal(raw, &d.state); err != nil {
			return nil, errors.Annotate(err, "decode otadata")
		}
		if !validSlot(d.state.Running) || !validSlot(d.state.Boot) {
			return nil, errors.Errorf("otadata selects invalid slots %d/%d", d.state.Running, d.state.Boot)
		}
	}
	return d, nil
}

// Close releases an open write session without finalizing it.
func (d *SimDevice) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.file.Close()
	d.session = nil
	return err
}

// ActivePartition returns the running slot.
func (d *SimDevice) ActivePartition() *Partition {
	return d.partition(d.state.Running)
}

// NextUpdatePartition returns the slot that is not running.
func (d *SimDevice) NextUpdatePartition() *Partition {
	return d.partition(other(d.state.Running))
}

// BootPartition returns the slot selected for the next restart.
func (d *SimDevice) BootPartition() *Partition {
	return d.partition(d.state.Boot)
}

// Begin erases the next update partition and opens a write session.
func (d *SimDevice) Begin(size int64) error {
	if d.session != nil {
		return &Error{Op: "begin", Code: ErrBadArgument, Err: ErrBusy}
	}
	if size <= 0 {
		return &Error{Op: "begin", Code: ErrSize}
	}
	if size > int64(d.slotSize) {
		return &Error{Op: "begin", Code: ErrSpace,
			Err: errors.Errorf("image of %d bytes exceeds slot of %d bytes", size, d.slotSize)}
	}

	slot := other(d.state.Running)
	if d.state.Boot == slot {
		// deselect the slot before erasing it
		next := d.state
		next.Boot = d.state.Running
		if err := d.commit(next); err != nil {
			return &Error{Op: "begin", Code: ErrErase, Err: err}
		}
	}
	f, err := os.OpenFile(d.slotPath(slot), os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return &Error{Op: "begin", Code: ErrErase, Err: err}
	}

	d.session = &writeSession{slot: slot, file: f, declared: size}
	d.finished = false
	return nil
}

// Write appends p to the open session. Writing past the declared size
// fails the session.
func (d *SimDevice) Write(p []byte) (int, error) {
	s := d.session
	if s == nil {
		return 0, &Error{Op: "write", Code: ErrBadArgument, Err: errors.New("no write session")}
	}
	if s.failure != ErrOK {
		return 0, &Error{Op: "write", Code: s.failure}
	}
	if s.written+int64(len(p)) > s.declared {
		s.failure = ErrSpace
		return 0, &Error{Op: "write", Code: ErrSpace}
	}
	n, err := s.file.Write(p)
	s.written += int64(n)
	if err != nil {
		s.failure = ErrWrite
		return n, &Error{Op: "write", Code: ErrWrite, Err: err}
	}
	return n, nil
}

// End closes the session, verifies the image and selects its slot for the
// next boot.
func (d *SimDevice) End() error {
	s := d.session
	if s == nil {
		return &Error{Op: "end", Code: ErrBadArgument, Err: errors.New("no write session")}
	}
	d.session = nil
	if err := s.file.Close(); err != nil {
		return &Error{Op: "end", Code: ErrWrite, Err: err}
	}
	if s.failure != ErrOK {
		return &Error{Op: "end", Code: s.failure}
	}
	if s.written != s.declared {
		return &Error{Op: "end", Code: ErrAbort,
			Err: errors.Errorf("premature end: %d of %d bytes", s.written, s.declared)}
	}

	data, err := os.ReadFile(d.slotPath(s.slot))
	if err != nil {
		return &Error{Op: "end", Code: ErrRead, Err: err}
	}
	if len(data) == 0 || data[0] != espimage.Magic {
		return &Error{Op: "end", Code: ErrMagicByte}
	}
	if _, err := espimage.Parse(bytes.NewReader(data), d.address(s.slot), int64(d.slotSize)); err != nil {
		return &Error{Op: "end", Code: ErrActivate, Err: err}
	}

	next := d.state
	next.Boot = s.slot
	next.Seq++
	if err := d.commit(next); err != nil {
		return &Error{Op: "end", Code: ErrActivate, Err: err}
	}
	d.finished = true
	return nil
}

// IsFinished reports whether the last ended session wrote every declared
// byte and was activated.
func (d *SimDevice) IsFinished() bool {
	return d.session == nil && d.finished
}

// Abort drops the open session, if any, and keeps the running slot selected
// for the next boot.
func (d *SimDevice) Abort() error {
	if s := d.session; s != nil {
		d.session = nil
		_ = s.file.Close()
		if err := os.Truncate(d.slotPath(s.slot), 0); err != nil {
			return &Error{Op: "abort", Code: ErrErase, Err: err}
		}
	}
	d.finished = false
	if d.state.Boot != d.state.Running {
		next := d.state
		next.Boot = d.state.Running
		next.Seq++
		if err := d.commit(next); err != nil {
			return &Error{Op: "abort", Code: ErrActivate, Err: err}
		}
	}
	return nil
}

// CanRollback reports whether the other slot holds a verifiable image.
func (d *SimDevice) CanRollback() bool {
	if d.session != nil {
		return false
	}
	return d.NextUpdatePartition().Metadata().Valid()
}

// Rollback selects the other slot for the next boot.
func (d *SimDevice) Rollback() error {
	if !d.CanRollback() {
		return &Error{Op: "rollback", Code: ErrNoPartition,
			Err: errors.New("other slot holds no bootable image")}
	}
	next := d.state
	next.Boot = other(d.state.Running)
	next.Seq++
	if err := d.commit(next); err != nil {
		return &Error{Op: "rollback", Code: ErrActivate, Err: err}
	}
	return nil
}

// Restart boots the selected slot.
func (d *SimDevice) Restart() error {
	if d.session != nil {
		if err := d.Abort(); err != nil {
			return err
		}
	}
	next := d.state
	next.Running = d.state.Boot
	if err := d.commit(next); err != nil {
		return &Error{Op: "restart", Code: ErrActivate, Err: err}
	}
	d.finished = false
	if d.onRestart != nil {
		d.onRestart(d.ActivePartition())
	}
	return nil
}

func (d *SimDevice) partition(slot int) *Partition {
	data, err := os.ReadFile(d.slotPath(slot))
	if err != nil {
		data = nil
	}
	return NewPartition(slotLabels[slot], d.address(slot), d.slotSize, bytes.NewReader(data))
}

// commit writes next to otadata and adopts it once it is on disk. On
// failure the in-memory selection is left unchanged.
func (d *SimDevice) commit(next otaState) error {
	raw, err := encMode.Marshal(next)
	if err != nil {
		return errors.Annotate(err, "encode otadata")
	}
	if err := utils.AtomicWriteFile(filepath.Join(d.dir, otadataFile), raw, 0o644); err != nil {
		return errors.Annotate(err, "write otadata")
	}
	d.state = next
	return nil
}

func (d *SimDevice) slotPath(slot int) string {
	return filepath.Join(d.dir, slotLabels[slot]+".bin")
}

func (d *SimDevice) address(slot int) uint32 {
	return FirstSlotAddress + uint32(slot)*d.slotSize
}

func other(slot int) int {
	return 1 - slot
}

func validSlot(slot int) bool {
	return slot == 0 || slot == 1
}

// String describes the boot selection.
func (d *SimDevice) String() string {
	return fmt.Sprintf("running=%s boot=%s", slotLabels[d.state.Running], slotLabels[d.state.Boot])
}
