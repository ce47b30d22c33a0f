package updater

import (
	"bytes"
	"fmt"

	"github.com/moffa90/go-sdupdater/flash"
)

const mockSlotSize = 0x100000

// MockSubsystem simulates a two-slot flash subsystem for testing
type MockSubsystem struct {
	active    *flash.Partition
	nextImage []byte

	beginErr    error
	writeErr    error
	endErr      error
	rollbackErr error
	restartErr  error

	// finished is what IsFinished reports after a successful End
	finished    bool
	canRollback bool

	written    bytes.Buffer
	writeSizes []int
	declared   int64
	ended      bool
	calls      []string

	rollbackCalls int
	restartCalls  int
	abortCalls    int
}

func NewMockSubsystem() *MockSubsystem {
	return &MockSubsystem{
		active:   flash.NewPartition("ota_0", 0x10000, mockSlotSize, bytes.NewReader(nil)),
		finished: true,
	}
}

func (m *MockSubsystem) ActivePartition() *flash.Partition {
	return m.active
}

// NextUpdatePartition serves nextImage when set, otherwise the bytes
// written so far.
func (m *MockSubsystem) NextUpdatePartition() *flash.Partition {
	data := m.nextImage
	if data == nil {
		data = m.written.Bytes()
	}
	return flash.NewPartition("ota_1", 0x110000, mockSlotSize, bytes.NewReader(data))
}

func (m *MockSubsystem) Begin(size int64) error {
	m.calls = append(m.calls, "begin")
	if m.beginErr != nil {
		return m.beginErr
	}
	m.declared = size
	m.written.Reset()
	m.writeSizes = nil
	m.ended = false
	return nil
}

func (m *MockSubsystem) Write(p []byte) (int, error) {
	m.calls = append(m.calls, "write")
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writeSizes = append(m.writeSizes, len(p))
	return m.written.Write(p)
}

func (m *MockSubsystem) End() error {
	m.calls = append(m.calls, "end")
	if m.endErr != nil {
		return m.endErr
	}
	m.ended = true
	return nil
}

func (m *MockSubsystem) IsFinished() bool {
	return m.ended && m.finished
}

func (m *MockSubsystem) Abort() error {
	m.calls = append(m.calls, "abort")
	m.abortCalls++
	m.ended = false
	return nil
}

func (m *MockSubsystem) CanRollback() bool {
	m.calls = append(m.calls, "canRollback")
	return m.canRollback
}

func (m *MockSubsystem) Rollback() error {
	m.calls = append(m.calls, "rollback")
	m.rollbackCalls++
	return m.rollbackErr
}

func (m *MockSubsystem) Restart() error {
	m.calls = append(m.calls, "restart")
	m.restartCalls++
	return m.restartErr
}

func (m *MockSubsystem) called(name string) bool {
	for _, c := range m.calls {
		if c == name {
			return true
		}
	}
	return false
}

// MockLogger records messages for testing
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

func contains(msgs []string, msg string) bool {
	for _, m := range msgs {
		if m == msg {
			return true
		}
	}
	return false
}

// recordingReporter captures announcements and progress reports
type recordingReporter struct {
	announced []string
	reports   []Progress
}

func (r *recordingReporter) Announce(label string) {
	r.announced = append(r.announced, label)
}

func (r *recordingReporter) Progress(p Progress) {
	r.reports = append(r.reports, p)
}

// failingReader returns data and then a non-EOF error
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

// mockWatchdog records disable/enable calls
type mockWatchdog struct {
	events []string
}

func (w *mockWatchdog) Disable() { w.events = append(w.events, "disable") }
func (w *mockWatchdog) Enable()  { w.events = append(w.events, "enable") }

func (w *mockWatchdog) String() string { return fmt.Sprint(w.events) }
