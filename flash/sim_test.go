package flash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdupdater/espimage"
)

func testImage(t *testing.T, fill byte) []byte {
	t.Helper()
	img, err := espimage.Encode(0x400D0018, []espimage.Segment{
		{LoadAddress: 0x3F400020, Data: bytes.Repeat([]byte{fill}, 256)},
	}, true)
	require.NoError(t, err)
	return img
}

func openTestDevice(t *testing.T, opts ...SimOption) *SimDevice {
	t.Helper()
	dev, err := OpenSim(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func flashImage(t *testing.T, dev *SimDevice, img []byte) {
	t.Helper()
	require.NoError(t, dev.Begin(int64(len(img))))
	n, err := dev.Write(img)
	require.NoError(t, err)
	require.Equal(t, len(img), n)
	require.NoError(t, dev.End())
}

func TestOpenSim_DefaultSelection(t *testing.T) {
	dev := openTestDevice(t)

	assert.Equal(t, "ota_0", dev.ActivePartition().Label)
	assert.Equal(t, "ota_1", dev.NextUpdatePartition().Label)
	assert.Equal(t, uint32(FirstSlotAddress), dev.ActivePartition().Address)
	assert.Equal(t, uint32(FirstSlotAddress+DefaultSlotSize), dev.NextUpdatePartition().Address)
	assert.False(t, dev.NextUpdatePartition().Metadata().Valid())
	assert.False(t, dev.CanRollback())
}

func TestSimDevice_UpdateAndRestart(t *testing.T) {
	var restarted *Partition
	dev := openTestDevice(t, WithRestartHook(func(p *Partition) { restarted = p }))
	img := testImage(t, 0x5A)

	flashImage(t, dev, img)
	assert.True(t, dev.IsFinished())
	assert.Equal(t, "ota_1", dev.BootPartition().Label)
	assert.Equal(t, "ota_0", dev.ActivePartition().Label, "running slot changes only on restart")

	meta := dev.NextUpdatePartition().Metadata()
	require.True(t, meta.Valid())
	assert.Equal(t, uint32(len(img)), meta.Length)

	require.NoError(t, dev.Restart())
	require.NotNil(t, restarted)
	assert.Equal(t, "ota_1", restarted.Label)
	assert.Equal(t, "ota_1", dev.ActivePartition().Label)
	assert.False(t, dev.IsFinished())
}

func TestSimDevice_BeginErrors(t *testing.T) {
	dev := openTestDevice(t, WithSlotSize(1024))

	err := dev.Begin(2048)
	assert.Equal(t, ErrSpace, CodeOf(err))

	err = dev.Begin(0)
	assert.Equal(t, ErrSize, CodeOf(err))

	require.NoError(t, dev.Begin(512))
	err = dev.Begin(512)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, ErrBadArgument, CodeOf(err))
}

func TestSimDevice_EndErrors(t *testing.T) {
	img := testImage(t, 0x01)

	t.Run("short write", func(t *testing.T) {
		dev := openTestDevice(t)
		require.NoError(t, dev.Begin(int64(len(img))))
		_, err := dev.Write(img[:len(img)/2])
		require.NoError(t, err)

		err = dev.End()
		assert.Equal(t, ErrAbort, CodeOf(err))
		assert.False(t, dev.IsFinished())
		assert.Equal(t, "ota_0", dev.BootPartition().Label)
	})

	t.Run("overflow", func(t *testing.T) {
		dev := openTestDevice(t)
		require.NoError(t, dev.Begin(4))
		_, err := dev.Write(img)
		assert.Equal(t, ErrSpace, CodeOf(err))
		assert.Equal(t, ErrSpace, CodeOf(dev.End()))
	})

	t.Run("bad magic", func(t *testing.T) {
		dev := openTestDevice(t)
		junk := bytes.Repeat([]byte{0xFF}, 64)
		require.NoError(t, dev.Begin(int64(len(junk))))
		_, err := dev.Write(junk)
		require.NoError(t, err)
		assert.Equal(t, ErrMagicByte, CodeOf(dev.End()))
	})

	t.Run("corrupt image", func(t *testing.T) {
		dev := openTestDevice(t)
		bad := append([]byte{}, img...)
		bad[espimage.HeaderSize+espimage.SegmentHeaderSize] ^= 0xFF
		require.NoError(t, dev.Begin(int64(len(bad))))
		_, err := dev.Write(bad)
		require.NoError(t, err)
		assert.Equal(t, ErrActivate, CodeOf(dev.End()))
		assert.Equal(t, "ota_0", dev.BootPartition().Label)
	})

	t.Run("no session", func(t *testing.T) {
		dev := openTestDevice(t)
		assert.Equal(t, ErrBadArgument, CodeOf(dev.End()))
		_, err := dev.Write(img)
		assert.Equal(t, ErrBadArgument, CodeOf(err))
	})
}

func TestSimDevice_AbortRestoresBootSelection(t *testing.T) {
	dev := openTestDevice(t)
	flashImage(t, dev, testImage(t, 0x22))
	require.Equal(t, "ota_1", dev.BootPartition().Label)

	require.NoError(t, dev.Abort())
	assert.Equal(t, "ota_0", dev.BootPartition().Label)
	assert.False(t, dev.IsFinished())
}

func TestSimDevice_Rollback(t *testing.T) {
	dev := openTestDevice(t)
	flashImage(t, dev, testImage(t, 0x33))
	require.NoError(t, dev.Restart())
	require.Equal(t, "ota_1", dev.ActivePartition().Label)

	// ota_0 is empty, nothing to roll back to
	assert.False(t, dev.CanRollback())
	assert.Equal(t, ErrNoPartition, CodeOf(dev.Rollback()))

	flashImage(t, dev, testImage(t, 0x44))
	require.NoError(t, dev.Restart())
	require.Equal(t, "ota_0", dev.ActivePartition().Label)

	require.True(t, dev.CanRollback())
	require.NoError(t, dev.Rollback())
	assert.Equal(t, "ota_1", dev.BootPartition().Label)
	require.NoError(t, dev.Restart())
	assert.Equal(t, "ota_1", dev.ActivePartition().Label)
}

func TestSimDevice_StatePersists(t *testing.T) {
	dir := t.TempDir()
	dev, err := OpenSim(dir)
	require.NoError(t, err)
	flashImage(t, dev, testImage(t, 0x55))
	require.NoError(t, dev.Restart())
	require.NoError(t, dev.Close())

	reopened, err := OpenSim(dir)
	require.NoError(t, err)
	assert.Equal(t, "ota_1", reopened.ActivePartition().Label)
	assert.True(t, reopened.ActivePartition().Metadata().Valid())
}

func TestSimDevice_OtadataWrittenInPlace(t *testing.T) {
	dir := t.TempDir()
	dev, err := OpenSim(dir)
	require.NoError(t, err)
	flashImage(t, dev, testImage(t, 0x66))
	require.NoError(t, dev.Rollback())
	require.NoError(t, dev.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"ota_0.bin", "ota_1.bin", "otadata"}, names, "no temporary files left behind")

	reopened, err := OpenSim(dir)
	require.NoError(t, err)
	assert.Equal(t, "ota_1", reopened.BootPartition().Label)
}

func TestSimDevice_BeginKeepsSlotWhenSelectionFails(t *testing.T) {
	dir := t.TempDir()
	dev, err := OpenSim(dir)
	require.NoError(t, err)
	img := testImage(t, 0x77)
	flashImage(t, dev, img)
	require.Equal(t, "ota_1", dev.BootPartition().Label)

	// a directory in place of otadata makes every selection write fail
	otadata := filepath.Join(dir, "otadata")
	require.NoError(t, os.Remove(otadata))
	require.NoError(t, os.MkdirAll(filepath.Join(otadata, "locked"), 0o755))

	err = dev.Begin(int64(len(img)))
	assert.Equal(t, ErrErase, CodeOf(err))

	data, err := os.ReadFile(filepath.Join(dir, "ota_1.bin"))
	require.NoError(t, err)
	assert.Equal(t, img, data, "inactive slot must not be erased")
	assert.Equal(t, "ota_1", dev.BootPartition().Label, "selection unchanged after failed write")

	// the session was never opened
	assert.Equal(t, ErrBadArgument, CodeOf(dev.End()))
}

func TestPartition_WithoutData(t *testing.T) {
	p := NewPartition("ota_0", FirstSlotAddress, 4096, nil)
	n, err := p.ReadAt(make([]byte, 16), 0)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, p.Metadata().Valid())
}

func TestPartition_NilMetadata(t *testing.T) {
	var p *Partition
	assert.False(t, p.Metadata().Valid())
	assert.Equal(t, "<none>", p.String())
}

func TestErrorCodeString(t *testing.T) {
	err := &Error{Op: "end", Code: ErrActivate}
	assert.Equal(t, "end failed: could not activate the firmware (9)", err.Error())
	assert.Equal(t, ErrUnknown, CodeOf(assert.AnError))
	assert.Equal(t, ErrOK, CodeOf(nil))
	assert.Contains(t, ErrorCode(0x42).String(), "unknown error")
}
