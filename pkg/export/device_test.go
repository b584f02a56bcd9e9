package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDeviceWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "out.gpx")
	device := NewFileDevice(path)

	require.NoError(t, device.Open())
	_, err := device.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = device.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, device.Close())
	// Second close is a no-op.
	require.NoError(t, device.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestFileDeviceOpenFailsOnUnwritableLocation(t *testing.T) {
	// A regular file in the directory position makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	device := NewFileDevice(filepath.Join(blocker, "sub", "out.gpx"))
	err := device.Open()
	require.Error(t, err)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonLocationNotWritable, devErr.Reason)
}

func TestFileDeviceWriteAfterClose(t *testing.T) {
	device := NewFileDevice(filepath.Join(t.TempDir(), "out.gpx"))
	require.NoError(t, device.Open())
	require.NoError(t, device.Close())

	_, err := device.Write([]byte("late"))
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonDeviceNotAvailable, devErr.Reason)
}

type shortWriter struct {
	fail bool
	n    int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if w.fail {
		return 0, errors.New("connection reset")
	}
	w.n += len(p)
	return len(p), nil
}

func TestWriterDeviceCountsBytes(t *testing.T) {
	sink := &shortWriter{}
	device := NewWriterDevice(sink)

	require.NoError(t, device.Open())
	_, err := device.Write([]byte("12345"))
	require.NoError(t, err)
	require.EqualValues(t, 5, device.Written())
	require.NoError(t, device.Close())
}

func TestWriterDeviceWrapsWriteError(t *testing.T) {
	device := NewWriterDevice(&shortWriter{fail: true})

	_, err := device.Write([]byte("x"))
	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonDeviceNotAvailable, devErr.Reason)
	require.Zero(t, device.Written())
}
