package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Device is the sink one export run writes into. Open acquires the sink
// before the first write; Close releases it and must be idempotent,
// because the exporter closes on every exit path and keeps a second
// deferred close as the safety net.
type Device interface {
	Open() error
	io.Writer
	Close() error
}

// DeviceError describes a failed device operation. Its Reason survives
// into the export result so callers can tell access failures apart from
// plain write errors.
type DeviceError struct {
	Reason Reason
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("export device: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// deviceReason extracts the failure reason when err is a DeviceError.
func deviceReason(err error) Reason {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Reason
	}
	return ReasonUnknown
}

// FileDevice writes an export into a file through a buffer. The parent
// directory is created on Open.
type FileDevice struct {
	path string
	file *os.File
	buf  *bufio.Writer
}

// NewFileDevice creates a device that will write to path once opened.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

// Path returns the target file path.
func (d *FileDevice) Path() string { return d.path }

// Open creates the target file, truncating any previous export with the
// same name.
func (d *FileDevice) Open() error {
	if d.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return &DeviceError{Reason: ReasonLocationNotWritable, Op: "create exports directory", Err: err}
	}
	file, err := os.Create(d.path)
	if err != nil {
		return &DeviceError{Reason: ReasonLocationNotWritable, Op: "create export file", Err: err}
	}
	d.file = file
	d.buf = bufio.NewWriter(file)
	return nil
}

func (d *FileDevice) Write(p []byte) (int, error) {
	if d.buf == nil {
		return 0, &DeviceError{Reason: ReasonDeviceNotAvailable, Op: "write", Err: os.ErrClosed}
	}
	n, err := d.buf.Write(p)
	if err != nil {
		return n, &DeviceError{Reason: ReasonDeviceNotAvailable, Op: "write", Err: err}
	}
	return n, nil
}

// Close flushes the buffer and closes the file. Calling it again after a
// successful close is a no-op.
func (d *FileDevice) Close() error {
	if d.file == nil {
		return nil
	}
	flushErr := d.buf.Flush()
	closeErr := d.file.Close()
	d.file = nil
	d.buf = nil
	if flushErr != nil {
		return &DeviceError{Reason: ReasonDeviceNotAvailable, Op: "flush", Err: flushErr}
	}
	if closeErr != nil {
		return &DeviceError{Reason: ReasonDeviceNotAvailable, Op: "close", Err: closeErr}
	}
	return nil
}

// WriterDevice adapts a plain io.Writer, such as an HTTP response, to the
// Device interface. Open and Close are no-ops; the writer's lifetime is
// the caller's business.
type WriterDevice struct {
	w io.Writer
	n int64
}

// NewWriterDevice wraps w as a Device.
func NewWriterDevice(w io.Writer) *WriterDevice {
	return &WriterDevice{w: w}
}

func (d *WriterDevice) Open() error { return nil }

func (d *WriterDevice) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	d.n += int64(n)
	if err != nil {
		return n, &DeviceError{Reason: ReasonDeviceNotAvailable, Op: "write", Err: err}
	}
	return n, nil
}

func (d *WriterDevice) Close() error { return nil }

// Written returns how many bytes reached the underlying writer. HTTP
// handlers use it to decide whether headers can still be changed.
func (d *WriterDevice) Written() int64 { return d.n }
