package pagebuffer

import (
	"io"

	"github.com/cockroachdb/errors"
)

// ErrCorruptedData is returned when a read through a Reader cannot be satisfied from the
// reader's window. Recorded payloads are always read back with the exact length they were
// written with, so a short read means the recorded data is truncated or misinterpreted.
var ErrCorruptedData = errors.New("corrupted or truncated data")

// Reader is a read cursor over a fixed [begin, end) window of a Buffer
type Reader struct {
	buffer *Buffer
	begin  int
	end    int
	pos    int
}

var _ io.ReadSeeker = &Reader{}
var _ io.ByteReader = &Reader{}

// NewReader creates a Reader over the bytes [begin, end) of buffer, positioned at begin
func NewReader(buffer *Buffer, begin, end int) *Reader {
	if end < begin {
		end = begin
	}

	return &Reader{
		buffer: buffer,
		begin:  begin,
		end:    end,
		pos:    begin,
	}
}

// Len returns the size of the reader's window
func (r *Reader) Len() int { return r.end - r.begin }

// Position returns the cursor's offset from the start of the window
func (r *Reader) Position() int { return r.pos - r.begin }

// Remaining returns the number of bytes between the cursor and the end of the window
func (r *Reader) Remaining() int { return r.end - r.pos }

// Read implements io.Reader. Reads are cut short at the end of the window, and io.EOF is
// returned once the cursor has reached it. If the underlying buffer is shorter than the
// window, ErrCorruptedData is returned.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.end {
		return 0, io.EOF
	}

	if len(p) > r.end-r.pos {
		p = p[:r.end-r.pos]
	}

	read := r.buffer.Read(r.pos, p)
	r.pos += read
	if read < len(p) {
		return read, errors.Wrapf(ErrCorruptedData, "window ends at %d but the buffer holds only %d bytes", r.end, r.buffer.Size())
	}

	return read, nil
}

// ReadExact fills p entirely or fails with ErrCorruptedData, in which case the cursor does
// not move
func (r *Reader) ReadExact(p []byte) error {
	if len(p) > r.Remaining() {
		return errors.Wrapf(ErrCorruptedData, "needed %d bytes at window offset %d, but only %d remain", len(p), r.Position(), r.Remaining())
	}

	read := r.buffer.Read(r.pos, p)
	if read < len(p) {
		return errors.Wrapf(ErrCorruptedData, "needed %d bytes at buffer offset %d, but the buffer holds only %d bytes", len(p), r.pos, r.buffer.Size())
	}

	r.pos += read
	return nil
}

// ReadByte implements io.ByteReader
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= r.end {
		return 0, io.EOF
	}

	var value [1]byte
	err := r.ReadExact(value[:])
	if err != nil {
		return 0, err
	}
	return value[0], nil
}

// Seek implements io.Seeker. Offsets are relative to the window; the resulting position is
// clamped into [0, Len()].
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = int64(r.begin) + offset
	case io.SeekCurrent:
		target = int64(r.pos) + offset
	case io.SeekEnd:
		target = int64(r.end) + offset
	default:
		return int64(r.Position()), errors.Errorf("invalid whence %d", whence)
	}

	target = max(target, int64(r.begin))
	target = min(target, int64(r.end))
	r.pos = int(target)

	return int64(r.Position()), nil
}

// Window returns a Reader over the next size bytes of r without advancing r. It fails with
// ErrCorruptedData if fewer than size bytes remain.
func (r *Reader) Window(size int) (*Reader, error) {
	if size < 0 || size > r.Remaining() {
		return nil, errors.Wrapf(ErrCorruptedData, "cannot open a %d-byte window at offset %d, only %d bytes remain", size, r.Position(), r.Remaining())
	}

	return NewReader(r.buffer, r.pos, r.pos+size), nil
}

// Writer is a write cursor over a Buffer starting at a fixed begin offset. Writes grow the
// buffer as needed.
type Writer struct {
	buffer *Buffer
	begin  int
	pos    int
}

var _ io.WriteSeeker = &Writer{}
var _ io.ByteWriter = &Writer{}

// NewWriter creates a Writer over buffer positioned at begin
func NewWriter(buffer *Buffer, begin int) *Writer {
	return &Writer{
		buffer: buffer,
		begin:  begin,
		pos:    begin,
	}
}

// Position returns the cursor's offset from begin
func (w *Writer) Position() int { return w.pos - w.begin }

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	err := w.buffer.Write(w.pos, p)
	if err != nil {
		return 0, err
	}

	w.pos += len(p)
	return len(p), nil
}

// WriteByte implements io.ByteWriter
func (w *Writer) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}

// Seek implements io.Seeker. Offsets are relative to begin, io.SeekEnd is relative to the
// end of the underlying buffer, and the resulting position is never before begin.
func (w *Writer) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = int64(w.begin) + offset
	case io.SeekCurrent:
		target = int64(w.pos) + offset
	case io.SeekEnd:
		target = int64(w.buffer.Size()) + offset
	default:
		return int64(w.Position()), errors.Errorf("invalid whence %d", whence)
	}

	w.pos = int(max(target, int64(w.begin)))
	return int64(w.Position()), nil
}
