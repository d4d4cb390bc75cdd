package pagebuffer

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// WriteValue writes value to w in little-endian byte order. value must be a fixed-size type
// accepted by encoding/binary.
func WriteValue[T any](w *Writer, value T) error {
	return binary.Write(w, binary.LittleEndian, value)
}

// ReadValue reads a fixed-size value written by WriteValue. If the reader's window does not
// hold enough bytes, ErrCorruptedData is returned and the reader does not move.
func ReadValue[T any](r *Reader) (T, error) {
	var value T
	size := binary.Size(value)
	if size < 0 {
		return value, errors.Errorf("%T is not a fixed-size type", value)
	}

	data := make([]byte, size)
	err := r.ReadExact(data)
	if err != nil {
		return value, err
	}

	err = binary.Read(bytes.NewReader(data), binary.LittleEndian, &value)
	return value, err
}

// WriteBytes writes data to w preceded by its length as a little-endian uint32
func WriteBytes(w *Writer, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return errors.Errorf("cannot record %d bytes in a single length-prefixed value", len(data))
	}

	err := WriteValue(w, uint32(len(data)))
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// ReadBytes reads a length-prefixed byte slice written by WriteBytes
func ReadBytes(r *Reader) ([]byte, error) {
	length, err := ReadValue[uint32](r)
	if err != nil {
		return nil, err
	}

	if int(length) > r.Remaining() {
		return nil, errors.Wrapf(ErrCorruptedData, "length prefix claims %d bytes, but only %d remain", length, r.Remaining())
	}

	data := make([]byte, length)
	err = r.ReadExact(data)
	return data, err
}
