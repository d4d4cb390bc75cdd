package oplog

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/pagebuffer"
)

// HeaderSize is the size in bytes of a frame header: a little-endian uint32 kind followed by
// a little-endian uint64 body size
const HeaderSize = 12

type header struct {
	Kind Kind
	Size uint64
}

type frame struct {
	kind  Kind
	start int64
	size  int
}

// WriteOperation appends a frame of the given kind to w. body writes the frame's contents;
// the frame header is back-patched with the number of bytes body left between the header and
// the writer's final position.
func WriteOperation(w *pagebuffer.Writer, kind Kind, body func(w *pagebuffer.Writer) error) error {
	begin := w.Position()
	err := pagebuffer.WriteValue(w, header{})
	if err != nil {
		return err
	}

	err = body(w)
	if err != nil {
		return err
	}

	end := w.Position()
	if end < begin+HeaderSize {
		return errors.Errorf("body of operation kind %d ended before its own header", kind)
	}

	_, err = w.Seek(int64(begin), io.SeekStart)
	if err != nil {
		return err
	}

	err = pagebuffer.WriteValue(w, header{Kind: kind, Size: uint64(end - begin - HeaderSize)})
	if err != nil {
		return err
	}

	_, err = w.Seek(int64(end), io.SeekStart)
	return err
}

// readFrame reads the header of the frame at the reader's position. It returns false once the
// reader is exhausted. A partial header is corrupt data.
func readFrame(r *pagebuffer.Reader) (frame, bool, error) {
	if r.Remaining() == 0 {
		return frame{}, false, nil
	}

	h, err := pagebuffer.ReadValue[header](r)
	if err != nil {
		return frame{}, false, errors.Wrap(err, "failed to read operation header")
	}

	if h.Size > uint64(r.Remaining()) {
		return frame{}, false, errors.Wrapf(pagebuffer.ErrCorruptedData, "operation kind %d declares %d bytes, but only %d remain", h.Kind, h.Size, r.Remaining())
	}

	return frame{
		kind:  h.Kind,
		start: int64(r.Position()),
		size:  int(h.Size),
	}, true, nil
}

func process[T any](registry *Registry[T], target T, mode Mode, r *pagebuffer.Reader, f frame) error {
	registered, err := registry.lookup(f.kind)
	if err != nil {
		return err
	}

	_, err = r.Seek(f.start, io.SeekStart)
	if err != nil {
		return err
	}

	body, err := r.Window(f.size)
	if err != nil {
		return err
	}

	err = registered.processor(target, mode, body)
	if err != nil {
		return errors.Wrapf(err, "operation %s failed in %s", registered.name, mode)
	}

	return nil
}

// DoOperations applies every frame from the reader's position to its end, in the order they
// were written
func DoOperations[T any](registry *Registry[T], target T, r *pagebuffer.Reader) error {
	for {
		f, ok, err := readFrame(r)
		if err != nil || !ok {
			return err
		}

		err = process(registry, target, ModeDo, r, f)
		if err != nil {
			return err
		}

		_, err = r.Seek(f.start+int64(f.size), io.SeekStart)
		if err != nil {
			return err
		}
	}
}

// UndoOperations reverts every frame from the reader's position to its end, last frame first.
// The log is scanned forward once to find frame boundaries, then played back in reverse.
func UndoOperations[T any](registry *Registry[T], target T, r *pagebuffer.Reader) error {
	rewinder, err := NewRewinder(registry, target, r)
	if err != nil {
		return err
	}

	for {
		ok, err := rewinder.UndoNext()
		if err != nil || !ok {
			return err
		}
	}
}

// Rewinder reverts the frames of a log one at a time, last frame first
type Rewinder[T any] struct {
	registry *Registry[T]
	target   T
	reader   *pagebuffer.Reader
	frames   []frame
}

// NewRewinder scans the frames from the reader's position to its end. No frame is reverted
// until UndoNext is called.
func NewRewinder[T any](registry *Registry[T], target T, r *pagebuffer.Reader) (*Rewinder[T], error) {
	var frames []frame
	for {
		f, ok, err := readFrame(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		frames = append(frames, f)
		_, err = r.Seek(f.start+int64(f.size), io.SeekStart)
		if err != nil {
			return nil, err
		}
	}

	return &Rewinder[T]{
		registry: registry,
		target:   target,
		reader:   r,
		frames:   frames,
	}, nil
}

// Remaining returns the number of frames that have not been reverted yet
func (rw *Rewinder[T]) Remaining() int { return len(rw.frames) }

// UndoNext reverts the last frame that has not been reverted yet. It returns false once every
// frame has been reverted. A frame whose processor fails stays pending.
func (rw *Rewinder[T]) UndoNext() (bool, error) {
	if len(rw.frames) == 0 {
		return false, nil
	}

	f := rw.frames[len(rw.frames)-1]
	err := process(rw.registry, rw.target, ModeUndo, rw.reader, f)
	if err != nil {
		return false, err
	}

	rw.frames = rw.frames[:len(rw.frames)-1]
	_, err = rw.reader.Seek(0, io.SeekEnd)
	return true, err
}
