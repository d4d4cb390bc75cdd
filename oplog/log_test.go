package oplog_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/history"
	"github.com/pagekit/undo/oplog"
	"github.com/pagekit/undo/pagebuffer"
	"github.com/pagekit/undo/pagepool"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type trace struct {
	events []string
	value  int64
}

const (
	kindFour oplog.Kind = iota + 1
	kindEight
	kindTwo
	kindLazy
	kindFailing
)

func traceProcessor(target *trace, mode oplog.Mode, data *pagebuffer.Reader) error {
	target.events = append(target.events, fmt.Sprintf("%s:%d", mode, data.Len()))
	return nil
}

func addProcessor(target *trace, mode oplog.Mode, data *pagebuffer.Reader) error {
	delta, err := pagebuffer.ReadValue[int64](data)
	if err != nil {
		return err
	}

	if mode == oplog.ModeUndo {
		delta = -delta
	}
	target.value += delta
	target.events = append(target.events, fmt.Sprintf("%s:%d", mode, data.Len()))
	return nil
}

func readyRegistry(t *testing.T) *oplog.Registry[*trace] {
	registry := oplog.NewRegistry[*trace]()
	require.NoError(t, registry.Register(kindFour, "four", traceProcessor))
	require.NoError(t, registry.Register(kindEight, "add", addProcessor))
	require.NoError(t, registry.Register(kindTwo, "two", traceProcessor))
	require.NoError(t, registry.Register(kindLazy, "lazy", func(target *trace, mode oplog.Mode, data *pagebuffer.Reader) error {
		// Reads a single byte of a larger body
		_, err := data.ReadByte()
		target.events = append(target.events, fmt.Sprintf("%s:lazy", mode))
		return err
	}))
	require.NoError(t, registry.Register(kindFailing, "failing", func(target *trace, mode oplog.Mode, data *pagebuffer.Reader) error {
		return errors.New("processor exploded")
	}))
	require.Equal(t, 5, registry.Count())
	return registry
}

func readyBuffer(t *testing.T) *pagebuffer.Buffer {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	source, err := pagepool.NewHeapPageSource(4096)
	require.NoError(t, err)
	pool, err := pagepool.New(logger, source, pagepool.CreateOptions{PageSizeMinBits: 8})
	require.NoError(t, err)

	buffer := pagebuffer.New(pool)
	t.Cleanup(func() {
		buffer.Release()
		require.NoError(t, pool.Destroy())
	})
	return buffer
}

func writeScenario(t *testing.T, buffer *pagebuffer.Buffer) {
	writer := pagebuffer.NewWriter(buffer, buffer.Size())

	require.NoError(t, oplog.WriteOperation(writer, kindFour, func(w *pagebuffer.Writer) error {
		_, err := w.Write([]byte{1, 2, 3, 4})
		return err
	}))
	require.NoError(t, oplog.WriteOperation(writer, kindEight, func(w *pagebuffer.Writer) error {
		return pagebuffer.WriteValue(w, int64(42))
	}))
	require.NoError(t, oplog.WriteOperation(writer, kindTwo, func(w *pagebuffer.Writer) error {
		return pagebuffer.WriteValue(w, uint16(7))
	}))
}

func TestWriteOperationHeaders(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)
	require.Equal(t, 3*oplog.HeaderSize+4+8+2, buffer.Size())

	reader := pagebuffer.NewReader(buffer, 0, buffer.Size())
	kind, err := pagebuffer.ReadValue[uint32](reader)
	require.NoError(t, err)
	require.Equal(t, uint32(kindFour), kind)
	size, err := pagebuffer.ReadValue[uint64](reader)
	require.NoError(t, err)
	require.Equal(t, uint64(4), size)
}

func TestDoOperations(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)
	registry := readyRegistry(t)

	target := &trace{}
	reader := pagebuffer.NewReader(buffer, 0, buffer.Size())
	require.NoError(t, oplog.DoOperations(registry, target, reader))
	require.Equal(t, []string{"ModeDo:4", "ModeDo:8", "ModeDo:2"}, target.events)
	require.Equal(t, int64(42), target.value)
	require.Equal(t, 0, reader.Remaining())
}

func TestUndoOperations(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)
	registry := readyRegistry(t)

	target := &trace{value: 42}
	reader := pagebuffer.NewReader(buffer, 0, buffer.Size())
	require.NoError(t, oplog.UndoOperations(registry, target, reader))
	require.Equal(t, []string{"ModeUndo:2", "ModeUndo:8", "ModeUndo:4"}, target.events)
	require.Equal(t, int64(0), target.value)
	require.Equal(t, 0, reader.Remaining())
}

func TestRewinderUndoesOneFrameAtATime(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)
	registry := readyRegistry(t)

	target := &trace{value: 42}
	rewinder, err := oplog.NewRewinder(registry, target, pagebuffer.NewReader(buffer, 0, buffer.Size()))
	require.NoError(t, err)
	require.Equal(t, 3, rewinder.Remaining())
	require.Empty(t, target.events)

	ok, err := rewinder.UndoNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"ModeUndo:2"}, target.events)

	ok, err = rewinder.UndoNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"ModeUndo:2", "ModeUndo:8"}, target.events)
	require.Equal(t, int64(0), target.value)

	ok, err = rewinder.UndoNext()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rewinder.UndoNext()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, rewinder.Remaining())
}

func TestOperationsSkipUnreadBody(t *testing.T) {
	buffer := readyBuffer(t)
	registry := readyRegistry(t)

	writer := pagebuffer.NewWriter(buffer, 0)
	require.NoError(t, oplog.WriteOperation(writer, kindLazy, func(w *pagebuffer.Writer) error {
		_, err := w.Write(make([]byte, 100))
		return err
	}))
	require.NoError(t, oplog.WriteOperation(writer, kindTwo, func(w *pagebuffer.Writer) error {
		return pagebuffer.WriteValue(w, uint16(1))
	}))

	target := &trace{}
	require.NoError(t, oplog.DoOperations(registry, target, pagebuffer.NewReader(buffer, 0, buffer.Size())))
	require.NoError(t, oplog.UndoOperations(registry, target, pagebuffer.NewReader(buffer, 0, buffer.Size())))
	require.Equal(t, []string{"ModeDo:lazy", "ModeDo:2", "ModeUndo:2", "ModeUndo:lazy"}, target.events)
}

func TestOperationsEmptyLog(t *testing.T) {
	buffer := readyBuffer(t)
	registry := readyRegistry(t)

	target := &trace{}
	require.NoError(t, oplog.DoOperations(registry, target, pagebuffer.NewReader(buffer, 0, 0)))
	require.NoError(t, oplog.UndoOperations(registry, target, pagebuffer.NewReader(buffer, 0, 0)))
	require.Empty(t, target.events)
}

func TestOperationsCorruptLog(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)
	registry := readyRegistry(t)
	target := &trace{}

	// The last frame's body is cut short
	truncated := pagebuffer.NewReader(buffer, 0, buffer.Size()-1)
	err := oplog.UndoOperations(registry, target, truncated)
	require.True(t, errors.Is(err, pagebuffer.ErrCorruptedData))
	require.Empty(t, target.events)

	// Only part of the first header is present
	partial := pagebuffer.NewReader(buffer, 0, 5)
	err = oplog.DoOperations(registry, target, partial)
	require.True(t, errors.Is(err, pagebuffer.ErrCorruptedData))
}

func TestOperationsUnknownKind(t *testing.T) {
	buffer := readyBuffer(t)
	writeScenario(t, buffer)

	registry := oplog.NewRegistry[*trace]()
	require.NoError(t, registry.Register(kindFour, "four", traceProcessor))

	target := &trace{}
	err := oplog.DoOperations(registry, target, pagebuffer.NewReader(buffer, 0, buffer.Size()))
	require.True(t, errors.Is(err, oplog.ErrUnknownOperation))
	require.Equal(t, []string{"ModeDo:4"}, target.events)
	require.Equal(t, "Unknown", registry.Name(kindEight))
}

func TestOperationsProcessorFailure(t *testing.T) {
	buffer := readyBuffer(t)
	registry := readyRegistry(t)

	writer := pagebuffer.NewWriter(buffer, 0)
	require.NoError(t, oplog.WriteOperation(writer, kindFailing, func(w *pagebuffer.Writer) error { return nil }))

	err := oplog.DoOperations(registry, &trace{}, pagebuffer.NewReader(buffer, 0, buffer.Size()))
	require.ErrorContains(t, err, "operation failing failed in ModeDo")
	require.ErrorContains(t, err, "processor exploded")
}

func TestWriteOperationBodyFailure(t *testing.T) {
	buffer := readyBuffer(t)

	writer := pagebuffer.NewWriter(buffer, 0)
	err := oplog.WriteOperation(writer, kindFour, func(w *pagebuffer.Writer) error {
		return errors.New("nothing to record")
	})
	require.ErrorContains(t, err, "nothing to record")
}

func TestRegistryValidation(t *testing.T) {
	registry := oplog.NewRegistry[*trace]()
	require.NoError(t, registry.Register(kindFour, "four", traceProcessor))

	require.ErrorContains(t, registry.Register(kindFour, "again", traceProcessor), "already registered to four")
	require.Error(t, registry.Register(0, "zero", traceProcessor))
	require.Error(t, registry.Register(kindTwo, "missing", nil))
	require.Equal(t, "four", registry.Name(kindFour))
	require.Equal(t, "ModeUndo", oplog.ModeUndo.String())
}

func TestBatchCommand(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	source, err := pagepool.NewHeapPageSource(4096)
	require.NoError(t, err)
	pool, err := pagepool.New(logger, source, pagepool.CreateOptions{PageSizeMinBits: 8})
	require.NoError(t, err)

	registry := readyRegistry(t)
	target := &trace{}
	h := history.New(logger, pool, target, history.CreateOptions{})
	defer func() {
		h.Destroy()
		require.NoError(t, pool.Destroy())
	}()

	added, err := oplog.NewBatch(h, registry, func(target *trace, recorder *oplog.Recorder) error {
		for _, delta := range []int64{1, 10, 100} {
			err := recorder.Write(kindEight, func(w *pagebuffer.Writer) error {
				return pagebuffer.WriteValue(w, delta)
			})
			if err != nil {
				return err
			}
		}
		require.Equal(t, 3, recorder.Count())
		return nil
	})
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, int64(111), target.value)
	require.Equal(t, 1, h.UndoCount())

	require.NoError(t, h.Undo())
	require.Equal(t, int64(0), target.value)
	require.Equal(t, []string{"ModeDo:8", "ModeDo:8", "ModeDo:8", "ModeUndo:8", "ModeUndo:8", "ModeUndo:8"}, target.events)

	require.NoError(t, h.Redo())
	require.Equal(t, int64(111), target.value)

	// A batch that records nothing is not added
	added, err = oplog.NewBatch(h, registry, func(target *trace, recorder *oplog.Recorder) error {
		return nil
	})
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, 1, h.UndoCount())
	require.NoError(t, h.Validate())
}
