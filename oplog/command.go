package oplog

import (
	"github.com/pagekit/undo/history"
	"github.com/pagekit/undo/pagebuffer"
)

// Command is a history.Command whose payload is an operation log. Do applies every operation
// in the log and Undo reverts them in reverse order, so a batch of fine-grained edits is
// undone and redone as a single step.
type Command[T any] struct {
	registry *Registry[T]
}

var _ history.Command[any] = &Command[any]{}

// NewCommand creates a Command playing back logs with the processors of registry
func NewCommand[T any](registry *Registry[T]) *Command[T] {
	return &Command[T]{registry: registry}
}

func (c *Command[T]) Do(ctx *history.ExecutionContext[T]) error {
	return DoOperations(c.registry, ctx.Target, ctx.Data)
}

func (c *Command[T]) Undo(ctx *history.ExecutionContext[T]) error {
	return UndoOperations(c.registry, ctx.Target, ctx.Data)
}

// Recorder appends operations to the log of a batch being created
type Recorder struct {
	writer *pagebuffer.Writer
	count  int
}

// Write appends a frame of the given kind. See WriteOperation.
func (r *Recorder) Write(kind Kind, body func(w *pagebuffer.Writer) error) error {
	err := WriteOperation(r.writer, kind, body)
	if err != nil {
		return err
	}

	r.count++
	return nil
}

// Count returns the number of operations recorded so far
func (r *Recorder) Count() int { return r.count }

// NewBatch records a log with record and adds it to h as a single Command. The operations are
// applied when the command executes, not while they are being recorded. If record fails or
// records no operations, nothing is added to h. The returned bool reports whether a command
// was added.
func NewBatch[T any](h *history.History[T], registry *Registry[T], record func(target T, recorder *Recorder) error) (bool, error) {
	return h.NewCommandOptional(func(ctx *history.CreationContext[T]) (history.Command[T], bool, error) {
		recorder := &Recorder{writer: ctx.Data}
		err := record(ctx.Target, recorder)
		if err != nil || recorder.count == 0 {
			return nil, false, err
		}

		return NewCommand(registry), true, nil
	})
}
