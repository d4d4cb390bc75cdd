package history

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pagekit/undo/memutils"
	"github.com/pagekit/undo/pagebuffer"
	"github.com/pagekit/undo/stackalloc"
	"golang.org/x/exp/slog"
)

// nodeRecord is the part of a command node that lives in the stack allocator
type nodeRecord struct {
	checkpoint stackalloc.Checkpoint
	dataSize   uint64
	incomplete bool
}

type node[T any] struct {
	record  *nodeRecord
	command Command[T]
	next    *node[T]
}

// History is an undo/redo engine for edits of a single target of type T. Every edit is a
// Command created through NewCommand or NewCommandOptional. Payload bytes recorded by a
// command are kept in a pagebuffer.Buffer and played back to it on Undo and Redo; command
// records are kept in a stackalloc.Allocator and reclaimed in LIFO batches.
//
// The history tracks a clean point, the position considered to have no unsaved changes, and
// reports transitions of its dirty state to observers.
//
// A History is not safe for concurrent use.
type History[T any] struct {
	logger *slog.Logger
	id     uuid.UUID
	name   string
	target T

	data      *pagebuffer.Buffer
	allocator *stackalloc.Allocator
	dataPos   int

	undoStack *node[T]
	redoStack *node[T]
	undoCount int
	redoCount int

	cleanPoint  *node[T]
	unreachable *node[T]
	lastDirty   bool

	observers    []observer
	nextObserver ObserverID
}

// ID returns the unique identifier generated for this history
func (h *History[T]) ID() uuid.UUID { return h.id }

// Name returns the name provided in CreateOptions, or the history's ID
func (h *History[T]) Name() string { return h.name }

// Target returns the object commands of this history edit
func (h *History[T]) Target() T { return h.target }

func (h *History[T]) CanUndo() bool { return h.undoStack != nil }
func (h *History[T]) CanRedo() bool { return h.redoStack != nil }

// UndoCount returns the number of commands on the undo stack. Grouped commands count
// individually.
func (h *History[T]) UndoCount() int { return h.undoCount }

// RedoCount returns the number of commands on the redo stack. Grouped commands count
// individually.
func (h *History[T]) RedoCount() int { return h.redoCount }

// DataSize returns the number of payload bytes recorded by every command on both stacks
func (h *History[T]) DataSize() int { return h.data.Size() }

// Dirty returns true if the current position differs from the clean point. A fresh history
// is clean. Once the command at the clean point has been discarded, the history stays dirty
// until SetCleanAtCurrentPosition is called again.
func (h *History[T]) Dirty() bool {
	return h.cleanPoint != h.undoStack
}

// NewCommand creates a command with factory, executes it and pushes it onto the undo stack,
// discarding the redo stack. If factory or the command's Do fails, the error is returned and
// no command is added.
func (h *History[T]) NewCommand(factory func(ctx *CreationContext[T]) (Command[T], error)) error {
	_, err := h.NewCommandOptional(func(ctx *CreationContext[T]) (Command[T], bool, error) {
		command, err := factory(ctx)
		return command, err == nil, err
	})
	return err
}

// NewCommandOptional works like NewCommand, except that factory may decline to create a
// command by returning false. A declined call, a failing factory or a failing Do leaves the
// history exactly as it was, including the redo stack. The redo stack is only discarded once
// the new command has executed. The returned bool reports whether a command was added.
func (h *History[T]) NewCommandOptional(factory func(ctx *CreationContext[T]) (Command[T], bool, error)) (bool, error) {
	h.logger.Debug("History::NewCommandOptional")

	// The factory records at the end of the buffer so that nothing on the redo stack is
	// touched until a command is actually produced
	begin := h.data.Size()
	ctx := &CreationContext[T]{
		Target: h.target,
		Data:   pagebuffer.NewWriter(h.data, begin),
	}

	command, ok, err := factory(ctx)
	if err == nil && ok && command == nil {
		err = errors.New("command factory returned no command")
	}
	if err != nil || !ok {
		h.data.Truncate(begin)
		if err != nil {
			return false, errors.Wrap(err, "failed to create command")
		}
		return false, nil
	}

	dataSize := h.data.Size() - begin
	err = command.Do(&ExecutionContext[T]{
		Target: h.target,
		Data:   pagebuffer.NewReader(h.data, begin, begin+dataSize),
	})
	if err != nil {
		h.data.Truncate(begin)
		dispose(command)
		return false, errors.Wrap(err, "failed to execute new command")
	}

	if h.redoStack != nil {
		// Only the payloads of the redo stack are overwritten, and they are dropped next
		payload := make([]byte, dataSize)
		h.data.Read(begin, payload)

		err = h.data.Write(h.dataPos, payload)
		if err != nil {
			return false, h.revertNewCommand(command, begin, dataSize, err)
		}

		h.freeRedoStack()
		h.data.Truncate(h.dataPos + dataSize)
	}

	checkpoint := h.allocator.Checkpoint()
	record, err := stackalloc.Place(h.allocator, nodeRecord{
		checkpoint: checkpoint,
		dataSize:   uint64(dataSize),
		incomplete: ctx.Incomplete,
	})
	if err != nil {
		return false, h.revertNewCommand(command, h.dataPos, dataSize, errors.Wrap(err, "failed to allocate command record"))
	}

	n := &node[T]{record: record, command: command}
	h.dataPos += dataSize

	n.next = h.undoStack
	h.undoStack = n
	h.undoCount++

	memutils.DebugValidate(h)
	h.onModified()
	return true, nil
}

// Undo reverts the command on top of the undo stack and moves it to the redo stack. If the
// next command on the undo stack is marked incomplete, it is undone as well, and so on.
//
// Calling Undo when CanUndo is false is a programming error.
func (h *History[T]) Undo() error {
	h.logger.Debug("History::Undo")

	if h.undoStack == nil {
		memutils.DebugAssert(false, "trying to undo with an empty undo stack")
		return nil
	}

	var err error
	for {
		n := h.undoStack
		err = h.undo(n)
		if err != nil {
			err = errors.Wrap(err, "failed to undo command")
			break
		}

		h.undoStack = n.next
		n.next = h.redoStack
		h.redoStack = n
		h.undoCount--
		h.redoCount++

		if h.undoStack == nil || !h.undoStack.record.incomplete {
			break
		}
	}

	memutils.DebugValidate(h)
	h.onModified()
	return err
}

// Redo re-executes the command on top of the redo stack and moves it to the undo stack. If
// that command is marked incomplete, the next command on the redo stack is redone as well,
// and so on.
//
// Calling Redo when CanRedo is false is a programming error.
func (h *History[T]) Redo() error {
	h.logger.Debug("History::Redo")

	if h.redoStack == nil {
		memutils.DebugAssert(false, "trying to redo with an empty redo stack")
		return nil
	}

	var err error
	for {
		n := h.redoStack
		err = h.do(n)
		if err != nil {
			err = errors.Wrap(err, "failed to redo command")
			break
		}

		h.redoStack = n.next
		n.next = h.undoStack
		h.undoStack = n
		h.redoCount--
		h.undoCount++

		if h.redoStack == nil || !n.record.incomplete {
			break
		}
	}

	memutils.DebugValidate(h)
	h.onModified()
	return err
}

// revertNewCommand undoes a command that executed but could not be recorded, reading its
// payload at offset, and drops the payload
func (h *History[T]) revertNewCommand(command Command[T], offset int, dataSize int, cause error) error {
	undoErr := command.Undo(&ExecutionContext[T]{
		Target: h.target,
		Data:   pagebuffer.NewReader(h.data, offset, offset+dataSize),
	})

	h.data.Truncate(offset)
	dispose(command)
	h.onModified()
	return errors.CombineErrors(cause, errors.Wrap(undoErr, "failed to revert new command"))
}

func (h *History[T]) do(n *node[T]) error {
	size := int(n.record.dataSize)
	err := n.command.Do(&ExecutionContext[T]{
		Target: h.target,
		Data:   pagebuffer.NewReader(h.data, h.dataPos, h.dataPos+size),
	})
	if err != nil {
		return err
	}

	h.dataPos += size
	return nil
}

func (h *History[T]) undo(n *node[T]) error {
	begin := h.dataPos - int(n.record.dataSize)
	err := n.command.Undo(&ExecutionContext[T]{
		Target: h.target,
		Data:   pagebuffer.NewReader(h.data, begin, h.dataPos),
	})
	if err != nil {
		return err
	}

	h.dataPos = begin
	return nil
}

// ClearRedoStack discards every command on the redo stack and reclaims their records and
// payloads
func (h *History[T]) ClearRedoStack() {
	h.logger.Debug("History::ClearRedoStack")

	h.clearRedoStack()
	h.onModified()
}

func (h *History[T]) clearRedoStack() {
	if h.redoStack == nil {
		return
	}

	h.freeRedoStack()
	h.data.Truncate(h.dataPos)
}

// freeRedoStack releases the redo stack's commands and records but leaves its payloads in the
// buffer
func (h *History[T]) freeRedoStack() {
	// The head of the redo stack is the oldest command on it, so its checkpoint covers the
	// records of every other command on the stack
	checkpoint := h.redoStack.record.checkpoint
	h.freeList(h.redoStack)
	h.redoStack = nil
	h.redoCount = 0

	h.allocator.Restore(checkpoint)
}

// Clear discards every command on both stacks and resets the clean point, leaving the history
// clean
func (h *History[T]) Clear() {
	h.logger.Debug("History::Clear")

	h.freeAll()
	h.cleanPoint = nil
	h.onModified()
}

// SetCleanAtCurrentPosition marks the current position as having no unsaved changes
func (h *History[T]) SetCleanAtCurrentPosition() {
	if h.cleanPoint == h.undoStack {
		return
	}

	h.cleanPoint = h.undoStack
	h.onModified()
}

// Destroy discards every command and returns every page to the pool. The history must not be
// used afterwards.
func (h *History[T]) Destroy() {
	h.logger.Debug("History::Destroy")

	h.freeAll()
	h.data.Release()
	h.observers = nil
}

func (h *History[T]) freeAll() {
	h.freeList(h.redoStack)
	h.redoStack = nil
	h.redoCount = 0

	h.freeList(h.undoStack)
	h.undoStack = nil
	h.undoCount = 0

	h.allocator.Clear()
	h.data.Clear()
	h.dataPos = 0
}

// freeList disposes every node of a stack. It must run before the allocator reclaims the
// nodes' records.
func (h *History[T]) freeList(front *node[T]) {
	for front != nil {
		n := front
		front = n.next

		if n == h.cleanPoint {
			h.cleanPoint = h.unreachable
		}

		dispose(n.command)
		n.command = nil
		n.record = nil
		n.next = nil
	}
}

func dispose(command any) {
	if disposer, ok := command.(Disposer); ok {
		disposer.Dispose()
	}
}

// Validate performs internal consistency checks on the history
func (h *History[T]) Validate() error {
	undoBytes, err := h.validateList(h.undoStack, h.undoCount, "undo")
	if err != nil {
		return err
	}

	redoBytes, err := h.validateList(h.redoStack, h.redoCount, "redo")
	if err != nil {
		return err
	}

	if undoBytes != h.dataPos {
		return errors.Errorf("undo stack recorded %d payload bytes, but the data position is %d", undoBytes, h.dataPos)
	}

	if h.dataPos+redoBytes != h.data.Size() {
		return errors.Errorf("stacks recorded %d payload bytes, but the buffer holds %d", h.dataPos+redoBytes, h.data.Size())
	}

	var previous *nodeRecord
	for n := h.undoStack; n != nil; n = n.next {
		if previous != nil && n.record.checkpoint >= previous.checkpoint {
			return errors.New("undo stack records are not in allocation order")
		}
		previous = n.record
	}

	err = h.data.Validate()
	if err != nil {
		return err
	}

	return h.allocator.Validate()
}

func (h *History[T]) validateList(front *node[T], expectedCount int, name string) (int, error) {
	count := 0
	bytes := 0
	for n := front; n != nil; n = n.next {
		if n.record == nil || n.command == nil {
			return 0, errors.Errorf("%s stack holds a discarded command", name)
		}
		count++
		bytes += int(n.record.dataSize)
	}

	if count != expectedCount {
		return 0, errors.Errorf("%s stack holds %d commands, but %d are counted", name, count, expectedCount)
	}

	return bytes, nil
}

// AddStatistics sums the pages and command records held by this history into the provided
// memutils.Statistics object
func (h *History[T]) AddStatistics(stats *memutils.Statistics) {
	h.allocator.AddStatistics(stats)
	if h.data.PageCount() > 0 {
		stats.PageCount += h.data.PageCount()
		stats.PageBytes += h.data.Capacity()
	}
}

// BuildStatsString returns a json document describing the history's stacks and the memory
// they occupy
func (h *History[T]) BuildStatsString() string {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("ID").String(h.id.String())
	obj.Name("Name").String(h.name)
	obj.Name("UndoCount").Int(h.undoCount)
	obj.Name("RedoCount").Int(h.redoCount)
	obj.Name("Dirty").Bool(h.Dirty())

	dataObj := obj.Name("Data").Object()
	dataObj.Name("Position").Int(h.dataPos)
	dataObj.Name("Size").Int(h.data.Size())
	dataObj.Name("Capacity").Int(h.data.Capacity())
	dataObj.Name("PageCount").Int(h.data.PageCount())
	dataObj.End()

	allocatorObj := obj.Name("Records").Object()
	h.allocator.PrintJson(allocatorObj)
	allocatorObj.End()

	obj.End()
	return string(writer.Bytes())
}
