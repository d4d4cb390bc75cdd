package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/history"
	"github.com/pagekit/undo/oplog"
	"github.com/pagekit/undo/pagebuffer"
)

// Document is the line list edited by the shell
type Document struct {
	Lines []string
}

func (d *Document) checkLine(index int) error {
	if index < 0 || index >= len(d.Lines) {
		return errors.Errorf("line %d does not exist, the document has %d lines", index+1, len(d.Lines))
	}
	return nil
}

// appendLine appends the line recorded in its payload
type appendLine struct{}

func (appendLine) Do(ctx *history.ExecutionContext[*Document]) error {
	text, err := pagebuffer.ReadBytes(ctx.Data)
	if err != nil {
		return err
	}

	ctx.Target.Lines = append(ctx.Target.Lines, string(text))
	return nil
}

func (appendLine) Undo(ctx *history.ExecutionContext[*Document]) error {
	if len(ctx.Target.Lines) == 0 {
		return errors.New("document has no line to remove")
	}

	ctx.Target.Lines = ctx.Target.Lines[:len(ctx.Target.Lines)-1]
	return nil
}

// removeLine removes the last line, which its payload records so that Undo can restore it
type removeLine struct{}

func (removeLine) Do(ctx *history.ExecutionContext[*Document]) error {
	return appendLine{}.Undo(ctx)
}

func (removeLine) Undo(ctx *history.ExecutionContext[*Document]) error {
	return appendLine{}.Do(ctx)
}

// setLine replaces one line. Its payload holds the line index followed by the old and new text.
type setLine struct{}

func (setLine) apply(ctx *history.ExecutionContext[*Document], mode oplog.Mode) error {
	return setLineProcessor(ctx.Target, mode, ctx.Data)
}

func (c setLine) Do(ctx *history.ExecutionContext[*Document]) error {
	return c.apply(ctx, oplog.ModeDo)
}

func (c setLine) Undo(ctx *history.ExecutionContext[*Document]) error {
	return c.apply(ctx, oplog.ModeUndo)
}

func writeSetLine(w *pagebuffer.Writer, index int, oldText string, newText string) error {
	err := pagebuffer.WriteValue(w, uint32(index))
	if err != nil {
		return err
	}

	err = pagebuffer.WriteBytes(w, []byte(oldText))
	if err != nil {
		return err
	}

	return pagebuffer.WriteBytes(w, []byte(newText))
}

func setLineProcessor(target *Document, mode oplog.Mode, data *pagebuffer.Reader) error {
	index, err := pagebuffer.ReadValue[uint32](data)
	if err != nil {
		return err
	}

	oldText, err := pagebuffer.ReadBytes(data)
	if err != nil {
		return err
	}

	newText, err := pagebuffer.ReadBytes(data)
	if err != nil {
		return err
	}

	err = target.checkLine(int(index))
	if err != nil {
		return err
	}

	if mode == oplog.ModeUndo {
		target.Lines[index] = string(oldText)
	} else {
		target.Lines[index] = string(newText)
	}
	return nil
}

const opSetLine oplog.Kind = 1

// Editor applies the shell's edits to a document through its history
type Editor struct {
	history    *history.History[*Document]
	operations *oplog.Registry[*Document]
}

func NewEditor(h *history.History[*Document]) (*Editor, error) {
	operations := oplog.NewRegistry[*Document]()
	err := operations.Register(opSetLine, "setLine", setLineProcessor)
	if err != nil {
		return nil, err
	}

	return &Editor{history: h, operations: operations}, nil
}

// Add appends a line
func (e *Editor) Add(text string) error {
	return e.history.NewCommand(func(ctx *history.CreationContext[*Document]) (history.Command[*Document], error) {
		return appendLine{}, pagebuffer.WriteBytes(ctx.Data, []byte(text))
	})
}

// Pop removes the last line. It returns false if the document is empty.
func (e *Editor) Pop() (bool, error) {
	return e.history.NewCommandOptional(func(ctx *history.CreationContext[*Document]) (history.Command[*Document], bool, error) {
		lines := ctx.Target.Lines
		if len(lines) == 0 {
			return nil, false, nil
		}

		return removeLine{}, true, pagebuffer.WriteBytes(ctx.Data, []byte(lines[len(lines)-1]))
	})
}

// Upper converts every line to upper case as a single undoable step. It returns false if no
// line changed.
func (e *Editor) Upper() (bool, error) {
	return oplog.NewBatch(e.history, e.operations, func(target *Document, recorder *oplog.Recorder) error {
		for index, line := range target.Lines {
			upper := strings.ToUpper(line)
			if upper == line {
				continue
			}

			err := recorder.Write(opSetLine, func(w *pagebuffer.Writer) error {
				return writeSetLine(w, index, line, upper)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Swap exchanges two lines. It is recorded as two line replacements grouped into one step.
func (e *Editor) Swap(first int, second int) error {
	lines := e.history.Target().Lines
	err := e.history.Target().checkLine(first)
	if err != nil {
		return err
	}
	err = e.history.Target().checkLine(second)
	if err != nil {
		return err
	}

	firstText, secondText := lines[first], lines[second]

	err = e.history.NewCommand(func(ctx *history.CreationContext[*Document]) (history.Command[*Document], error) {
		ctx.Incomplete = true
		return setLine{}, writeSetLine(ctx.Data, first, firstText, secondText)
	})
	if err != nil {
		return err
	}

	err = e.history.NewCommand(func(ctx *history.CreationContext[*Document]) (history.Command[*Document], error) {
		return setLine{}, writeSetLine(ctx.Data, second, secondText, firstText)
	})
	if err != nil {
		// Drop the dangling first half so it cannot be grouped with an unrelated edit
		undoErr := e.history.Undo()
		e.history.ClearRedoStack()
		return errors.CombineErrors(err, undoErr)
	}
	return nil
}
