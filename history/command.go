//go:generate mockgen -destination=./mocks/command.go -package=mock_history github.com/pagekit/undo/history Command,Disposer

package history

import "github.com/pagekit/undo/pagebuffer"

// ExecutionContext is passed to Command.Do and Command.Undo. Data reads exactly the payload
// bytes the command recorded when it was created.
type ExecutionContext[T any] struct {
	Target T
	Data   *pagebuffer.Reader
}

// CreationContext is passed to the factory that creates a command. Bytes written to Data
// become the command's payload. Setting Incomplete groups the command with the command
// created after it, so that both are undone and redone as a single step.
type CreationContext[T any] struct {
	Target     T
	Data       *pagebuffer.Writer
	Incomplete bool
}

// Command is one reversible edit of a target of type T. Do applies the edit and Undo reverts
// it; both read the command's payload from the context.
//
// A command that returns an error leaves the history as it was before the call, but may
// have left the target partially modified.
type Command[T any] interface {
	Do(ctx *ExecutionContext[T]) error
	Undo(ctx *ExecutionContext[T]) error
}

// Disposer may be implemented by a Command that holds resources. Dispose is called once, when
// the history discards the command for good.
type Disposer interface {
	Dispose()
}
