package history

import (
	"github.com/google/uuid"
	"github.com/pagekit/undo/pagebuffer"
	"github.com/pagekit/undo/pagepool"
	"github.com/pagekit/undo/stackalloc"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating a History
type CreateOptions struct {
	// Name identifies the history in logs, stats and metrics. If left blank, the
	// history's ID is used.
	Name string
}

// New creates an empty History recording edits of target. Payloads and command records are
// stored in pages drawn from pool, which may be shared with other histories.
//
// logger - The logger that history diagnostics will be written to
//
// pool - The pagepool.Pool that payload and record pages will be drawn from
//
// target - The object every command of this history edits
//
// options - Optional parameters: it is valid to leave all the fields blank
func New[T any](logger *slog.Logger, pool *pagepool.Pool, target T, options CreateOptions) *History[T] {
	id := uuid.New()
	name := options.Name
	if name == "" {
		name = id.String()
	}

	return &History[T]{
		logger:      logger.With(slog.String("history", name)),
		id:          id,
		name:        name,
		target:      target,
		data:        pagebuffer.New(pool),
		allocator:   stackalloc.New(logger, pool),
		unreachable: &node[T]{},
	}
}
