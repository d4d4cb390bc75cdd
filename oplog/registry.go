package oplog

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pagekit/undo/pagebuffer"
)

// ErrUnknownOperation is returned when a log holds a frame whose kind is not registered
var ErrUnknownOperation = errors.New("unknown operation kind")

// Kind identifies the processor responsible for a frame. Kinds are only meaningful to the
// Registry they were registered with; 0 is reserved.
type Kind uint32

// Mode tells a Processor whether to apply or revert its operation
type Mode uint32

const (
	ModeDo Mode = iota
	ModeUndo
)

var modeMapping = map[Mode]string{
	ModeDo:   "ModeDo",
	ModeUndo: "ModeUndo",
}

func (m Mode) String() string {
	return modeMapping[m]
}

// Processor applies or reverts one operation on target. data reads exactly the frame's body;
// a processor does not have to consume all of it.
type Processor[T any] func(target T, mode Mode, data *pagebuffer.Reader) error

type registration[T any] struct {
	name      string
	processor Processor[T]
}

// Registry maps operation kinds to their processors. Every kind a log may contain must be
// registered before the log is played back.
type Registry[T any] struct {
	processors *swiss.Map[Kind, registration[T]]
}

// NewRegistry creates an empty Registry
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		processors: swiss.NewMap[Kind, registration[T]](8),
	}
}

// Register binds kind to processor. name is used in error messages. Registering the same kind
// twice is an error.
func (r *Registry[T]) Register(kind Kind, name string, processor Processor[T]) error {
	if kind == 0 {
		return errors.Errorf("operation %s cannot use the reserved kind 0", name)
	}
	if processor == nil {
		return errors.Errorf("operation %s has no processor", name)
	}

	if existing, ok := r.processors.Get(kind); ok {
		return errors.Errorf("operation kind %d is already registered to %s", kind, existing.name)
	}

	r.processors.Put(kind, registration[T]{name: name, processor: processor})
	return nil
}

// Count returns the number of registered kinds
func (r *Registry[T]) Count() int {
	return r.processors.Count()
}

// Name returns the name kind was registered with
func (r *Registry[T]) Name(kind Kind) string {
	registered, ok := r.processors.Get(kind)
	if !ok {
		return "Unknown"
	}
	return registered.name
}

func (r *Registry[T]) lookup(kind Kind) (registration[T], error) {
	registered, ok := r.processors.Get(kind)
	if !ok {
		return registered, errors.Wrapf(ErrUnknownOperation, "kind %d", kind)
	}
	return registered, nil
}
