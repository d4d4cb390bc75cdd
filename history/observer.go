package history

import (
	"fmt"
	"slices"

	"github.com/pagekit/undo/memutils"
	"golang.org/x/exp/slog"
)

// ObserverID identifies a callback registered with OnDirtyChanged
type ObserverID uint64

type observer struct {
	id       ObserverID
	callback func(dirty bool)
}

// OnDirtyChanged registers callback to be called with the new dirty state whenever the
// history goes from clean to dirty or back. Callbacks run synchronously, in registration
// order, from within the call that changed the state.
func (h *History[T]) OnDirtyChanged(callback func(dirty bool)) ObserverID {
	h.nextObserver++
	h.observers = append(h.observers, observer{
		id:       h.nextObserver,
		callback: callback,
	})
	return h.nextObserver
}

// RemoveObserver unregisters a callback registered with OnDirtyChanged. Removing a callback
// that is not registered is a programming error.
func (h *History[T]) RemoveObserver(id ObserverID) {
	for index, obs := range h.observers {
		if obs.id == id {
			h.observers = append(h.observers[:index], h.observers[index+1:]...)
			return
		}
	}

	memutils.DebugAssert(false, fmt.Sprintf("observer %d is not registered", id))
}

func (h *History[T]) onModified() {
	dirty := h.Dirty()
	if dirty == h.lastDirty {
		return
	}
	h.lastDirty = dirty

	h.logger.Debug("History::DirtyChanged", slog.Bool("dirty", dirty))
	for _, obs := range slices.Clone(h.observers) {
		obs.callback(dirty)
	}
}
