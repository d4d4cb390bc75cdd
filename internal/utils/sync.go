package utils

import (
	"sync"
)

// OptionalMutex is a mutex that only locks when UseMutex is set. Structures that are
// single-threaded by default carry one so that a consumer can opt into internal
// synchronization at construction time without paying for it otherwise.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}

