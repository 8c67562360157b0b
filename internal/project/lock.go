package project

import (
	"errors"
	"sync"
)

// ErrBusy is returned when another mutating operation is running on the
// same project.
var ErrBusy = errors.New("project: another operation is in progress")

// opLocks serializes mutating operations per project. Acquisition never
// waits: a second caller gets ErrBusy instead of a stale snapshot.
type opLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newOpLocks() *opLocks {
	return &opLocks{held: make(map[string]struct{})}
}

// acquire marks id as busy and returns the function that releases it.
func (l *opLocks) acquire(id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return nil, ErrBusy
	}
	l.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
	}, nil
}
