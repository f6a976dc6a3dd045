package remap

import "sync"

// Guard serializes table lookups. Take and Give may fail when the guard is
// backed by a host primitive; the default mutex guard never does.
type Guard interface {
    Take() error
    Give() error
}

// GuardFactory creates the guard during Init.
type GuardFactory func(name string) (Guard, error)

type mutexGuard struct{ mu sync.Mutex }

func (g *mutexGuard) Take() error { g.mu.Lock(); return nil }
func (g *mutexGuard) Give() error { g.mu.Unlock(); return nil }

// NewMutexGuard is the default GuardFactory.
func NewMutexGuard(string) (Guard, error) { return &mutexGuard{}, nil }
