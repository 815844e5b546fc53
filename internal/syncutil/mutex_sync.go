//go:build !deadlock

// Package syncutil holds the mutex used by the reader links. Built normally
// it is a sync.Mutex; with -tags=deadlock it is a go-deadlock mutex that
// reports lock-order problems and long waits.
package syncutil

import "sync"

// Mutex serializes access to a reader link.
//
//nolint:gocritic // embedded to expose Lock and Unlock
type Mutex struct {
	sync.Mutex
}

// Do runs fn with the mutex held.
func (m *Mutex) Do(fn func() error) error {
	m.Lock()
	defer m.Unlock()
	return fn()
}
