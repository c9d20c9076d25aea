// Package loading counts in-flight operations that should keep a busy
// indicator visible. Overlapping operations keep it on until the last ends.
package loading

import "sync"

type Tracker struct {
	mu    sync.Mutex
	count int
}

func (t *Tracker) Show() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

// Hide never takes the counter below zero.
func (t *Tracker) Hide() {
	t.mu.Lock()
	if t.count > 0 {
		t.count--
	}
	t.mu.Unlock()
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Tracker) Active() bool { return t.Count() > 0 }

// Track shows the indicator for the duration of fn. A nil tracker just runs fn.
func (t *Tracker) Track(fn func() error) error {
	if t == nil {
		return fn()
	}
	t.Show()
	defer t.Hide()
	return fn()
}
