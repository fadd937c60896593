package scheduler

import "sync"

// Tokens is a set of named try-locks, one per periodic activity.
type Tokens struct {
	mu      sync.Mutex
	busy    map[string]chan struct{}
	skipped map[string]uint64
	onSkip  func(name string)
}

func NewTokens() *Tokens {
	return &Tokens{
		busy:    make(map[string]chan struct{}),
		skipped: make(map[string]uint64),
	}
}

// OnSkip registers a hook called whenever TryAcquire refuses a token.
func (t *Tokens) OnSkip(fn func(name string)) {
	t.mu.Lock()
	t.onSkip = fn
	t.mu.Unlock()
}

// TryAcquire takes the named token without blocking. The returned release
// func is idempotent.
func (t *Tokens) TryAcquire(name string) (release func(), ok bool) {
	t.mu.Lock()
	if _, held := t.busy[name]; held {
		t.skipped[name]++
		hook := t.onSkip
		t.mu.Unlock()
		if hook != nil {
			hook(name)
		}
		return func() {}, false
	}
	done := make(chan struct{})
	t.busy[name] = done
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.busy, name)
			t.mu.Unlock()
			close(done)
		})
	}, true
}

func (t *Tokens) Busy(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, held := t.busy[name]
	return held
}

// Skipped reports how many acquisitions of name were refused.
func (t *Tokens) Skipped(name string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped[name]
}

// Wait blocks until the named token is free.
func (t *Tokens) Wait(name string) {
	t.mu.Lock()
	done, held := t.busy[name]
	t.mu.Unlock()
	if held {
		<-done
	}
}
