package services

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a fetch replaced by a newer one.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Inflight tracks the fetch currently running for each scope, such as one
// browser tab. Starting a fetch with different parameters cancels the older
// ones in the same scope; identical parameters share the slot.
type Inflight struct {
	mu     sync.Mutex
	nextID uint64
	scopes map[string]*scopeFlight
}

type scopeFlight struct {
	key     string
	cancels map[uint64]context.CancelCauseFunc
}

func NewInflight() *Inflight {
	return &Inflight{scopes: make(map[string]*scopeFlight)}
}

// Begin derives a cancellable context for a fetch identified by key within
// scope. The returned func must be called when the fetch ends. An empty scope
// never supersedes.
func (f *Inflight) Begin(ctx context.Context, scope, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	if scope == "" {
		return ctx, func() { cancel(nil) }
	}

	f.mu.Lock()
	sf := f.scopes[scope]
	if sf != nil && sf.key != key {
		for _, c := range sf.cancels {
			c(ErrSuperseded)
		}
		sf = nil
	}
	if sf == nil {
		sf = &scopeFlight{key: key, cancels: make(map[uint64]context.CancelCauseFunc)}
		f.scopes[scope] = sf
	}
	f.nextID++
	id := f.nextID
	sf.cancels[id] = cancel
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		if cur := f.scopes[scope]; cur == sf {
			delete(sf.cancels, id)
			if len(sf.cancels) == 0 {
				delete(f.scopes, scope)
			}
		}
		f.mu.Unlock()
		cancel(nil)
	}
}

// Active returns the number of scopes with a running fetch.
func (f *Inflight) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scopes)
}

// supersededErr maps a cancellation caused by Begin to ErrSuperseded.
func supersededErr(ctx context.Context, err error) error {
	if err != nil && errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return err
}
