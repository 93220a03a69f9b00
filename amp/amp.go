// Package amp implements the per-request AMP rendering mode.
//
// The mode travels in the request's context.Context instead of ambient
// state, so rendering code deep inside the serving call stack can ask
// Active(ctx) without parameter threading, and concurrent requests never
// see each other's mode.
package amp

import (
	"context"
	"sync/atomic"
)

// Prefix is the URL prefix under which every page is also served in AMP mode.
const Prefix = "/amp"

type modeKey struct{}

// mode is the state shared by every context derived from one activation.
// Ending the scope flips it off, so work that captured a scoped context and
// runs after the scope closed observes the mode as cleared.
type mode struct {
	active atomic.Bool
}

// Activate returns a context in which Active reports true, and the function
// that ends the scope. The end function is safe to call more than once.
func Activate(ctx context.Context) (context.Context, func()) {
	m := &mode{}
	m.active.Store(true)
	return context.WithValue(ctx, modeKey{}, m), func() {
		m.active.Store(false)
	}
}

// Do runs fn with AMP mode active and clears the mode on every exit path,
// including panics. fn's error is returned unchanged.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, done := Activate(ctx)
	defer done()
	return fn(ctx)
}

// Active reports whether ctx belongs to an open AMP scope.
func Active(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	m, ok := ctx.Value(modeKey{}).(*mode)
	return ok && m.active.Load()
}

// Path returns p under the AMP prefix when ctx is in AMP mode.
func Path(ctx context.Context, p string) string {
	if !Active(ctx) {
		return p
	}
	return Prefix + p
}
