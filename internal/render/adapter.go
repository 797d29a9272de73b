// Package render defines the contract shared by the slide, audio and video adapters.
package render

import "context"

// ProgressFunc receives completion fractions in [0, 1].
type ProgressFunc func(fraction float64)

// Adapter renders I into O. Errors should be *AdapterError; anything else is fatal.
type Adapter[I, O any] interface {
	Render(ctx context.Context, in I, report ProgressFunc) (O, error)
}

// AdapterFunc lets a plain function satisfy Adapter.
type AdapterFunc[I, O any] func(ctx context.Context, in I, report ProgressFunc) (O, error)

func (f AdapterFunc[I, O]) Render(ctx context.Context, in I, report ProgressFunc) (O, error) {
	return f(ctx, in, report)
}

// Report calls fn when set, clamping to [0, 1].
func Report(fn ProgressFunc, fraction float64) {
	if fn == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	fn(fraction)
}
