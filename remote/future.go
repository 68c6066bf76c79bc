package remote

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/iter"

	"remote-module/module"
)

// Future is the pending result of ForwardAsync. It resolves exactly once.
type Future struct {
	done chan struct{}
	out  *module.Output
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolved(out *module.Output, err error) *Future {
	f := newFuture()
	f.resolve(out, err)
	return f
}

func (f *Future) resolve(out *module.Output, err error) {
	f.out, f.err = out, err
	close(f.done)
}

// Wait blocks until the call finishes. Every call returns the same result.
func (f *Future) Wait() (*module.Output, error) {
	<-f.done
	return f.out, f.err
}

// WaitContext is Wait bounded by ctx. Giving up does not cancel the call.
func (f *Future) WaitContext(ctx context.Context) (*module.Output, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitAll waits for every future and returns their outputs in order, with
// all errors joined.
func WaitAll(futures ...*Future) ([]*module.Output, error) {
	type result struct {
		out *module.Output
		err error
	}
	results := iter.Map(futures, func(f **Future) result {
		out, err := (*f).Wait()
		return result{out, err}
	})

	outs := make([]*module.Output, len(results))
	var errs []error
	for i, r := range results {
		outs[i] = r.out
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return outs, errors.Join(errs...)
}
