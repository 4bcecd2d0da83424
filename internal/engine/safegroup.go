// Package engine provides bounded, panic-safe concurrency for build work
package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/dualpack/dualpack/pkg/logger"
)

// SafeGroup wraps errgroup.Group and turns panics into errors
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup whose context is cancelled on the first error
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine. A panic is logged with its stack and
// returned as an error.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// SetLimit bounds the number of goroutines running at once.
// A value below one means no limit.
func (sg *SafeGroup) SetLimit(n int) {
	if n < 1 {
		n = -1
	}
	sg.group.SetLimit(n)
}

// Wait blocks until every goroutine returned and yields the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
