// Package panicerr turns panics in scoring code and background jobs into
// ordinary errors.
package panicerr

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// Try runs fn and returns its panic, if any, as an error carrying the
// recovered value and stack.
func Try(fn func()) error {
	var c panics.Catcher
	c.Try(fn)
	return c.Recovered().AsError()
}

// Guard runs a background job and logs whatever error or panic it produced.
// One bad tick must not stop the loop that scheduled it.
func Guard(ctx context.Context, job string, fn func(context.Context) error) {
	var err error
	if perr := Try(func() { err = fn(ctx) }); perr != nil {
		err = perr
	}
	if err != nil {
		slog.ErrorContext(ctx, "background job failed", "job", job, "error", err)
	}
}
