// Package recovery turns goroutine panics into log records and errors.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/postalsys/radclient/internal/logging"
)

// ErrPanic wraps a recovered panic value.
var ErrPanic = errors.New("panic")

// RecoverWithLog recovers from panics and logs them with the provided logger.
// Use this with defer at the start of goroutines to prevent crashes and log diagnostics.
//
// Example:
//
//	go func() {
//	    defer recovery.RecoverWithLog(logger, "worker")
//	    // ... goroutine work
//	}()
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
	}
}

// RecoverToError recovers from a panic, logs it and stores it in *errp as an
// error wrapping ErrPanic. It must be deferred directly by the function whose
// named error result errp points to.
func RecoverToError(logger *slog.Logger, name string, errp *error) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
		*errp = fmt.Errorf("%w in %s: %v", ErrPanic, name, r)
	}
}

func logPanic(logger *slog.Logger, name string, r any) {
	logging.OrNop(logger).Error("panic recovered",
		"goroutine", name,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()))
}
