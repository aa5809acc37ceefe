package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic is meant to be deferred around code that must not take
// the process down. A recovered panic is logged with its stack and
// swallowed.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic": r,
			"where": where,
			"stack": string(debug.Stack()),
		}).Error("panic recovered")
	}
}

// MustRecover converts a recover() result to an error, nil when no
// panic occurred. Use it to surface panics from callback code as
// ordinary errors:
//
//	defer func() {
//	    if err := observability.MustRecover(recover()); err != nil {
//	        log.WithError(err).Error("handler panicked")
//	    }
//	}()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
