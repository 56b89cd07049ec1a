package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic logs a recovered panic with its stack. Call it directly in
// a defer statement; the panic is not re-raised.
//
//	defer observability.RecoverPanic(logger, "export upload")
func RecoverPanic(logger logrus.FieldLogger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by callback, which only
// runs when a panic was recovered.
func RecoverPanicWithCallback(logger logrus.FieldLogger, where string, callback func(recovered any)) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback(r)
		}
	}
}

// RecoverToError turns a panic into an error stored in *errp. The stack is
// logged, the error carries only the panic value.
//
//	func checkOne(...) (err error) {
//		defer observability.RecoverToError(logger, "instance check", &err)
//		...
//	}
func RecoverToError(logger logrus.FieldLogger, where string, errp *error) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if errp != nil {
			*errp = MustRecover(r)
		}
	}
}

// MustRecover converts a recover() value to an error; nil stays nil.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}

func logPanic(logger logrus.FieldLogger, where string, r any) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("panic recovered")
}
