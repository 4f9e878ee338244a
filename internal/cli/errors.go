package cli

import "errors"

// ErrUsage marks failures callers should treat as bad invocations rather
// than runtime errors; main exits 2 when an error matches it.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
