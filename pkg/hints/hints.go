// Package hints provides a mechanism for identifying "soft failures" or ignorable
// errors within the system.
//
// Several conditions in an export run (a category with no data on disk, an empty
// hook list, a process scan that could not run) are not failures that should abort
// anything; they are signals that a step had nothing to do. This package lets
// producers label such errors as hints and lets consumers detect them without
// importing sentinel errors from the producing package.
//
// The check is behavioral (an IsHint method) rather than a concrete type match,
// which keeps the producing and consuming packages decoupled.
package hints

import "errors"

type hintErr struct {
	err error
}

func (h *hintErr) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}
func (h *hintErr) IsHint() bool  { return true }
func (h *hintErr) Unwrap() error { return h.err }

// New creates a hint from a string.
func New(msg string) error {
	return &hintErr{err: errors.New(msg)}
}

// Wrap takes an existing error and "promotes" it to a hint.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &hintErr{err: err}
}

// IsHint checks if any error in the chain behaves like a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}

// Is checks if the error is a hint AND matches the target error.
func Is(err, target error) bool {
	return IsHint(err) && errors.Is(err, target)
}
