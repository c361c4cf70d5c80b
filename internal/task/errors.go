package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyID           = errors.New("empty task id")
	ErrDuplicateID       = errors.New("duplicate task id")
	ErrMissingDependency = errors.New("missing dependency")
	ErrCycle             = errors.New("dependency cycle")
)

// ValidationError reports a structural problem with a work item set.
// Validation errors are fatal: nothing is executed once one is returned.
type ValidationError struct {
	Kind error
	IDs  []string
	Msg  string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func cycleError(path []string) error {
	return &ValidationError{
		Kind: ErrCycle,
		IDs:  path,
		Msg:  strings.Join(path, " -> "),
	}
}
