package builder

import (
	"context"
	"errors"
	"slices"
)

type (
	// Stack is a LIFO queue of teardown steps. Destroy runs every step even
	// when earlier ones fail, so a stuck resource never strands the rest.
	Stack struct {
		destructors []destructor
	}
	destructor func(ctx context.Context) error
)

// Push adds a teardown step, to be run in the reverse order of addition.
func (s *Stack) Push(d destructor) {
	s.destructors = append(s.destructors, d)
}

// Destroy runs all accumulated steps in reverse order, returning every
// encountered error joined. A non-nil result is a report of non-fatal
// sub-failures, not an abort: all steps have still been attempted.
func (s *Stack) Destroy(ctx context.Context) error {
	var errs error
	for _, d := range slices.Backward(s.destructors) {
		errs = errors.Join(errs, d(ctx))
	}
	return errs
}
