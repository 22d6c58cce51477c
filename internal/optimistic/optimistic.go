// Package optimistic tracks a local change shown before the backend has
// confirmed it. A change settles exactly once, from pending to either
// confirmed or reverted, on the next backend response.
package optimistic

import (
	"errors"
)

// Status is the settlement state of a change.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Reverted  Status = "reverted"
)

// ErrSettled is returned when settling a change that is no longer pending.
var ErrSettled = errors.New("optimistic: change already settled")

// Change is a tentative value awaiting confirmation.
type Change[T any] struct {
	Value  T
	status Status
}

// New returns a pending change.
func New[T any](v T) *Change[T] {
	return &Change[T]{Value: v, status: Pending}
}

// Status returns the current state.
func (c *Change[T]) Status() Status {
	return c.status
}

// Settled reports whether the change left the pending state.
func (c *Change[T]) Settled() bool {
	return c.status != Pending
}

// Confirm marks the change as accepted by the backend.
func (c *Change[T]) Confirm() error {
	return c.settle(Confirmed)
}

// Revert marks the change as rejected; callers drop it from the view.
func (c *Change[T]) Revert() error {
	return c.settle(Reverted)
}

// Resolve confirms the change when ok and reverts it otherwise.
func (c *Change[T]) Resolve(ok bool) error {
	if ok {
		return c.Confirm()
	}
	return c.Revert()
}

func (c *Change[T]) settle(to Status) error {
	if c.status != Pending {
		return ErrSettled
	}
	c.status = to
	return nil
}
