// Package detach implements the detach-cell idiom: temporarily moving a
// struct field's value out of its cell so that both the field and its
// enclosing struct can be passed, mutably, into the same function call
// without violating Go's exclusive-access rules. The parent detaches its own
// child field, calls a function that takes both `*Parent` and `*Child`, and
// reattaches when that function returns, whether or not it returns an error.
package detach

import "fmt"

// ErrInvalidState is returned (as a panic value, via InvalidStateError) when
// a Cell is used while in the wrong state. Detach-cell misuse is a
// programming error, not a recoverable runtime condition, so it is reported
// by panicking rather than by an error return.
var ErrInvalidState = fmt.Errorf("detach: invalid state")

// InvalidStateError is the concrete panic value raised on misuse.
type InvalidStateError struct {
	Op string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("detach: %s on cell in wrong state", e.Op)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Cell holds a T that is either attached (present) or detached (taken out
// for a critical section). The zero Cell is detached and empty; use New to
// construct an attached one.
type Cell[T any] struct {
	val      T
	attached bool
}

// New returns a Cell holding v, attached.
func New[T any](v T) Cell[T] {
	return Cell[T]{val: v, attached: true}
}

// Attached reports whether the cell currently holds its value.
func (c *Cell[T]) Attached() bool {
	return c.attached
}

// Take removes and returns the contained value, leaving the cell detached.
// Panics with *InvalidStateError if the cell is already detached.
func (c *Cell[T]) Take() T {
	if !c.attached {
		panic(&InvalidStateError{Op: "take"})
	}
	var zero T
	v := c.val
	c.val = zero
	c.attached = false
	return v
}

// Put places v back into the cell, attaching it. Panics with
// *InvalidStateError if the cell is already attached.
func (c *Cell[T]) Put(v T) {
	if c.attached {
		panic(&InvalidStateError{Op: "put"})
	}
	c.val = v
	c.attached = true
}

// Peek returns a pointer to the contained value for read/write access in
// place, without detaching it. Panics with *InvalidStateError if detached.
func (c *Cell[T]) Peek() *T {
	if !c.attached {
		panic(&InvalidStateError{Op: "peek"})
	}
	return &c.val
}

// With implements the with_detached idiom: it takes v out of c, invokes fn
// with v's address, and reattaches the (possibly mutated) value to c before
// returning -- on every return path, including when fn returns an error. A
// panic in fn is not recovered and leaves c detached. This
// is the only sanctioned way to pass a cell's contents and its enclosing
// struct to the same function: callers must not use Take/Put directly for
// that purpose, since an early return between them would leave c detached.
func With[T any](c *Cell[T], fn func(v *T) error) error {
	v := c.Take()
	err := fn(&v)
	c.Put(v)
	return err
}
