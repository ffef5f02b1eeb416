// Package securebuf holds cryptographic key material in memory with
// defense-in-depth: the backing pages are locked against swapping, the
// protection mode is NoAccess at rest, and the buffer is zeroed before its
// pages are released.
//
// Buffer.View and Buffer.Mutate express scoped access as a callback rather
// than a returned guard value: the protection-mode restoration is performed
// by the method itself, in a deferred, recover-then-repanic block, so it
// always executes on every exit path, including a panic, with nothing for
// the caller to remember to release.
package securebuf

import (
	"crypto/subtle"
	"fmt"
)

// Mode is the protection state of a Buffer.
type Mode int

const (
	// NoAccess is the at-rest state; reads and writes are forbidden.
	NoAccess Mode = iota
	// ReadOnly permits reads only.
	ReadOnly
	// ReadWrite permits reads and writes.
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case NoAccess:
		return "no-access"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// ErrInvalidState is the sentinel behind every InvalidStateError.
var ErrInvalidState = fmt.Errorf("securebuf: invalid state")

// InvalidStateError reports a protection-mode precondition violation: an
// illegal mode transition, or a read/write attempted while NoAccess. These
// are programming errors; callers are expected to let them propagate and
// terminate the process.
type InvalidStateError struct {
	Op   string
	Have Mode
	Want string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("securebuf: %s: mode is %s, need %s", e.Op, e.Have, e.Want)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Buffer is the protection-mode-gated, page-locked byte region. New returns
// the platform's best implementation (locked, mprotect-backed on unix);
// NewInsecure always returns the plain fallback.
type Buffer struct {
	impl buffer
}

// buffer is the platform-specific backing implementation.
type buffer interface {
	len() int
	mode() Mode
	setNoAccess()
	setReadable()
	setWritable()
	bytes() []byte // valid only while caller holds the appropriate mode
	clone() buffer
	release()
}

// New allocates a zeroed, page-protected region of size bytes, starting in
// NoAccess mode.
func New(size int) (*Buffer, error) {
	impl, err := newLockedBuffer(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{impl: impl}, nil
}

// NewInsecure allocates an ordinary byte-slice-backed Buffer with the same
// mode-gating behavior but no page locking. Intended for tests and
// environments without a secure-allocation primitive.
func NewInsecure(size int) *Buffer {
	return &Buffer{impl: newInsecureBuffer(size)}
}

// Len returns the user-visible size of the buffer.
func (b *Buffer) Len() int { return b.impl.len() }

// Mode returns the current protection mode.
func (b *Buffer) Mode() Mode { return b.impl.mode() }

// SetNoAccess transitions to NoAccess. Panics if already NoAccess.
func (b *Buffer) SetNoAccess() {
	if b.impl.mode() == NoAccess {
		panic(&InvalidStateError{Op: "set_no_access", Have: b.impl.mode(), Want: "readable or writable"})
	}
	b.impl.setNoAccess()
}

// SetReadable transitions to ReadOnly. Panics if already readable (ReadOnly
// or ReadWrite).
func (b *Buffer) SetReadable() {
	if b.impl.mode() != NoAccess {
		panic(&InvalidStateError{Op: "set_readable", Have: b.impl.mode(), Want: "no-access"})
	}
	b.impl.setReadable()
}

// SetWritable transitions to ReadWrite. Panics if already writable.
func (b *Buffer) SetWritable() {
	if b.impl.mode() == ReadWrite {
		panic(&InvalidStateError{Op: "set_writable", Have: b.impl.mode(), Want: "no-access or read-only"})
	}
	b.impl.setWritable()
}

// View acquires ReadOnly for the duration of fn, passing the raw bytes, and
// unconditionally restores NoAccess afterward -- including if fn panics, in
// which case the panic is re-raised after the mode is restored.
func (b *Buffer) View(fn func(data []byte) error) (err error) {
	b.SetReadable()
	defer func() {
		b.impl.setNoAccess()
		if r := recover(); r != nil {
			panic(r)
		}
	}()
	return fn(b.impl.bytes())
}

// Mutate acquires ReadWrite for the duration of fn and unconditionally
// restores NoAccess afterward, with the same panic-safety as View.
func (b *Buffer) Mutate(fn func(data []byte) error) (err error) {
	b.SetWritable()
	defer func() {
		b.impl.setNoAccess()
		if r := recover(); r != nil {
			panic(r)
		}
	}()
	return fn(b.impl.bytes())
}

// CopyFrom is a convenience wrapper around Mutate that copies src in,
// truncating or zero-padding to Len().
func (b *Buffer) CopyFrom(src []byte) error {
	return b.Mutate(func(data []byte) error {
		n := copy(data, src)
		for i := n; i < len(data); i++ {
			data[i] = 0
		}
		return nil
	})
}

// Compare performs a constant-time comparison of the two buffers' contents.
// Both buffers must currently be readable (ReadOnly or ReadWrite); it does
// not itself change either buffer's mode.
func (b *Buffer) Compare(other *Buffer) (bool, error) {
	if b.impl.mode() == NoAccess {
		return false, &InvalidStateError{Op: "compare", Have: NoAccess, Want: "readable"}
	}
	if other.impl.mode() == NoAccess {
		return false, &InvalidStateError{Op: "compare", Have: NoAccess, Want: "readable"}
	}
	a, c := b.impl.bytes(), other.impl.bytes()
	if len(a) != len(c) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(a, c) == 1, nil
}

// Clone produces a new Buffer of the same kind, with identical contents and
// independent protection state, starting NoAccess regardless of the
// source's current mode.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{impl: b.impl.clone()}
}

// Release zeroes the buffer and releases its pages. The Buffer must not be
// used after Release.
func (b *Buffer) Release() {
	b.impl.release()
}
