//go:build unix

package securebuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// lockedBuffer is backed by an anonymous mmap region, locked against
// swapping with mlock, and gated with mprotect so that any access outside
// of View/Mutate's window segfaults at the hardware level -- not just at
// this package's API surface.
type lockedBuffer struct {
	region []byte // full, page-aligned mmap'd region
	size   int    // user-requested size, <= len(region)
	m      Mode
}

func pageSize() int {
	if n := unix.Getpagesize(); n > 0 {
		return n
	}
	return 4096
}

func newLockedBuffer(size int) (buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("securebuf: negative size %d", size)
	}
	ps := pageSize()
	alloc := ((size + ps - 1) / ps) * ps
	if alloc == 0 {
		alloc = ps
	}
	region, err := unix.Mmap(-1, 0, alloc, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("securebuf: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		_ = unix.Munmap(region)
		return nil, fmt.Errorf("securebuf: mlock: %w", err)
	}
	return &lockedBuffer{region: region, size: size, m: NoAccess}, nil
}

func (b *lockedBuffer) len() int   { return b.size }
func (b *lockedBuffer) mode() Mode { return b.m }

func (b *lockedBuffer) protect(mode Mode, prot int) {
	if err := unix.Mprotect(b.region, prot); err != nil {
		// A failing mprotect on key material is not recoverable: we cannot
		// honor the requested protection guarantee.
		panic(fmt.Errorf("securebuf: mprotect: %w", err))
	}
	b.m = mode
}

func (b *lockedBuffer) setNoAccess() { b.protect(NoAccess, unix.PROT_NONE) }
func (b *lockedBuffer) setReadable() { b.protect(ReadOnly, unix.PROT_READ) }
func (b *lockedBuffer) setWritable() { b.protect(ReadWrite, unix.PROT_READ|unix.PROT_WRITE) }

func (b *lockedBuffer) bytes() []byte {
	return b.region[:b.size]
}

func (b *lockedBuffer) clone() buffer {
	out, err := newLockedBuffer(b.size)
	if err != nil {
		panic(err)
	}
	l := out.(*lockedBuffer)
	prevMode := b.m
	if prevMode == NoAccess {
		b.protect(ReadOnly, unix.PROT_READ)
	}
	l.protect(ReadWrite, unix.PROT_READ|unix.PROT_WRITE)
	copy(l.region, b.region[:b.size])
	l.protect(NoAccess, unix.PROT_NONE)
	if prevMode == NoAccess {
		b.protect(NoAccess, unix.PROT_NONE)
	}
	return l
}

func (b *lockedBuffer) release() {
	// Zeroing requires write access regardless of the current mode.
	_ = unix.Mprotect(b.region, unix.PROT_READ|unix.PROT_WRITE)
	for i := range b.region {
		b.region[i] = 0
	}
	_ = unix.Munlock(b.region)
	_ = unix.Munmap(b.region)
	b.m = NoAccess
	b.region = nil
}
