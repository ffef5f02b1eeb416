//go:build !unix

package securebuf

// newLockedBuffer falls back to the insecure implementation on platforms
// without mmap/mlock/mprotect (e.g. Windows, wasm). Callers who need the
// real guarantee on those platforms should use NewInsecure explicitly and
// treat the distinction as informational; this module's target deployment
// is unix hosts.
func newLockedBuffer(size int) (buffer, error) {
	return newInsecureBuffer(size), nil
}
