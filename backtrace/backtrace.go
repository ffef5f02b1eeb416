// Package backtrace captures diagnostic call stacks for the request
// tracker. Capture is process-wide and cheap to check: most bookmarks never
// pay for a stack walk because the default mode is Off.
//
// The mode is seeded once, lazily, from the BACKTRACE_STRATEGY environment
// variable (one of CAPTURE_RESOLVED, CAPTURE_UNRESOLVED, or unset), and, like
// the settable process-wide logger in corelog, it can be overridden at any
// time with SetMode.
package backtrace

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// Mode selects whether and how a Backtrace is captured at bookmark time.
type Mode int32

const (
	// Off never captures a stack; Capture returns a zero Backtrace.
	Off Mode = iota
	// Unresolved captures raw program counters via runtime.Callers, deferring
	// symbolization until String is called.
	Unresolved
	// Resolved captures and immediately symbolizes the stack at capture time.
	Resolved
)

const envVar = "BACKTRACE_STRATEGY"

var (
	modeOnce sync.Once
	mode     atomic.Int32
)

func initMode() {
	m := Off
	switch os.Getenv(envVar) {
	case "CAPTURE_RESOLVED":
		m = Resolved
	case "CAPTURE_UNRESOLVED":
		m = Unresolved
	}
	mode.Store(int32(m))
}

// CurrentMode returns the active capture mode, seeding it from the
// environment on first use.
func CurrentMode() Mode {
	modeOnce.Do(initMode)
	return Mode(mode.Load())
}

// SetMode overrides the capture mode programmatically. It also short-circuits
// the env-var seed, so it is safe to call before any Capture.
func SetMode(m Mode) {
	modeOnce.Do(func() {})
	mode.Store(int32(m))
}

// Backtrace is an optionally-captured diagnostic call stack, attached to a
// tracker entry at bookmark time and handed back through a Timeout callback.
type Backtrace struct {
	pcs     []uintptr
	resolved string
}

// Capture records the caller's stack according to CurrentMode. skip is the
// number of additional frames (beyond Capture itself) to omit, matching the
// runtime.Callers convention.
func Capture(skip int) Backtrace {
	switch CurrentMode() {
	case Unresolved:
		return Backtrace{pcs: callers(skip + 1)}
	case Resolved:
		bt := Backtrace{pcs: callers(skip + 1)}
		bt.resolved = bt.format()
		bt.pcs = nil
		return bt
	default:
		return Backtrace{}
	}
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}

// IsZero reports whether no stack was captured (Mode was Off, or the
// Backtrace is the zero value).
func (b Backtrace) IsZero() bool {
	return len(b.pcs) == 0 && b.resolved == ""
}

func (b Backtrace) format() string {
	if len(b.pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(b.pcs)
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// String renders the captured stack, resolving it lazily if it was captured
// in Unresolved mode.
func (b Backtrace) String() string {
	if b.resolved != "" {
		return b.resolved
	}
	return b.format()
}
