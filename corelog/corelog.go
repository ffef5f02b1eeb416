// Package corelog centralizes structured logging for every package in this
// module. It is a thin facade over logiface so that the core packages never
// import a concrete logging backend directly; only this package decides
// which one is wired in.
package corelog

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var current atomic.Pointer[logiface.Logger[*stumpy.Event]]

func init() {
	current.Store(stumpy.L.New())
}

// L returns the process-wide logger. Safe for concurrent use.
func L() *logiface.Logger[*stumpy.Event] {
	return current.Load()
}

// SetLogger replaces the process-wide logger, e.g. to install a recording
// logger in tests or to reconfigure the stumpy writer at startup.
func SetLogger(l *logiface.Logger[*stumpy.Event]) {
	if l == nil {
		l = stumpy.L.New()
	}
	current.Store(l)
}
