// Package tracker implements the request tracker: it stores callbacks
// indexed by a generated correlation id, matches them against incoming
// responses, and sweeps expired entries into timeout callbacks.
//
// A Tracker is parameterized by S, the user-state type every one of its
// callbacks receives, so storing and invoking a callback never needs a type
// switch or downcast for the state it closes over. The one type that is
// erased internally is the per-request response payload, since a single
// Tracker legitimately serves requests with different response types;
// Bookmark captures that type at the call site in an adapter closure, which
// resolves it with a single, safe-if-used-correctly type assertion when
// Handle invokes it.
package tracker

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/holochain/lib3h-core/backtrace"
	"github.com/holochain/lib3h-core/corelog"
)

// RequestID is an opaque, immutable identifier for one outstanding request.
type RequestID string

// CallbackData is delivered to a bookmarked callback exactly once: either a
// Response (the request's declared result type, or an error the requester
// wishes to surface) or a Timeout carrying the diagnostic backtrace captured
// at bookmark time.
type CallbackData[T any] struct {
	timeout bool
	value   T
	err     error
	bt      backtrace.Backtrace
}

// IsTimeout reports whether this is the Timeout variant.
func (d CallbackData[T]) IsTimeout() bool { return d.timeout }

// Response returns (value, err, true) for the Response variant, or the zero
// value and false for Timeout.
func (d CallbackData[T]) Response() (value T, err error, ok bool) {
	return d.value, d.err, !d.timeout
}

// Backtrace returns the diagnostic backtrace captured at bookmark time; only
// meaningful (and only non-zero) for the Timeout variant.
func (d CallbackData[T]) Backtrace() backtrace.Backtrace { return d.bt }

// rawCallback is the type-erased form every callback is adapted to before
// storage, so a Tracker[S] can hold callbacks for requests with differing
// response payload types.
type rawCallback[S any] func(state *S, timeout bool, value any, err error, bt backtrace.Backtrace) error

type entry[S any] struct {
	id       RequestID
	expiry   time.Time
	bt       backtrace.Backtrace
	callback rawCallback[S]
}

// Tracker correlates outbound requests to their callbacks and enforces
// per-request timeouts. The zero value is not usable; construct one with
// NewBuilder[S]().Build().
type Tracker[S any] struct {
	mu             sync.Mutex
	prefix         string
	defaultTimeout time.Duration
	entries        map[RequestID]*entry[S]
	seq            uint64
}

// Option configures a single Bookmark call.
type Option func(*bookmarkOptions)

type bookmarkOptions struct {
	timeout      time.Duration
	haveTimeout  bool
	skipBacktrace bool
}

// WithTimeout overrides the tracker's default timeout for one bookmark.
func WithTimeout(d time.Duration) Option {
	return func(o *bookmarkOptions) {
		o.timeout = d
		o.haveTimeout = true
	}
}

// WithoutBacktrace skips backtrace capture for one bookmark even if the
// process-wide mode (see package backtrace) would otherwise capture one.
func WithoutBacktrace() Option {
	return func(o *bookmarkOptions) { o.skipBacktrace = true }
}

func (t *Tracker[S]) nextID() RequestID {
	t.seq++
	return RequestID(t.prefix + strconv.FormatUint(t.seq, 10))
}

// Bookmark registers cb, keyed by a freshly generated RequestID, and returns
// that id. cb is invoked at most once (I4), either with the matching
// Response (via Handle) or with Timeout (via Process), whichever fires
// first.
func Bookmark[S, T any](t *Tracker[S], cb func(state *S, data CallbackData[T]) error, opts ...Option) RequestID {
	var o bookmarkOptions
	for _, apply := range opts {
		apply(&o)
	}

	timeout := t.defaultTimeout
	if o.haveTimeout {
		timeout = o.timeout
	}

	var bt backtrace.Backtrace
	if !o.skipBacktrace {
		bt = backtrace.Capture(1)
	}

	raw := func(state *S, isTimeout bool, value any, err error, capturedBT backtrace.Backtrace) error {
		var data CallbackData[T]
		data.bt = capturedBT
		if isTimeout {
			data.timeout = true
		} else {
			if value != nil {
				data.value = value.(T)
			}
			data.err = err
		}
		return cb(state, data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID()
	t.entries[id] = &entry[S]{
		id:       id,
		expiry:   time.Now().Add(timeout),
		bt:       bt,
		callback: raw,
	}
	return id
}

// Handle delivers a response for id. If id is currently pending, its
// callback is invoked exactly once with the given value/err and the entry
// is removed (I1, I3). If id is not pending, Handle returns
// *RequestIDNotFoundError without invoking any callback, and the response is
// effectively discarded (I3).
func (t *Tracker[S]) Handle(id RequestID, state *S, value any, err error) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		pending := t.pendingLocked()
		t.mu.Unlock()
		corelog.L().Warning().
			Str(`id`, string(id)).
			Int(`pending`, len(pending)).
			Log(`tracker: response for unknown request id discarded`)
		return &RequestIDNotFoundError{ID: id, Pending: pending}
	}
	delete(t.entries, id)
	t.mu.Unlock()

	return e.callback(state, false, value, err, backtrace.Backtrace{})
}

func (t *Tracker[S]) pendingLocked() []RequestID {
	out := make([]RequestID, 0, len(t.entries))
	for id := range t.entries {
		out = append(out, id)
	}
	return out
}

// Process sweeps entries whose expiry has passed, removing each and invoking
// its callback with Timeout (I1). It returns whether any entry was swept
// (the actor protocol's "did work" flag) and joins any callback errors with
// errors.Join.
func (t *Tracker[S]) Process(state *S) (workDone bool, err error) {
	now := time.Now()

	t.mu.Lock()
	var expired []*entry[S]
	for id, e := range t.entries {
		if !e.expiry.After(now) {
			expired = append(expired, e)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	if len(expired) == 0 {
		return false, nil
	}

	var errs []error
	for _, e := range expired {
		if cbErr := e.callback(state, true, nil, nil, e.bt); cbErr != nil {
			errs = append(errs, cbErr)
		}
	}
	return true, errors.Join(errs...)
}

// Pending returns a snapshot of the currently pending request ids, mostly
// useful for tests and diagnostics.
func (t *Tracker[S]) Pending() []RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingLocked()
}

// Len returns the number of currently pending requests.
func (t *Tracker[S]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
