// Package rtlog is the ambient structured-logging seam shared across the
// engine: the query executor logs rate-limited cycle-detected and
// quota-exceeded warnings, the invalidation engine logs a summary of each
// pass, and the scheduler logs nursery cancellation and caught task
// panics. It mirrors the package-level global-logger pattern of
// joeycumines/go-utilpkg/eventloop's logging.go: a swappable logger that
// defaults to a safe, silent no-op, so embedding a toolchain driver is
// never forced to configure logging just to use the engine.
//
// The concrete implementation is github.com/joeycumines/logiface, with
// github.com/joeycumines/izerolog (logiface + rs/zerolog) wired as the
// default non-nil backend once a caller opts in via SetZerolog.
package rtlog

import (
	"os"
	"strconv"
	"sync"

	"github.com/joeycumines/goroutineid"
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = logiface.New[logiface.Event]() // safe zero-configuration no-op
)

// SetZerolog installs a zerolog-backed logger at the given level as the
// engine-wide logger, writing to w (os.Stderr if w is nil).
func SetZerolog(level logiface.Level, w *os.File) {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	l := logiface.New[logiface.Event](
		izerolog.WithZerolog(z),
		logiface.WithLevel[logiface.Event](level),
	)
	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLogger installs an arbitrary pre-configured logiface logger,
// bypassing SetZerolog's opinionated defaults. Intended for embedders that
// already run their own logiface/zerolog pipeline and want the engine's
// events folded into it. Passing nil restores the silent no-op default.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		logger = logiface.New[logiface.Event]()
		return
	}
	logger = l
}

func current() *logiface.Logger[logiface.Event] {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// worker tags a builder with the calling goroutine's id, the closest
// portable stand-in Go offers for the OS-thread id a native M:N scheduler
// would normally log against.
func worker(b *logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event] {
	return b.Str("goroutine_id", strconv.FormatInt(goroutineid.Get(), 10))
}

// Info starts an informational log entry tagged with the calling
// goroutine's id.
func Info() *logiface.Builder[logiface.Event] { return worker(current().Info()) }

// Debug starts a debug-level log entry tagged with the calling
// goroutine's id.
func Debug() *logiface.Builder[logiface.Event] { return worker(current().Debug()) }

// Warn starts a warning-level log entry tagged with the calling
// goroutine's id.
func Warn() *logiface.Builder[logiface.Event] { return worker(current().Warning()) }

// Err starts an error-level log entry pre-populated with err and tagged
// with the calling goroutine's id.
func Err(err error) *logiface.Builder[logiface.Event] {
	return worker(current().Err()).Err(err)
}
