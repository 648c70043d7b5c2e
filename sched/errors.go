// Package sched holds the scheduler-side error taxonomy shared by its
// subpackages (worker, nursery, runtime) — the counterpart to
// query/errors.go on the query side. It carries no behavior of its own.
package sched

import "errors"

var (
	// ErrAlreadyStarted is returned by a worker Pool's Start when called
	// more than once without an intervening Stop.
	ErrAlreadyStarted = errors.New("sched: already started")
	// ErrSubmissionFailed is returned when the scheduler accepts a spawn
	// request but the chosen worker's deque rejects it (at capacity).
	ErrSubmissionFailed = errors.New("sched: submission failed")
	// ErrSpawnRejected is returned by Nursery.Spawn when the nursery
	// itself refuses the request: it is not Open, or its budget cannot
	// cover a spawn operation.
	ErrSpawnRejected = errors.New("sched: spawn rejected")
	// ErrChannelClosed is returned by the channel collaborator (external
	// to this module; see the scheduler's exposed-to-external-
	// collaborators contract) when a send or receive targets an
	// already-closed channel.
	ErrChannelClosed = errors.New("sched: channel closed")
)
