// Package provider is the generic AI provider client: typed
// submit/status/result/upload operations against a remote, queue-backed
// generation API, plus retry/backoff and error classification. The
// request/response bodies are treated as opaque JSON payloads — the client
// only requires a small fixed set of fields to extract results.
package provider

import "time"

// EventKind is the provider lifecycle event classification the worker
// drains from a submitted job's event stream.
type EventKind string

const (
	EventQueued     EventKind = "queued"
	EventInProgress EventKind = "in_progress"
	EventCompleted  EventKind = "completed"
)

// Event is one lifecycle update read off a job's event stream.
type Event struct {
	Kind     EventKind
	Position *int     // set on EventQueued
	Logs     []string // new log lines, set on EventInProgress/EventCompleted
	Progress *float64 // set on EventInProgress when the provider reports one
	Result   map[string]any
}

// Handle is returned by Submit: the provider-assigned request id and the
// channel the caller drains lifecycle events from. The channel is closed
// when a terminal event (Completed) has been sent, or when Err is set.
type Handle struct {
	RequestID string
	Events    <-chan Event
	Err       func() error // non-nil error once the event stream has closed abnormally
}

// StatusResult is the synchronous poll-based status check.
type StatusResult struct {
	State         string
	Logs          []string
	QueuePosition *int
	Progress      *float64
}

const (
	// pollIntervalS is the interval mandated by the duration-routing rule
	// for jobs required to use submit+poll.
	pollIntervalS = 10 * time.Second

	// subscribePollIntervalS is the faster cadence used to simulate an
	// event stream for jobs short enough to use the subscribe convenience.
	subscribePollIntervalS = 2 * time.Second

	defaultPollTimeout = 600 * time.Second
)
