// Package imagegen defines the image generation backend capability and
// its implementations. Backends are interchangeable links in an ordered
// fallback chain: submit a job, poll it to completion, fetch the bytes.
package imagegen

import (
	"context"
	"time"
)

// State is the coarse job status a backend reports while polling.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job identifies one submitted generation on a specific backend.
type Job struct {
	ID       string
	ClientID string
}

// Backend is the capability every image generator must provide.
// Availability is probed before submission so an offline backend is
// skipped without counting as a failed attempt.
type Backend interface {
	Name() string
	Available(ctx context.Context) bool
	Submit(ctx context.Context, prompt, kind string) (Job, error)
	Poll(ctx context.Context, job Job) (State, error)
	Fetch(ctx context.Context, job Job) ([]byte, error)
	PollInterval() time.Duration
	PollTimeout() time.Duration
}
