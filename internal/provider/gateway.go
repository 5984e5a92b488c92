// Package provider defines the uniform contract for external generation
// services. Adapters hold no state beyond their HTTP client; retry
// cadence belongs to the caller.
package provider

import (
	"context"

	"stargen/internal/domain"
)

// JobState is the normalized remote state of a submitted job.
type JobState string

const (
	StateProcessing JobState = "processing"
	StateSucceeded  JobState = "succeeded"
	StateFailed     JobState = "failed"
)

// Status is the result of a single status poll. ResultRef is populated
// only when State is StateSucceeded; Reason carries the provider's
// message when State is StateFailed.
type Status struct {
	State     JobState
	ResultRef string
	Reason    string
}

// Result is a fetched artifact. SourceURL is the provider's transient
// download location, usable as a delivery fallback when durable storage
// is degraded.
type Result struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// Gateway submits generation jobs and exposes their completion state.
// Each method is a single logical operation with no internal retries.
type Gateway interface {
	Submit(ctx context.Context, params domain.JobParams) (jobID string, err error)
	PollStatus(ctx context.Context, jobID string) (Status, error)
	FetchResult(ctx context.Context, resultRef string) (*Result, error)
}
