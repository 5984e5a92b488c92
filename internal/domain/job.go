package domain

import "time"

// JobKind enumerates background media generation categories.
type JobKind string

const (
	JobKindVideo JobKind = "video"
	JobKindMusic JobKind = "music"
	// JobKindImage is used only by the synchronous image flow; it never
	// enters the background workflow.
	JobKindImage JobKind = "image"
)

// JobStatus enumerates workflow lifecycle states. The terminal states
// (succeeded, failed, timed_out) are final; a job never re-enters the
// polling loop once it reaches one of them.
type JobStatus string

const (
	JobStatusAccepted  JobStatus = "accepted"
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// GenerationJob is the unit of background work. Exactly one exists per
// accepted client request. ProviderJobID is assigned only after the
// provider accepts the submission; Status is mutated exclusively by the
// orchestrator driving the job.
type GenerationJob struct {
	ID            string
	ProviderJobID string
	Kind          JobKind
	OwnerID       int64
	Prompt        string
	Locale        string
	Status        JobStatus
	ErrorMessage  string
	// PreCharged holds the amount already deducted before submission, if
	// any. The video and music workflows settle on completion and leave
	// it zero; a flow that pre-authorizes records the amount here so a
	// failure can issue the compensating credit.
	PreCharged   int
	PollAttempts int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InlineMedia is a reference payload carried inside a submission, e.g. a
// first-frame image for video generation.
type InlineMedia struct {
	MIMEType string
	Data     []byte
}

// JobParams is the tagged union over job kinds. Each variant carries the
// strongly typed parameter set its provider endpoint expects.
type JobParams interface {
	Kind() JobKind
	PromptText() string
}

// VideoParams parameterizes a video generation submission.
type VideoParams struct {
	Prompt          string
	AspectRatio     string
	DurationSeconds int
	FirstFrame      *InlineMedia
}

func (VideoParams) Kind() JobKind { return JobKindVideo }

func (p VideoParams) PromptText() string { return p.Prompt }

// MusicParams parameterizes a music generation submission.
type MusicParams struct {
	Prompt     string
	Lyrics     string
	ReferVoice string
}

func (MusicParams) Kind() JobKind { return JobKindMusic }

func (p MusicParams) PromptText() string { return p.Prompt }
