package domain

import "time"

// Artifact is a persisted generation result. Records are written once
// when an upload finishes and never mutated; deletion is handled outside
// this service.
type Artifact struct {
	ID          string
	OwnerID     int64
	Kind        JobKind
	URL         string
	MIMEType    string
	Prompt      string
	SourceModel string
	CreatedAt   time.Time
}
