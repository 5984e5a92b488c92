package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrompt       = errors.New("invalid prompt")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSubmission marks a provider rejection at job creation time.
	// Non-retryable within a workflow.
	ErrSubmission = errors.New("provider rejected submission")

	// ErrProviderFailure marks a job the provider explicitly reported as
	// failed after it was accepted.
	ErrProviderFailure = errors.New("provider reported failure")

	// ErrPollTimeout marks a job that never reached a terminal provider
	// state within the polling attempt ceiling.
	ErrPollTimeout = errors.New("polling attempt ceiling reached")

	// ErrStorageDegraded marks an artifact that could not be persisted
	// durably. Non-fatal: delivery falls back to a transient URL.
	ErrStorageDegraded = errors.New("artifact storage degraded")

	// ErrLedgerUnavailable marks a failed balance read or write. Callers
	// proceed best-effort rather than blocking the user.
	ErrLedgerUnavailable = errors.New("token ledger unavailable")

	// ErrDeliveryFailed marks an unreachable recipient. Logged only.
	ErrDeliveryFailed = errors.New("delivery failed")
)
