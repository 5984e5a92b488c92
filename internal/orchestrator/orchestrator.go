// Package orchestrator drives the long-running media generation
// workflow: submit to the provider, poll to a terminal state inside a
// bounded loop, persist the artifact, deliver it, and settle the token
// ledger. Each accepted request runs as one detached unit of work;
// the triggering HTTP call returns the moment the job is accepted.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"stargen/internal/delivery"
	"stargen/internal/domain"
	"stargen/internal/infra"
	"stargen/internal/provider"
)

// ArtifactStore is the slice of the artifact store the workflow needs.
type ArtifactStore interface {
	Persist(ctx context.Context, ownerID int64, kind domain.JobKind, data []byte, contentType, fallbackURL string) (string, error)
	RecordMetadata(ctx context.Context, art *domain.Artifact) error
}

// Channel delivers terminal outcomes to the originating user.
type Channel interface {
	Send(ctx context.Context, chatID int64, p delivery.Payload) error
	NotifyFailure(ctx context.Context, chatID int64, reason string)
}

// Ledger is the token balance contract the workflow settles against.
type Ledger interface {
	Balance(ctx context.Context, ownerID int64) (int, error)
	Deduct(ctx context.Context, ownerID int64, amount int) (int, error)
	Credit(ctx context.Context, ownerID int64, amount int) (int, error)
}

// Policy tunes one job kind: polling cadence, the attempt ceiling that
// bounds total wall-clock spend, and the cost settled on completion.
type Policy struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	Cost            int
	Model           string
}

// Config assembles the orchestrator's collaborators and per-kind
// policies. MaxConcurrent bounds how many workflows run provider work at
// once; zero keeps the source system's unbounded fan-out.
type Config struct {
	Gateways      map[domain.JobKind]provider.Gateway
	Store         ArtifactStore
	Channel       Channel
	Ledger        Ledger
	Policies      map[domain.JobKind]Policy
	Logger        infra.Logger
	MaxConcurrent int
}

// Orchestrator owns the state machine for background generation jobs.
type Orchestrator struct {
	gateways map[domain.JobKind]provider.Gateway
	store    ArtifactStore
	channel  Channel
	ledger   Ledger
	policies map[domain.JobKind]Policy
	logger   infra.Logger

	sem   *semaphore.Weighted
	wg    sync.WaitGroup
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Orchestrator from the given config.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		gateways: cfg.Gateways,
		store:    cfg.Store,
		channel:  cfg.Channel,
		ledger:   cfg.Ledger,
		policies: cfg.Policies,
		logger:   cfg.Logger,
		sleep:    sleepContext,
	}
	if cfg.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return o
}

// Launch validates the request, acknowledges acceptance, and spawns the
// detached workflow. The returned job reflects the accepted state only;
// all later progress is communicated through the delivery channel.
func (o *Orchestrator) Launch(ctx context.Context, ownerID int64, params domain.JobParams, locale string) (*domain.GenerationJob, error) {
	if !hasInput(params) {
		return nil, domain.ErrInvalidPrompt
	}
	kind := params.Kind()
	gateway, ok := o.gateways[kind]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for kind %q", kind)
	}
	policy := o.policies[kind]

	// Balance pre-check. A ledger outage degrades to best-effort
	// acceptance rather than blocking the user.
	balance, err := o.ledger.Balance(ctx, ownerID)
	if err != nil {
		o.logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("orchestrator: balance unknown, accepting best-effort")
	} else if balance < policy.Cost {
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now()
	job := &domain.GenerationJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   ownerID,
		Prompt:    params.PromptText(),
		Locale:    locale,
		Status:    domain.JobStatusAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.wg.Add(1)
	go o.runDetached(job, params, gateway, policy)

	return job, nil
}

// Wait blocks until in-flight workflows finish or ctx expires. Used by
// graceful shutdown; workflows themselves are never cancelled.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) runDetached(job *domain.GenerationJob, params domain.JobParams, gateway provider.Gateway, policy Policy) {
	defer o.wg.Done()

	// The workflow outlives the triggering request, so it runs on its
	// own context. There is no cancel path once submitted.
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Interface("panic", r).
				Str("job_id", job.ID).
				Msg("orchestrator: workflow panicked")
			o.transition(job, domain.JobStatusFailed, fmt.Sprintf("panic: %v", r))
			o.channel.NotifyFailure(ctx, job.OwnerID, failureMessage(job.Locale, job.Kind, reasonInternal))
		}
	}()

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			o.fail(ctx, job, domain.JobStatusFailed, reasonInternal, err)
			return
		}
		defer o.sem.Release(1)
	}

	o.run(ctx, job, params, gateway, policy)
}

func (o *Orchestrator) run(ctx context.Context, job *domain.GenerationJob, params domain.JobParams, gateway provider.Gateway, policy Policy) {
	logger := o.logger.With().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int64("owner_id", job.OwnerID).
		Logger()

	// Accepted -> Submitted. A submission failure is non-transient
	// within one workflow invocation: no retry.
	providerJobID, err := gateway.Submit(ctx, params)
	if err != nil {
		logger.Error().Err(err).Msg("orchestrator: submission rejected")
		o.fail(ctx, job, domain.JobStatusFailed, reasonSubmission, err)
		return
	}
	job.ProviderJobID = providerJobID
	o.transition(job, domain.JobStatusSubmitted, "")
	logger.Info().Str("provider_job_id", providerJobID).Msg("orchestrator: job submitted")

	// Submitted -> Polling. The inter-attempt sleep is the only
	// suspension point in the workflow.
	o.transition(job, domain.JobStatusPolling, "")
	status, ok := o.poll(ctx, job, gateway, policy, logger)
	if !ok {
		return
	}

	// Polling -> Succeeded: fetch, persist, deliver, then settle.
	result, err := gateway.FetchResult(ctx, status.ResultRef)
	if err != nil {
		logger.Error().Err(err).Str("result_ref", status.ResultRef).Msg("orchestrator: artifact fetch failed")
		o.fail(ctx, job, domain.JobStatusFailed, reasonProvider, err)
		return
	}

	url, persistErr := o.store.Persist(ctx, job.OwnerID, job.Kind, result.Data, result.ContentType, result.SourceURL)
	payload := delivery.Payload{
		Kind:     job.Kind,
		MIMEType: result.ContentType,
		Caption:  buildCaption(job.Kind, job.Prompt),
	}
	switch {
	case persistErr == nil:
		payload.Data = result.Data
		payload.URL = url
	case url != "":
		// Durable storage degraded: deliver the provider's transient URL.
		logger.Warn().Err(persistErr).Msg("orchestrator: storage degraded, delivering transient url")
		payload.URL = url
	default:
		logger.Warn().Err(persistErr).Msg("orchestrator: storage unavailable, delivering raw bytes")
		payload.Data = result.Data
	}

	if url != "" {
		if err := o.store.RecordMetadata(ctx, &domain.Artifact{
			OwnerID:     job.OwnerID,
			Kind:        job.Kind,
			URL:         url,
			MIMEType:    result.ContentType,
			Prompt:      job.Prompt,
			SourceModel: policy.Model,
		}); err != nil {
			logger.Warn().Err(err).Msg("orchestrator: metadata record failed")
		}
	}

	if err := o.channel.Send(ctx, job.OwnerID, payload); err != nil {
		// The user simply does not receive the message; no recovery.
		logger.Error().Err(err).Msg("orchestrator: delivery failed")
	}

	// Settlement is deferred to completion so failed generations are
	// never charged. A ledger outage must not turn success into failure.
	if _, err := o.ledger.Deduct(ctx, job.OwnerID, policy.Cost); err != nil {
		logger.Warn().Err(err).Int("cost", policy.Cost).Msg("orchestrator: settlement skipped")
	}

	o.transition(job, domain.JobStatusSucceeded, "")
	logger.Info().Int("poll_attempts", job.PollAttempts).Msg("orchestrator: job succeeded")
}

// poll runs the bounded polling loop. It returns the terminal provider
// status and true when the provider reported success; on provider
// failure or timeout it finalizes the job and returns false.
func (o *Orchestrator) poll(ctx context.Context, job *domain.GenerationJob, gateway provider.Gateway, policy Policy, logger infra.Logger) (provider.Status, bool) {
	for attempt := 1; attempt <= policy.MaxPollAttempts; attempt++ {
		if err := o.sleep(ctx, policy.PollInterval); err != nil {
			o.fail(ctx, job, domain.JobStatusFailed, reasonInternal, err)
			return provider.Status{}, false
		}
		job.PollAttempts = attempt
		job.UpdatedAt = time.Now()

		status, err := gateway.PollStatus(ctx, job.ProviderJobID)
		if err != nil {
			// A failed round trip burns the attempt; the next tick retries.
			logger.Debug().Err(err).Int("attempt", attempt).Msg("orchestrator: poll round trip failed")
			continue
		}

		switch status.State {
		case provider.StateSucceeded:
			return status, true
		case provider.StateFailed:
			logger.Error().Str("reason", status.Reason).Int("attempt", attempt).Msg("orchestrator: provider reported failure")
			o.fail(ctx, job, domain.JobStatusFailed, reasonProvider, fmt.Errorf("%w: %s", domain.ErrProviderFailure, status.Reason))
			return provider.Status{}, false
		default:
			// Still processing; remain in Polling.
		}
	}

	logger.Error().Int("attempts", policy.MaxPollAttempts).Msg("orchestrator: polling ceiling reached")
	o.fail(ctx, job, domain.JobStatusTimedOut, reasonTimeout, domain.ErrPollTimeout)
	return provider.Status{}, false
}

// fail finalizes the job in a failure state, issues the compensating
// credit when the flow pre-authorized a deduction, and notifies the
// user best-effort.
func (o *Orchestrator) fail(ctx context.Context, job *domain.GenerationJob, status domain.JobStatus, reason failureReason, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	o.transition(job, status, detail)

	if job.PreCharged > 0 {
		if _, err := o.ledger.Credit(ctx, job.OwnerID, job.PreCharged); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Int("amount", job.PreCharged).Msg("orchestrator: compensation credit failed")
		}
	}

	o.channel.NotifyFailure(ctx, job.OwnerID, failureMessage(job.Locale, job.Kind, reason))
}

// transition advances the job status. Terminal states are final: an
// attempted transition out of one is dropped and logged, never applied.
func (o *Orchestrator) transition(job *domain.GenerationJob, status domain.JobStatus, errorMessage string) {
	if job.Status.Terminal() {
		o.logger.Error().
			Str("job_id", job.ID).
			Str("from", string(job.Status)).
			Str("to", string(status)).
			Msg("orchestrator: transition out of terminal state dropped")
		return
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	if errorMessage != "" {
		job.ErrorMessage = errorMessage
	}
}

func hasInput(params domain.JobParams) bool {
	if strings.TrimSpace(params.PromptText()) != "" {
		return true
	}
	if v, ok := params.(domain.VideoParams); ok {
		return v.FirstFrame != nil && len(v.FirstFrame.Data) > 0
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
