// Package artifact persists finished generation results and their
// lookup metadata. Uploads are durable when the hosted backend is
// reachable and degrade to a caller-supplied transient URL when it is
// not; metadata writes are best-effort and never roll back bytes that
// were already stored.
package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stargen/internal/domain"
	"stargen/internal/infra"
)

// Uploader stores raw bytes under a bucket/key and returns a publicly
// fetchable URL.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// Recorder persists artifact lookup rows.
type Recorder interface {
	Record(ctx context.Context, art *domain.Artifact) error
}

// Store is the artifact store facade used by the orchestrator and the
// synchronous image flow.
type Store struct {
	uploader Uploader
	recorder Recorder
	buckets  map[domain.JobKind]string
	logger   infra.Logger
	now      func() time.Time
}

// NewStore constructs a Store. Buckets maps each media kind to its
// object storage bucket.
func NewStore(uploader Uploader, recorder Recorder, buckets map[domain.JobKind]string, logger infra.Logger) *Store {
	return &Store{
		uploader: uploader,
		recorder: recorder,
		buckets:  buckets,
		logger:   logger,
		now:      time.Now,
	}
}

// Persist uploads the bytes under a collision-resistant key and returns
// the durable public URL. When the backend is unavailable it returns the
// fallback URL together with domain.ErrStorageDegraded so callers can
// keep delivering; the workflow must not fail on storage alone.
func (s *Store) Persist(ctx context.Context, ownerID int64, kind domain.JobKind, data []byte, contentType, fallbackURL string) (string, error) {
	bucket := s.buckets[kind]
	if bucket == "" {
		bucket = string(kind)
	}
	key := fmt.Sprintf("%s_%d_%d%s", kind, ownerID, s.now().UnixNano(), extensionForMIME(contentType))

	url, err := s.uploader.Upload(ctx, bucket, key, data, contentType)
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("owner_id", ownerID).
			Str("kind", string(kind)).
			Msg("artifact: durable upload failed")
		if fallbackURL != "" {
			return fallbackURL, fmt.Errorf("%w: %v", domain.ErrStorageDegraded, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStorageDegraded, err)
	}
	return url, nil
}

// RecordMetadata writes the artifact lookup row. Failures are returned
// for logging but must not abort the caller's workflow.
func (s *Store) RecordMetadata(ctx context.Context, art *domain.Artifact) error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Record(ctx, art)
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}
