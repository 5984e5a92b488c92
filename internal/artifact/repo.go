package artifact

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stargen/internal/domain"
	"stargen/internal/infra"
)

// RepositoryPG persists artifact metadata rows in PostgreSQL.
type RepositoryPG struct {
	db infra.SQLExecutor
}

// NewRepository constructs a new artifact metadata repository.
func NewRepository(db infra.SQLExecutor) *RepositoryPG {
	return &RepositoryPG{db: db}
}

// Record inserts the artifact lookup row. Rows are written once and
// never updated.
func (r *RepositoryPG) Record(ctx context.Context, art *domain.Artifact) error {
	if art.ID == "" {
		art.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO artifacts (id, owner_id, kind, url, mime_type, prompt, source_model)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`,
		art.ID,
		art.OwnerID,
		art.Kind,
		art.URL,
		art.MIMEType,
		art.Prompt,
		art.SourceModel,
	)
	return err
}

// ListByOwner returns the owner's artifacts, newest first.
func (r *RepositoryPG) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Artifact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id, owner_id, kind, url, mime_type, prompt, source_model, created_at
FROM artifacts
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var art domain.Artifact
		var createdAt time.Time
		if err := rows.Scan(&art.ID, &art.OwnerID, &art.Kind, &art.URL, &art.MIMEType, &art.Prompt, &art.SourceModel, &createdAt); err != nil {
			return nil, err
		}
		art.CreatedAt = createdAt
		artifacts = append(artifacts, art)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

var _ Recorder = (*RepositoryPG)(nil)
