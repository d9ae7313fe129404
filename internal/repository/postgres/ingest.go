package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/ingest"
)

// IngestRepo implements ingest.Repository against PostgreSQL.
type IngestRepo struct{ db *sql.DB }

// NewIngestRepo creates a Postgres-backed ingest repository.
func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

func (r *IngestRepo) CandidateByToken(ctx context.Context, token string) (*domain.SendCandidate, error) {
	c := &domain.SendCandidate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, recipient_id, template_id, campaign_id,
		       scheduled_at, sent, sent_at, tracking_token, created_at
		FROM send_candidates
		WHERE tracking_token = $1
	`, token).Scan(
		&c.ID, &c.TenantID, &c.RecipientID, &c.TemplateID, &c.CampaignID,
		&c.ScheduledAt, &c.Sent, &c.SentAt, &c.TrackingToken, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("candidate by token: %w", err)
	}
	return c, nil
}

func (r *IngestRepo) LatestSentCandidateByEmail(ctx context.Context, email string) (*domain.SendCandidate, error) {
	c := &domain.SendCandidate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.tenant_id, c.recipient_id, c.template_id, c.campaign_id,
		       c.scheduled_at, c.sent, c.sent_at, c.tracking_token, c.created_at
		FROM send_candidates c
		JOIN recipients r ON r.id = c.recipient_id
		WHERE r.email = $1 AND c.sent = true
		ORDER BY c.sent_at DESC
		LIMIT 1
	`, email).Scan(
		&c.ID, &c.TenantID, &c.RecipientID, &c.TemplateID, &c.CampaignID,
		&c.ScheduledAt, &c.Sent, &c.SentAt, &c.TrackingToken, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrUnknownRecipient
	}
	if err != nil {
		return nil, fmt.Errorf("latest sent candidate: %w", err)
	}
	return c, nil
}

func (r *IngestRepo) HasEvent(ctx context.Context, candidateID string, kind domain.EventKind) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM delivery_events WHERE candidate_id = $1 AND kind = $2)`,
		candidateID, kind,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has event: %w", err)
	}
	return exists, nil
}

func (r *IngestRepo) AppendEvent(ctx context.Context, event *domain.DeliveryEvent) error {
	return insertEvent(ctx, r.db, event)
}
