package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/stats"
)

// StatsRepo implements stats.Repository against PostgreSQL.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed statistics repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

func (r *StatsRepo) CandidatesByCampaign(ctx context.Context, campaignID string) ([]domain.SendCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, recipient_id, template_id, campaign_id,
		       scheduled_at, sent, sent_at, tracking_token, created_at
		FROM send_candidates
		WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("candidates by campaign: %w", err)
	}
	defer rows.Close()

	var out []domain.SendCandidate
	for rows.Next() {
		var c domain.SendCandidate
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.RecipientID, &c.TemplateID, &c.CampaignID,
			&c.ScheduledAt, &c.Sent, &c.SentAt, &c.TrackingToken, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *StatsRepo) EventsByCampaign(ctx context.Context, campaignID string) ([]domain.DeliveryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.candidate_id, e.kind, e.occurred_at,
		       COALESCE(e.ip_address,''), COALESCE(e.user_agent,''), e.meta
		FROM delivery_events e
		JOIN send_candidates c ON c.id = e.candidate_id
		WHERE c.campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("events by campaign: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryEvent
	for rows.Next() {
		var (
			e    domain.DeliveryEvent
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.Kind, &e.OccurredAt,
			&e.IPAddress, &e.UserAgent, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		decoded, err := domain.DecodeMeta(e.Kind, meta)
		if err != nil {
			return nil, fmt.Errorf("decode event %s meta: %w", e.ID, err)
		}
		e.Meta = decoded
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *StatsRepo) SaveStatistics(ctx context.Context, s *domain.CampaignStatistics) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_statistics
			(campaign_id, total_recipients, sent_count, delivered_count,
			 opened_count, clicked_count, unique_opens, unique_clicks,
			 bounced_count, failed_count, complained_count,
			 delivery_rate, open_rate, click_rate, bounce_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (campaign_id) DO UPDATE SET
			total_recipients = EXCLUDED.total_recipients,
			sent_count = EXCLUDED.sent_count,
			delivered_count = EXCLUDED.delivered_count,
			opened_count = EXCLUDED.opened_count,
			clicked_count = EXCLUDED.clicked_count,
			unique_opens = EXCLUDED.unique_opens,
			unique_clicks = EXCLUDED.unique_clicks,
			bounced_count = EXCLUDED.bounced_count,
			failed_count = EXCLUDED.failed_count,
			complained_count = EXCLUDED.complained_count,
			delivery_rate = EXCLUDED.delivery_rate,
			open_rate = EXCLUDED.open_rate,
			click_rate = EXCLUDED.click_rate,
			bounce_rate = EXCLUDED.bounce_rate,
			updated_at = EXCLUDED.updated_at
	`, s.CampaignID, s.TotalRecipients, s.SentCount, s.DeliveredCount,
		s.OpenedCount, s.ClickedCount, s.UniqueOpens, s.UniqueClicks,
		s.BouncedCount, s.FailedCount, s.ComplainedCount,
		s.DeliveryRate, s.OpenRate, s.ClickRate, s.BounceRate, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save statistics: %w", err)
	}
	return nil
}

func (r *StatsRepo) Statistics(ctx context.Context, campaignID string) (*domain.CampaignStatistics, error) {
	s := &domain.CampaignStatistics{}
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id, total_recipients, sent_count, delivered_count,
		       opened_count, clicked_count, unique_opens, unique_clicks,
		       bounced_count, failed_count, complained_count,
		       delivery_rate, open_rate, click_rate, bounce_rate, updated_at
		FROM campaign_statistics
		WHERE campaign_id = $1
	`, campaignID).Scan(
		&s.CampaignID, &s.TotalRecipients, &s.SentCount, &s.DeliveredCount,
		&s.OpenedCount, &s.ClickedCount, &s.UniqueOpens, &s.UniqueClicks,
		&s.BouncedCount, &s.FailedCount, &s.ComplainedCount,
		&s.DeliveryRate, &s.OpenRate, &s.ClickRate, &s.BounceRate, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, stats.ErrNoStatistics
	}
	if err != nil {
		return nil, fmt.Errorf("get statistics: %w", err)
	}
	return s, nil
}
