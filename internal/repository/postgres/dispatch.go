package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailspool/internal/dispatch"
	"github.com/ignite/mailspool/internal/domain"
)

// DispatchRepo implements dispatch.Repository against PostgreSQL.
type DispatchRepo struct{ db *sql.DB }

// NewDispatchRepo creates a Postgres-backed dispatch repository.
func NewDispatchRepo(db *sql.DB) *DispatchRepo { return &DispatchRepo{db: db} }

func (r *DispatchRepo) TenantProfile(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, profileQuery+` WHERE tenant_id = $1`, tenantID))
	if err == sql.ErrNoRows {
		return nil, dispatch.ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant profile: %w", err)
	}
	return p, nil
}

func (r *DispatchRepo) TenantsWithDueCandidates(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT tenant_id
		FROM send_candidates
		WHERE sent = false AND scheduled_at <= $1
		ORDER BY tenant_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("tenants with due candidates: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func (r *DispatchRepo) DueCandidates(ctx context.Context, tenantID string, now time.Time, limit int) ([]dispatch.CandidateDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.tenant_id, c.recipient_id, c.template_id, c.campaign_id,
		       c.scheduled_at, c.tracking_token, c.created_at,
		       r.id, r.email, COALESCE(r.first_name,''), COALESCE(r.last_name,''),
		       COALESCE(r.company,''), COALESCE(r.country,''), COALESCE(r.city,''),
		       COALESCE(r.free_field1,''), COALESCE(r.free_field2,''), COALESCE(r.free_field3,''),
		       t.id, t.name, t.subject, t.body
		FROM send_candidates c
		JOIN recipients r ON r.id = c.recipient_id
		JOIN templates t ON t.id = c.template_id
		WHERE c.tenant_id = $1 AND c.sent = false AND c.scheduled_at <= $2
		ORDER BY c.scheduled_at ASC
		LIMIT $3
	`, tenantID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due candidates: %w", err)
	}
	defer rows.Close()

	var out []dispatch.CandidateDetail
	for rows.Next() {
		var d dispatch.CandidateDetail
		if err := rows.Scan(
			&d.Candidate.ID, &d.Candidate.TenantID, &d.Candidate.RecipientID,
			&d.Candidate.TemplateID, &d.Candidate.CampaignID,
			&d.Candidate.ScheduledAt, &d.Candidate.TrackingToken, &d.Candidate.CreatedAt,
			&d.Recipient.ID, &d.Recipient.Email, &d.Recipient.FirstName, &d.Recipient.LastName,
			&d.Recipient.Company, &d.Recipient.Country, &d.Recipient.City,
			&d.Recipient.FreeField1, &d.Recipient.FreeField2, &d.Recipient.FreeField3,
			&d.Template.ID, &d.Template.Name, &d.Template.Subject, &d.Template.Body,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		d.Candidate.TenantID = tenantID
		d.Recipient.TenantID = tenantID
		d.Template.TenantID = tenantID
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DispatchRepo) CountSentEvents(ctx context.Context, tenantID string, since, until time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM delivery_events e
		JOIN send_candidates c ON c.id = e.candidate_id
		WHERE c.tenant_id = $1 AND e.kind = 'sent'
		  AND e.occurred_at > $2 AND e.occurred_at <= $3
	`, tenantID, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent events: %w", err)
	}
	return count, nil
}

func (r *DispatchRepo) MarkSent(ctx context.Context, candidateID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE send_candidates SET sent = true, sent_at = $2
		WHERE id = $1 AND sent = false
	`, candidateID, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (r *DispatchRepo) AppendLog(ctx context.Context, entry *domain.DeliveryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_logs
			(id, tenant_id, recipient_email, campaign_id, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.TenantID, entry.RecipientEmail, entry.CampaignID,
		entry.Status, entry.ErrorMessage, entry.SentAt)
	if err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}

func (r *DispatchRepo) AppendEvent(ctx context.Context, event *domain.DeliveryEvent) error {
	return insertEvent(ctx, r.db, event)
}

func (r *DispatchRepo) CreateCandidates(ctx context.Context, candidates []domain.SendCandidate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin candidates tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO send_candidates
			(id, tenant_id, recipient_id, template_id, campaign_id,
			 scheduled_at, sent, tracking_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for i := range candidates {
		c := &candidates[i]
		if _, err := stmt.ExecContext(ctx, c.ID, c.TenantID, c.RecipientID,
			c.TemplateID, c.CampaignID, c.ScheduledAt, c.TrackingToken, c.CreatedAt); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *DispatchRepo) Candidate(ctx context.Context, tenantID, id string) (*domain.SendCandidate, error) {
	c := &domain.SendCandidate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, recipient_id, template_id, campaign_id,
		       scheduled_at, sent, sent_at, tracking_token, created_at
		FROM send_candidates
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(
		&c.ID, &c.TenantID, &c.RecipientID, &c.TemplateID, &c.CampaignID,
		&c.ScheduledAt, &c.Sent, &c.SentAt, &c.TrackingToken, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func (r *DispatchRepo) Reschedule(ctx context.Context, tenantID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE send_candidates SET scheduled_at = $3
		WHERE id = $1 AND tenant_id = $2 AND sent = false
	`, id, tenantID, at)
	if err != nil {
		return fmt.Errorf("reschedule candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

const profileQuery = `
	SELECT tenant_id, COALESCE(relay_host,''), relay_port,
	       COALESCE(relay_username,''), COALESCE(relay_password,''),
	       encryption, direct_send, from_address, hourly_cap,
	       created_at, updated_at
	FROM tenant_profiles`

func scanProfile(row *sql.Row) (*domain.TenantProfile, error) {
	p := &domain.TenantProfile{}
	err := row.Scan(
		&p.TenantID, &p.RelayHost, &p.RelayPort,
		&p.RelayUsername, &p.RelayPassword,
		&p.Encryption, &p.DirectSend, &p.FromAddress, &p.HourlyCap,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// insertEvent is shared by every repo that appends delivery events.
func insertEvent(ctx context.Context, db *sql.DB, event *domain.DeliveryEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	meta, err := domain.EncodeMeta(event.Meta)
	if err != nil {
		return fmt.Errorf("encode event meta: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO delivery_events
			(id, candidate_id, kind, occurred_at, ip_address, user_agent, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.CandidateID, event.Kind, event.OccurredAt,
		event.IPAddress, event.UserAgent, meta)
	if err != nil {
		return fmt.Errorf("append delivery event: %w", err)
	}
	return nil
}
