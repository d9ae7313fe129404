package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/tenant"
)

// TenantRepo implements tenant.Repository against PostgreSQL.
type TenantRepo struct{ db *sql.DB }

// NewTenantRepo creates a Postgres-backed tenant repository.
func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

func (r *TenantRepo) Profile(ctx context.Context, tenantID string) (*domain.TenantProfile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, profileQuery+` WHERE tenant_id = $1`, tenantID))
	if err == sql.ErrNoRows {
		return nil, tenant.ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant profile: %w", err)
	}
	return p, nil
}

func (r *TenantRepo) SaveProfile(ctx context.Context, p *domain.TenantProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_profiles
			(tenant_id, relay_host, relay_port, relay_username, relay_password,
			 encryption, direct_send, from_address, hourly_cap, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id) DO UPDATE SET
			relay_host = EXCLUDED.relay_host,
			relay_port = EXCLUDED.relay_port,
			relay_username = EXCLUDED.relay_username,
			relay_password = EXCLUDED.relay_password,
			encryption = EXCLUDED.encryption,
			direct_send = EXCLUDED.direct_send,
			from_address = EXCLUDED.from_address,
			hourly_cap = EXCLUDED.hourly_cap,
			updated_at = EXCLUDED.updated_at
	`, p.TenantID, p.RelayHost, p.RelayPort, p.RelayUsername, p.RelayPassword,
		p.Encryption, p.DirectSend, p.FromAddress, p.HourlyCap, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save tenant profile: %w", err)
	}
	return nil
}

func (r *TenantRepo) Summary(ctx context.Context, tenantID string) (*domain.TenantSummary, error) {
	s := &domain.TenantSummary{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM recipients WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM templates WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM send_candidates WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM send_candidates WHERE tenant_id = $1 AND sent = true),
			(SELECT COUNT(*) FROM send_candidates WHERE tenant_id = $1 AND sent = false),
			(SELECT COUNT(*) FROM delivery_logs WHERE tenant_id = $1)
	`, tenantID).Scan(
		&s.RecipientCount, &s.TemplateCount, &s.CandidateCount,
		&s.SentCount, &s.PendingCount, &s.LogCount,
	)
	if err != nil {
		return nil, fmt.Errorf("tenant summary: %w", err)
	}
	return s, nil
}
