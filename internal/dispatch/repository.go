package dispatch

import (
	"context"
	"time"

	"github.com/ignite/mailspool/internal/domain"
)

// CandidateDetail is a due candidate joined with everything needed to
// compose and address its message.
type CandidateDetail struct {
	Candidate domain.SendCandidate
	Recipient domain.Recipient
	Template  domain.Template
}

// Repository defines the data access contract for the dispatch engine.
// Implementations must be safe for concurrent use; every query is scoped
// by tenant.
type Repository interface {
	// TenantProfile returns the tenant's profile. Returns ErrNoProfile if
	// the tenant has none.
	TenantProfile(ctx context.Context, tenantID string) (*domain.TenantProfile, error)

	// TenantsWithDueCandidates returns the distinct tenants that have at
	// least one unsent candidate scheduled at or before now.
	TenantsWithDueCandidates(ctx context.Context, now time.Time) ([]string, error)

	// DueCandidates returns up to limit unsent, due candidates for the
	// tenant, ordered by ascending scheduled time.
	DueCandidates(ctx context.Context, tenantID string, now time.Time, limit int) ([]CandidateDetail, error)

	// CountSentEvents counts "sent" delivery events for the tenant in the
	// half-open window (since, until].
	CountSentEvents(ctx context.Context, tenantID string, since, until time.Time) (int, error)

	// MarkSent flips the candidate's sent flag and records the send time.
	MarkSent(ctx context.Context, candidateID string, at time.Time) error

	// AppendLog inserts an append-only delivery log row.
	AppendLog(ctx context.Context, entry *domain.DeliveryLog) error

	// AppendEvent inserts an append-only delivery event.
	AppendEvent(ctx context.Context, event *domain.DeliveryEvent) error

	// CreateCandidates inserts freshly materialized candidates.
	CreateCandidates(ctx context.Context, candidates []domain.SendCandidate) error

	// Candidate returns one candidate. Returns ErrNotFound if it doesn't
	// exist within the tenant's scope.
	Candidate(ctx context.Context, tenantID, id string) (*domain.SendCandidate, error)

	// Reschedule moves an unsent candidate's scheduled time.
	Reschedule(ctx context.Context, tenantID, id string, at time.Time) error
}
