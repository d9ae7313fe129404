package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailspool/internal/domain"
)

// Queue materializes send candidates and exposes immediate-send control.
type Queue struct {
	repo Repository
	now  func() time.Time
}

// NewQueue creates a queue over the given repository.
func NewQueue(repo Repository) *Queue {
	return &Queue{repo: repo, now: time.Now}
}

// SetClock overrides the time source.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// QueueCampaign materializes one unsent candidate per recipient for the
// campaign, all scheduled at the campaign's scheduled time. Each candidate
// gets a fresh tracking token.
func (q *Queue) QueueCampaign(ctx context.Context, campaign *domain.Campaign, recipientIDs []string) ([]domain.SendCandidate, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}

	now := q.now()
	candidates := make([]domain.SendCandidate, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		candidates = append(candidates, domain.SendCandidate{
			ID:            uuid.NewString(),
			TenantID:      campaign.TenantID,
			RecipientID:   rid,
			TemplateID:    campaign.TemplateID,
			CampaignID:    &campaign.ID,
			ScheduledAt:   campaign.ScheduledAt,
			TrackingToken: uuid.NewString(),
			CreatedAt:     now,
		})
	}

	if err := q.repo.CreateCandidates(ctx, candidates); err != nil {
		return nil, fmt.Errorf("queue campaign %s: %w", campaign.ID, err)
	}

	log.Printf("[Queue] campaign %s: queued %d candidates for %s",
		campaign.ID, len(candidates), campaign.ScheduledAt.Format(time.RFC3339))
	return candidates, nil
}

// QueueSingle materializes one candidate outside any campaign, scheduled
// at the given time.
func (q *Queue) QueueSingle(ctx context.Context, tenantID, recipientID, templateID string, at time.Time) (*domain.SendCandidate, error) {
	candidate := domain.SendCandidate{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		RecipientID:   recipientID,
		TemplateID:    templateID,
		ScheduledAt:   at,
		TrackingToken: uuid.NewString(),
		CreatedAt:     q.now(),
	}

	if err := q.repo.CreateCandidates(ctx, []domain.SendCandidate{candidate}); err != nil {
		return nil, fmt.Errorf("queue single send: %w", err)
	}
	return &candidate, nil
}

// SendNow pulls an unsent candidate's scheduled time up to the present so
// the next scheduler invocation picks it up. Returns ErrAlreadySent if the
// candidate has already been dispatched.
func (q *Queue) SendNow(ctx context.Context, tenantID, candidateID string) error {
	candidate, err := q.repo.Candidate(ctx, tenantID, candidateID)
	if err != nil {
		return err
	}
	if candidate.Sent {
		return ErrAlreadySent
	}
	return q.repo.Reschedule(ctx, tenantID, candidateID, q.now())
}
