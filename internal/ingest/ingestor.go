package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/pkg/logger"
)

// Ingestor translates raw tracking hits and webhook payloads into delivery
// events.
type Ingestor struct {
	repo Repository
	now  func() time.Time
}

// NewIngestor creates an ingestor over the given repository.
func NewIngestor(repo Repository) *Ingestor {
	return &Ingestor{repo: repo, now: time.Now}
}

// SetClock overrides the time source.
func (i *Ingestor) SetClock(now func() time.Time) { i.now = now }

// RecordOpen records an "opened" event for the candidate behind token.
// Every open is recorded; the first one is flagged so the aggregator can
// count unique opens without scanning history.
func (i *Ingestor) RecordOpen(ctx context.Context, token, ip, userAgent string) error {
	candidate, err := i.repo.CandidateByToken(ctx, token)
	if err != nil {
		return err
	}

	opened, err := i.repo.HasEvent(ctx, candidate.ID, domain.EventOpened)
	if err != nil {
		return err
	}

	return i.repo.AppendEvent(ctx, &domain.DeliveryEvent{
		CandidateID: candidate.ID,
		Kind:        domain.EventOpened,
		OccurredAt:  i.now(),
		IPAddress:   ip,
		UserAgent:   userAgent,
		Meta:        domain.OpenedMeta{FirstOpen: !opened},
	})
}

// RecordClick records a "clicked" event with the destination URL.
func (i *Ingestor) RecordClick(ctx context.Context, token, url, ip, userAgent string) error {
	candidate, err := i.repo.CandidateByToken(ctx, token)
	if err != nil {
		return err
	}

	return i.repo.AppendEvent(ctx, &domain.DeliveryEvent{
		CandidateID: candidate.ID,
		Kind:        domain.EventClicked,
		OccurredAt:  i.now(),
		IPAddress:   ip,
		UserAgent:   userAgent,
		Meta:        domain.ClickedMeta{URL: url},
	})
}

// RecordBounce records provider bounce feedback. The candidate is resolved
// by tracking token when the payload carries one, falling back to the most
// recently sent candidate for the address. The event kind comes from the
// payload's event name (bounce_type when no event name is given); complaint
// and failure notifications keep their own kinds, every other name,
// including ones we have never seen, is coerced to "bounced" so providers
// inventing categories cannot poison the event log. The payload's
// bounce_type is stored on the event metadata as reported.
func (i *Ingestor) RecordBounce(ctx context.Context, token, email, event, bounceType, reason string, raw json.RawMessage) error {
	candidate, err := i.resolve(ctx, token, email)
	if err != nil {
		return err
	}

	name := event
	if name == "" {
		name = bounceType
	}

	var kind domain.EventKind
	switch name {
	case "complained", "complaint":
		kind = domain.EventComplained
	case "failed":
		kind = domain.EventFailed
	default:
		kind = domain.EventBounced
	}

	var meta domain.EventMeta = domain.BouncedMeta{
		BounceType: bounceType,
		Reason:     reason,
		Raw:        raw,
	}
	if kind == domain.EventFailed {
		meta = domain.FailedMeta{Error: reason}
	}

	logger.Info("feedback recorded", "kind", string(kind), "email", email, "reported_type", name)
	return i.repo.AppendEvent(ctx, &domain.DeliveryEvent{
		CandidateID: candidate.ID,
		Kind:        kind,
		OccurredAt:  i.now(),
		Meta:        meta,
	})
}

// resolve finds the candidate a webhook refers to: by tracking token when
// present, otherwise by the recipient address.
func (i *Ingestor) resolve(ctx context.Context, token, email string) (*domain.SendCandidate, error) {
	if token != "" {
		candidate, err := i.repo.CandidateByToken(ctx, token)
		if err == nil {
			return candidate, nil
		}
	}
	return i.repo.LatestSentCandidateByEmail(ctx, email)
}

// RecordDelivery records a "delivered" confirmation, resolving the candidate
// the same way RecordBounce does. Providers retry webhooks, so a candidate
// that is already marked delivered is left untouched and the call reports
// false.
func (i *Ingestor) RecordDelivery(ctx context.Context, token, email string, raw json.RawMessage) (bool, error) {
	candidate, err := i.resolve(ctx, token, email)
	if err != nil {
		return false, err
	}

	delivered, err := i.repo.HasEvent(ctx, candidate.ID, domain.EventDelivered)
	if err != nil {
		return false, err
	}
	if delivered {
		return false, nil
	}

	err = i.repo.AppendEvent(ctx, &domain.DeliveryEvent{
		CandidateID: candidate.ID,
		Kind:        domain.EventDelivered,
		OccurredAt:  i.now(),
		Meta:        domain.DeliveredMeta{Raw: raw},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
