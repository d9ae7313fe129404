package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ignite/mailspool/internal/domain"
)

// ErrNoStatistics is returned when a campaign has never been aggregated.
var ErrNoStatistics = errors.New("no statistics for campaign")

// Aggregator rebuilds campaign statistics from the event log.
type Aggregator struct {
	repo Repository
	now  func() time.Time
}

// NewAggregator creates an aggregator over the given repository.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// SetClock overrides the time source.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// Recompute rebuilds the campaign's statistics row from scratch and stores
// it. The returned snapshot is the row as written.
func (a *Aggregator) Recompute(ctx context.Context, campaignID string) (*domain.CampaignStatistics, error) {
	candidates, err := a.repo.CandidatesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load candidates for campaign %s: %w", campaignID, err)
	}
	events, err := a.repo.EventsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load events for campaign %s: %w", campaignID, err)
	}

	stats := tally(campaignID, candidates, events)
	stats.UpdatedAt = a.now()

	if err := a.repo.SaveStatistics(ctx, stats); err != nil {
		return nil, fmt.Errorf("save statistics for campaign %s: %w", campaignID, err)
	}

	log.Printf("[Stats] campaign %s: recipients=%d sent=%d delivered=%d opens=%d/%d clicks=%d/%d",
		campaignID, stats.TotalRecipients, stats.SentCount, stats.DeliveredCount,
		stats.UniqueOpens, stats.OpenedCount, stats.UniqueClicks, stats.ClickedCount)
	return stats, nil
}

// Statistics returns the stored row without recomputing.
func (a *Aggregator) Statistics(ctx context.Context, campaignID string) (*domain.CampaignStatistics, error) {
	return a.repo.Statistics(ctx, campaignID)
}

// tally folds candidates and events into a statistics row. Every per-kind
// count is sourced from the event log: opened and clicked counts are raw
// event counts, everything else is distinct candidates with at least one
// event of that kind. Candidates only contribute the recipient total.
func tally(campaignID string, candidates []domain.SendCandidate, events []domain.DeliveryEvent) *domain.CampaignStatistics {
	stats := &domain.CampaignStatistics{
		CampaignID:      campaignID,
		TotalRecipients: len(candidates),
	}

	distinct := map[domain.EventKind]map[string]bool{
		domain.EventSent:       {},
		domain.EventDelivered:  {},
		domain.EventOpened:     {},
		domain.EventClicked:    {},
		domain.EventBounced:    {},
		domain.EventFailed:     {},
		domain.EventComplained: {},
	}
	for _, e := range events {
		switch e.Kind {
		case domain.EventOpened:
			stats.OpenedCount++
		case domain.EventClicked:
			stats.ClickedCount++
		}
		if seen, ok := distinct[e.Kind]; ok {
			seen[e.CandidateID] = true
		}
	}

	stats.SentCount = len(distinct[domain.EventSent])
	stats.DeliveredCount = len(distinct[domain.EventDelivered])
	stats.UniqueOpens = len(distinct[domain.EventOpened])
	stats.UniqueClicks = len(distinct[domain.EventClicked])
	stats.BouncedCount = len(distinct[domain.EventBounced])
	stats.FailedCount = len(distinct[domain.EventFailed])
	stats.ComplainedCount = len(distinct[domain.EventComplained])
	stats.RecomputeRates()
	return stats
}
