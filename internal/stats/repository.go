package stats

import (
	"context"

	"github.com/ignite/mailspool/internal/domain"
)

// Repository defines the data access contract for the aggregator.
type Repository interface {
	// CandidatesByCampaign returns every candidate materialized for the
	// campaign, sent or not.
	CandidatesByCampaign(ctx context.Context, campaignID string) ([]domain.SendCandidate, error)

	// EventsByCampaign returns every delivery event belonging to the
	// campaign's candidates.
	EventsByCampaign(ctx context.Context, campaignID string) ([]domain.DeliveryEvent, error)

	// SaveStatistics upserts the campaign's statistics row.
	SaveStatistics(ctx context.Context, stats *domain.CampaignStatistics) error

	// Statistics returns the stored statistics row, or ErrNoStatistics if
	// the campaign has never been aggregated.
	Statistics(ctx context.Context, campaignID string) (*domain.CampaignStatistics, error)
}
