package domain

import (
	"math"
	"time"
)

// CampaignStatistics is the derived per-campaign rollup. It is entirely
// recomputable from the delivery event log; the stored row is just a cache.
//
// Count semantics:
//   - SentCount, DeliveredCount, BouncedCount, FailedCount, ComplainedCount
//     count distinct candidates with at least one event of that kind.
//   - OpenedCount and ClickedCount count event rows (repeat opens/clicks by
//     one recipient all count).
//   - UniqueOpens and UniqueClicks count distinct candidates.
type CampaignStatistics struct {
	CampaignID      string    `json:"campaign_id" db:"campaign_id"`
	TotalRecipients int       `json:"total_recipients" db:"total_recipients"`
	SentCount       int       `json:"sent_count" db:"sent_count"`
	DeliveredCount  int       `json:"delivered_count" db:"delivered_count"`
	OpenedCount     int       `json:"opened_count" db:"opened_count"`
	ClickedCount    int       `json:"clicked_count" db:"clicked_count"`
	UniqueOpens     int       `json:"unique_opens" db:"unique_opens"`
	UniqueClicks    int       `json:"unique_clicks" db:"unique_clicks"`
	BouncedCount    int       `json:"bounced_count" db:"bounced_count"`
	FailedCount     int       `json:"failed_count" db:"failed_count"`
	ComplainedCount int       `json:"complained_count" db:"complained_count"`
	DeliveryRate    float64   `json:"delivery_rate" db:"delivery_rate"`
	OpenRate        float64   `json:"open_rate" db:"open_rate"`
	ClickRate       float64   `json:"click_rate" db:"click_rate"`
	BounceRate      float64   `json:"bounce_rate" db:"bounce_rate"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// RecomputeRates recalculates the four percentage rates from the counts.
// Rates are 0 when their denominator is 0 and rounded to two decimal
// places, half-up.
func (s *CampaignStatistics) RecomputeRates() {
	s.DeliveryRate = Rate(s.DeliveredCount, s.SentCount)
	s.BounceRate = Rate(s.BouncedCount, s.SentCount)
	s.OpenRate = Rate(s.UniqueOpens, s.DeliveredCount)
	s.ClickRate = Rate(s.UniqueClicks, s.DeliveredCount)
}

// Rate returns num/den as a percentage rounded to two decimal places,
// half-up, or 0 when den is 0.
func Rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*100*100) / 100
}
