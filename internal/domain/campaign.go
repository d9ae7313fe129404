package domain

import "time"

// Campaign ties a template to a set of recipients with a scheduled dispatch
// time. Recipients are materialized into SendCandidates when the campaign
// is created; the campaign row itself is never consulted by the scheduler.
type Campaign struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	TemplateID  string    `json:"template_id" db:"template_id"`
	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SendCandidate is one queued message instance: a (recipient, template)
// pair waiting to be dispatched. The tracking token is generated once at
// creation and never changes; it is the only correlation between outbound
// tracking requests and this row.
type SendCandidate struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	RecipientID   string     `json:"recipient_id" db:"recipient_id"`
	TemplateID    string     `json:"template_id" db:"template_id"`
	CampaignID    *string    `json:"campaign_id" db:"campaign_id"`
	ScheduledAt   time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Sent          bool       `json:"sent" db:"sent"`
	SentAt        *time.Time `json:"sent_at" db:"sent_at"`
	TrackingToken string     `json:"tracking_token" db:"tracking_token"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Due reports whether the candidate is eligible for dispatch at time t.
func (c *SendCandidate) Due(t time.Time) bool {
	return !c.Sent && !c.ScheduledAt.After(t)
}
