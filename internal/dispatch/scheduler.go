package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ignite/mailspool/internal/composer"
	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/transport"
)

// TransportFactory selects the transport for a tenant. The default is
// transport.ForProfile; tests inject fakes.
type TransportFactory func(p *domain.TenantProfile) (transport.Transport, error)

// RunStats summarizes one scheduler invocation.
type RunStats struct {
	Tenants int
	Sent    int
	Failed  int
	Skipped int // tenants skipped because their hourly quota was exhausted
}

// Scheduler selects due candidates per tenant, enforces the hourly
// throughput cap, and dispatches through the tenant's transport.
//
// A candidate only ever moves pending -> sent. A failed attempt leaves the
// candidate pending (only a log and an event record the failure) so it is
// reconsidered on the next invocation; there is no retry backoff.
type Scheduler struct {
	repo       Repository
	composer   *composer.Composer
	transports TransportFactory
	now        func() time.Time
}

// NewScheduler creates a scheduler. comp builds message bodies and tracking
// artifacts; the transport per tenant comes from transport.ForProfile.
func NewScheduler(repo Repository, comp *composer.Composer) *Scheduler {
	return &Scheduler{
		repo:       repo,
		composer:   comp,
		transports: transport.ForProfile,
		now:        time.Now,
	}
}

// SetTransportFactory overrides transport selection (tests, previews).
func (s *Scheduler) SetTransportFactory(f TransportFactory) { s.transports = f }

// SetClock overrides the time source.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run executes one dispatch invocation. Tenants are processed concurrently
// and independently; the returned stats aggregate across all of them. The
// caller must ensure invocations do not overlap.
func (s *Scheduler) Run(ctx context.Context) (RunStats, error) {
	now := s.now()

	tenants, err := s.repo.TenantsWithDueCandidates(ctx, now)
	if err != nil {
		return RunStats{}, err
	}

	var (
		mu    sync.Mutex
		stats RunStats
		wg    sync.WaitGroup
	)
	stats.Tenants = len(tenants)

	for _, tenantID := range tenants {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			sent, failed, skipped := s.runTenant(ctx, tenantID, now)
			mu.Lock()
			stats.Sent += sent
			stats.Failed += failed
			stats.Skipped += skipped
			mu.Unlock()
		}(tenantID)
	}
	wg.Wait()

	log.Printf("[Dispatch] run complete: tenants=%d sent=%d failed=%d skipped=%d",
		stats.Tenants, stats.Sent, stats.Failed, stats.Skipped)
	return stats, nil
}

// runTenant dispatches one tenant's due candidates under its remaining
// hourly quota. The quota is a point-in-time snapshot taken before the
// batch; it is not re-validated mid-batch.
func (s *Scheduler) runTenant(ctx context.Context, tenantID string, now time.Time) (sent, failed, skipped int) {
	profile, err := s.repo.TenantProfile(ctx, tenantID)
	if err != nil {
		log.Printf("[Dispatch] tenant %s: profile lookup failed: %v", tenantID, err)
		return 0, 0, 0
	}

	sentLastHour, err := s.repo.CountSentEvents(ctx, tenantID, now.Add(-time.Hour), now)
	if err != nil {
		log.Printf("[Dispatch] tenant %s: quota count failed: %v", tenantID, err)
		return 0, 0, 0
	}

	remaining := profile.HourlyCap - sentLastHour
	if remaining <= 0 {
		log.Printf("[Dispatch] tenant %s: hourly limit of %d reached, skipping", tenantID, profile.HourlyCap)
		return 0, 0, 1
	}

	candidates, err := s.repo.DueCandidates(ctx, tenantID, now, remaining)
	if err != nil {
		log.Printf("[Dispatch] tenant %s: candidate query failed: %v", tenantID, err)
		return 0, 0, 0
	}

	tr, trErr := s.transports(profile)
	for _, cd := range candidates {
		if trErr != nil {
			// Configuration failures are fatal to each send, not the batch.
			s.recordFailure(ctx, profile, &cd, now, trErr)
			failed++
			continue
		}
		if s.dispatchOne(ctx, profile, tr, &cd, now) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed, 0
}

// dispatchOne composes and sends a single candidate, recording the outcome
// as a DeliveryLog row plus a DeliveryEvent. Returns true on success.
func (s *Scheduler) dispatchOne(ctx context.Context, profile *domain.TenantProfile, tr transport.Transport, cd *CandidateDetail, now time.Time) bool {
	text, html, err := s.composer.Compose(&cd.Template, &cd.Recipient, cd.Candidate.TrackingToken)
	if err != nil {
		s.recordFailure(ctx, profile, cd, now, err)
		return false
	}

	msg := transport.BuildMIME(profile.FromAddress, []string{cd.Recipient.Email}, cd.Template.Subject, text, html)
	if _, err := tr.Send(ctx, profile.FromAddress, []string{cd.Recipient.Email}, msg); err != nil {
		s.recordFailure(ctx, profile, cd, now, err)
		return false
	}

	if err := s.repo.MarkSent(ctx, cd.Candidate.ID, now); err != nil {
		log.Printf("[Dispatch] mark sent %s: %v", cd.Candidate.ID, err)
	}
	s.appendLog(ctx, profile, cd, now, domain.StatusSent, "")
	s.appendEvent(ctx, cd, now, domain.EventSent, domain.SentMeta{Subject: cd.Template.Subject})

	log.Printf("[Dispatch] sent to %s (tenant %s)", cd.Recipient.Email, profile.TenantID)
	return true
}

func (s *Scheduler) recordFailure(ctx context.Context, profile *domain.TenantProfile, cd *CandidateDetail, now time.Time, cause error) {
	log.Printf("[Dispatch] send to %s failed (tenant %s): %v", cd.Recipient.Email, profile.TenantID, cause)
	s.appendLog(ctx, profile, cd, now, domain.StatusFailed, cause.Error())
	s.appendEvent(ctx, cd, now, domain.EventFailed, domain.FailedMeta{Error: cause.Error()})
}

func (s *Scheduler) appendLog(ctx context.Context, profile *domain.TenantProfile, cd *CandidateDetail, now time.Time, status domain.DeliveryStatus, errMsg string) {
	entry := &domain.DeliveryLog{
		TenantID:       profile.TenantID,
		RecipientEmail: cd.Recipient.Email,
		CampaignID:     cd.Candidate.CampaignID,
		Status:         status,
		ErrorMessage:   errMsg,
		SentAt:         now,
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		log.Printf("[Dispatch] append log for %s: %v", cd.Candidate.ID, err)
	}
}

func (s *Scheduler) appendEvent(ctx context.Context, cd *CandidateDetail, now time.Time, kind domain.EventKind, meta domain.EventMeta) {
	event := &domain.DeliveryEvent{
		CandidateID: cd.Candidate.ID,
		Kind:        kind,
		OccurredAt:  now,
		Meta:        meta,
	}
	if err := s.repo.AppendEvent(ctx, event); err != nil {
		log.Printf("[Dispatch] append %s event for %s: %v", kind, cd.Candidate.ID, err)
	}
}
