package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailspool/internal/domain"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu         sync.Mutex
	byToken    map[string]*domain.SendCandidate
	candidates map[string]*domain.SendCandidate
	events     []domain.DeliveryEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		byToken:    make(map[string]*domain.SendCandidate),
		candidates: make(map[string]*domain.SendCandidate),
	}
}

func (r *memRepo) add(c *domain.SendCandidate) {
	r.byToken[c.TrackingToken] = c
	r.candidates[c.ID] = c
}

func (r *memRepo) CandidateByToken(_ context.Context, token string) (*domain.SendCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byToken[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	return c, nil
}

func (r *memRepo) LatestSentCandidateByEmail(_ context.Context, email string) (*domain.SendCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.SendCandidate
	for _, c := range r.candidates {
		if !c.Sent || c.SentAt == nil {
			continue
		}
		if r.emailOf(c) != email {
			continue
		}
		if latest == nil || c.SentAt.After(*latest.SentAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrUnknownRecipient
	}
	return latest, nil
}

// emailOf maps candidates to addresses via RecipientID ("rcpt:<email>") to
// keep the fixture flat.
func (r *memRepo) emailOf(c *domain.SendCandidate) string {
	return c.RecipientID[len("rcpt:"):]
}

func (r *memRepo) HasEvent(_ context.Context, candidateID string, kind domain.EventKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.CandidateID == candidateID && e.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) AppendEvent(_ context.Context, event *domain.DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

var ingestClock = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func sentCandidate(id, email, token string, sentAt time.Time) *domain.SendCandidate {
	return &domain.SendCandidate{
		ID:            id,
		TenantID:      "acme",
		RecipientID:   "rcpt:" + email,
		TemplateID:    "tpl-1",
		Sent:          true,
		SentAt:        &sentAt,
		TrackingToken: token,
	}
}

func newTestIngestor(repo *memRepo) *Ingestor {
	i := NewIngestor(repo)
	i.SetClock(func() time.Time { return ingestClock })
	return i
}

func TestRecordOpenFlagsFirstOpen(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordOpen(context.Background(), "tok-1", "10.0.0.1", "Mozilla"))
	require.NoError(t, ing.RecordOpen(context.Background(), "tok-1", "10.0.0.1", "Mozilla"))

	require.Len(t, repo.events, 2)
	first := repo.events[0].Meta.(domain.OpenedMeta)
	second := repo.events[1].Meta.(domain.OpenedMeta)
	assert.True(t, first.FirstOpen)
	assert.False(t, second.FirstOpen)
	assert.Equal(t, "10.0.0.1", repo.events[0].IPAddress)
	assert.Equal(t, "Mozilla", repo.events[0].UserAgent)
}

func TestRecordOpenUnknownToken(t *testing.T) {
	ing := newTestIngestor(newMemRepo())
	err := ing.RecordOpen(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestRecordClick(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordClick(context.Background(), "tok-1", "https://shop.example.com/", "10.0.0.1", "Mozilla"))

	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventClicked, repo.events[0].Kind)
	meta := repo.events[0].Meta.(domain.ClickedMeta)
	assert.Equal(t, "https://shop.example.com/", meta.URL)
}

func TestRecordBounceCoercesUnknownKinds(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "transient-weirdness", "hard", "550 no such user", nil))

	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventBounced, repo.events[0].Kind)
	meta := repo.events[0].Meta.(domain.BouncedMeta)
	assert.Equal(t, "hard", meta.BounceType)
	assert.Equal(t, "550 no such user", meta.Reason)
}

func TestRecordBounceKeepsReportedBounceType(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "bounced", "soft", "452 mailbox full", nil))

	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventBounced, repo.events[0].Kind)
	meta := repo.events[0].Meta.(domain.BouncedMeta)
	assert.Equal(t, "soft", meta.BounceType, "the payload bounce_type survives alongside the event name")
}

func TestRecordBounceKindFallsBackToBounceType(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "", "complaint", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventComplained, repo.events[0].Kind)
}

func TestRecordBounceComplaintKeepsKind(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "complained", "", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventComplained, repo.events[0].Kind)
}

func TestRecordBounceFailureKeepsKind(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "failed", "", "connection refused", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventFailed, repo.events[0].Kind)
	meta := repo.events[0].Meta.(domain.FailedMeta)
	assert.Equal(t, "connection refused", meta.Error)
}

func TestRecordBouncePrefersTrackingToken(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("old", "jane@example.com", "tok-old", ingestClock.Add(-48*time.Hour)))
	repo.add(sentCandidate("new", "jane@example.com", "tok-new", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "tok-old", "jane@example.com", "bounced", "hard", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "old", repo.events[0].CandidateID)
}

func TestRecordBounceTokenWithoutEmail(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "tok-1", "", "bounced", "hard", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "c1", repo.events[0].CandidateID)
}

func TestRecordBounceUnknownTokenFallsBackToEmail(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "tok-missing", "jane@example.com", "bounced", "hard", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "c1", repo.events[0].CandidateID)
}

func TestRecordBounceTargetsLatestSend(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("old", "jane@example.com", "tok-old", ingestClock.Add(-48*time.Hour)))
	repo.add(sentCandidate("new", "jane@example.com", "tok-new", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	require.NoError(t, ing.RecordBounce(context.Background(), "", "jane@example.com", "bounced", "hard", "", nil))
	require.Len(t, repo.events, 1)
	assert.Equal(t, "new", repo.events[0].CandidateID)
}

func TestRecordBounceUnknownRecipient(t *testing.T) {
	ing := newTestIngestor(newMemRepo())
	err := ing.RecordBounce(context.Background(), "", "ghost@example.com", "bounced", "hard", "", nil)
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}

func TestRecordDeliveryIdempotent(t *testing.T) {
	repo := newMemRepo()
	repo.add(sentCandidate("c1", "jane@example.com", "tok-1", ingestClock.Add(-time.Hour)))
	ing := newTestIngestor(repo)

	raw := json.RawMessage(`{"email":"jane@example.com"}`)
	recorded, err := ing.RecordDelivery(context.Background(), "", "jane@example.com", raw)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = ing.RecordDelivery(context.Background(), "", "jane@example.com", raw)
	require.NoError(t, err)
	assert.False(t, recorded)

	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventDelivered, repo.events[0].Kind)
}

func TestRecordDeliveryUnsentCandidateIgnored(t *testing.T) {
	repo := newMemRepo()
	c := sentCandidate("c1", "jane@example.com", "tok-1", ingestClock)
	c.Sent = false
	c.SentAt = nil
	repo.add(c)
	ing := newTestIngestor(repo)

	_, err := ing.RecordDelivery(context.Background(), "", "jane@example.com", nil)
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}
