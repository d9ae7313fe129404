package ingest

import (
	"context"

	"github.com/ignite/mailspool/internal/domain"
)

// Repository defines the data access contract for event ingestion.
type Repository interface {
	// CandidateByToken resolves a tracking token to its candidate.
	// Returns ErrUnknownToken if no candidate carries the token.
	CandidateByToken(ctx context.Context, token string) (*domain.SendCandidate, error)

	// LatestSentCandidateByEmail returns the most recently sent candidate
	// addressed to email, across all tenants. Returns ErrUnknownRecipient
	// if the address has never been sent to.
	LatestSentCandidateByEmail(ctx context.Context, email string) (*domain.SendCandidate, error)

	// HasEvent reports whether at least one event of the given kind exists
	// for the candidate.
	HasEvent(ctx context.Context, candidateID string, kind domain.EventKind) (bool, error)

	// AppendEvent inserts an append-only delivery event.
	AppendEvent(ctx context.Context, event *domain.DeliveryEvent) error
}
