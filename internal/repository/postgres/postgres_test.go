package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailspool/internal/dispatch"
	"github.com/ignite/mailspool/internal/domain"
	"github.com/ignite/mailspool/internal/ingest"
	"github.com/ignite/mailspool/internal/stats"
	"github.com/ignite/mailspool/internal/tenant"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() { db.Close() }
}

var repoClock = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestDispatchRepoTenantsWithDueCandidates(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT DISTINCT tenant_id").
		WithArgs(repoClock).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("acme").AddRow("globex"))

	tenants, err := NewDispatchRepo(db).TenantsWithDueCandidates(context.Background(), repoClock)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, tenants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepoCountSentEvents(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	since := repoClock.Add(-time.Hour)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("acme", since, repoClock).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := NewDispatchRepo(db).CountSentEvents(context.Background(), "acme", since, repoClock)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepoMarkSent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE send_candidates SET sent = true").
		WithArgs("c1", repoClock).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDispatchRepo(db).MarkSent(context.Background(), "c1", repoClock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepoMarkSentAlreadySent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE send_candidates SET sent = true").
		WithArgs("c1", repoClock).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewDispatchRepo(db).MarkSent(context.Background(), "c1", repoClock)
	assert.ErrorIs(t, err, dispatch.ErrNotFound)
}

func TestDispatchRepoTenantProfileMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT tenant_id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := NewDispatchRepo(db).TenantProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, dispatch.ErrNoProfile)
}

func TestDispatchRepoRescheduleSentCandidate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE send_candidates SET scheduled_at").
		WithArgs("c1", "acme", repoClock).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewDispatchRepo(db).Reschedule(context.Background(), "acme", "c1", repoClock)
	assert.ErrorIs(t, err, dispatch.ErrNotFound)
}

func TestDispatchRepoAppendEventEncodesMeta(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO delivery_events").
		WithArgs(sqlmock.AnyArg(), "c1", "opened", repoClock, "10.0.0.1", "Mozilla",
			[]byte(`{"first_open":true}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := NewDispatchRepo(db).AppendEvent(context.Background(), &domain.DeliveryEvent{
		CandidateID: "c1",
		Kind:        domain.EventOpened,
		OccurredAt:  repoClock,
		IPAddress:   "10.0.0.1",
		UserAgent:   "Mozilla",
		Meta:        domain.OpenedMeta{FirstOpen: true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRepoCandidateByTokenMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM send_candidates").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := NewIngestRepo(db).CandidateByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ingest.ErrUnknownToken)
}

func TestIngestRepoHasEvent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("c1", domain.EventOpened).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewIngestRepo(db).HasEvent(context.Background(), "c1", domain.EventOpened)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngestRepoLatestSentCandidateMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("JOIN recipients").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := NewIngestRepo(db).LatestSentCandidateByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ingest.ErrUnknownRecipient)
}

func TestStatsRepoStatisticsMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM campaign_statistics").
		WithArgs("camp-1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewStatsRepo(db).Statistics(context.Background(), "camp-1")
	assert.ErrorIs(t, err, stats.ErrNoStatistics)
}

func TestTenantRepoSaveProfile(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	p := &domain.TenantProfile{
		TenantID:    "acme",
		RelayHost:   "smtp.mailrelay.example",
		RelayPort:   587,
		Encryption:  domain.EncryptionSTARTTLS,
		FromAddress: "news@acme.example",
		HourlyCap:   100,
		CreatedAt:   repoClock,
		UpdatedAt:   repoClock,
	}

	mock.ExpectExec("INSERT INTO tenant_profiles").
		WithArgs("acme", "smtp.mailrelay.example", 587, "", "",
			domain.EncryptionSTARTTLS, false, "news@acme.example", 100, repoClock, repoClock).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewTenantRepo(db).SaveProfile(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepoProfileMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT tenant_id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := NewTenantRepo(db).Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, tenant.ErrNoProfile)
}

func TestDispatchRepoCreateCandidates(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO send_candidates")
	mock.ExpectExec("INSERT INTO send_candidates").
		WithArgs("c1", "acme", "r1", "tpl-1", nil, repoClock, "tok-1", repoClock).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewDispatchRepo(db).CreateCandidates(context.Background(), []domain.SendCandidate{{
		ID:            "c1",
		TenantID:      "acme",
		RecipientID:   "r1",
		TemplateID:    "tpl-1",
		ScheduledAt:   repoClock,
		TrackingToken: "tok-1",
		CreatedAt:     repoClock,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
