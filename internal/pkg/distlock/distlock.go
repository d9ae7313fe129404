package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a cluster-wide mutual exclusion primitive. Instances are not
// safe for concurrent use; give each goroutine its own lock value.
type DistLock interface {
	// Acquire tries to take the lock without blocking. Returns true when
	// this instance now holds it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
	// Extend pushes the expiry of a held lock out by ttl. Backends whose
	// locks do not expire treat this as a no-op.
	Extend(ctx context.Context, ttl time.Duration) error
}

// NewLock picks a backend: Redis when a client is available (works across
// hosts), otherwise PostgreSQL advisory locks on the shared database.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock over pg_try_advisory_lock. Advisory
// locks are session-scoped, so a crashed holder releases the lock when its
// connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic 64-bit lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries pg_try_advisory_lock, which never blocks.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release unlocks via pg_advisory_unlock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// Extend is a no-op: advisory locks live as long as the session and have no
// expiry to push out.
func (l *PGAdvisoryLock) Extend(context.Context, time.Duration) error {
	return nil
}
