package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/pkg/id"
	"github.com/phone-verify/internal/pkg/otp"
)

const testPhone = "+201012345678"

// newTestPool connects to TEST_DATABASE_URL and resets the tables; the tests
// are skipped when it is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE phone_verifications, users`)
	require.NoError(t, err)
	return pool
}

func newRecord(t *testing.T, code string, issued time.Time) *domain.VerificationRecord {
	t.Helper()
	h, err := otp.Hash(code, bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.VerificationRecord{
		ID:        id.At(issued),
		Phone:     testPhone,
		CodeHash:  h,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(10 * time.Minute),
	}
}

func TestVerificationRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepo(newTestPool(t))
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Issue(ctx, newRecord(t, "111111", now)))
	require.NoError(t, repo.Issue(ctx, newRecord(t, "222222", now)))

	res, err := repo.Consume(ctx, testPhone, "111111", now, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeMismatch, res)

	res, err = repo.Consume(ctx, testPhone, "222222", now, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeAccepted, res)

	res, err = repo.Consume(ctx, testPhone, "222222", now, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeNotFound, res)

	res, err = repo.Consume(ctx, "+14155550100", "222222", now, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeNotFound, res)
}

func TestVerificationRepo_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepo(newTestPool(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Issue(ctx, newRecord(t, "123456", now.Add(-time.Hour))))

	res, err := repo.Consume(ctx, testPhone, "123456", now, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeExpired, res)

	n, err := repo.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerificationRepo_ConcurrentIssueKeepsOneOpenRow(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewVerificationRepo(pool)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		rec := newRecord(t, "123456", now)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Issue(ctx, rec)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var open int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM phone_verifications WHERE phone = $1 AND consumed_at IS NULL`, testPhone).Scan(&open))
	assert.Equal(t, 1, open)
}

func TestVerificationRepo_Clear(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepo(newTestPool(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Issue(ctx, newRecord(t, "123456", now)))

	n, err := repo.Clear(ctx, []string{"01012345678", testPhone})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUserRepo_Get(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	_, err := pool.Exec(ctx, `INSERT INTO users (user_id, role, is_active) VALUES ('u1', 'user', FALSE)`)
	require.NoError(t, err)

	repo := NewUserRepo(pool)
	u, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.Nil(t, u.Phone)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
