package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/pkg/otp"
)

// VerificationRepo keeps every issued code as a row. The partial unique index on
// (phone) WHERE consumed_at IS NULL plus a per-phone advisory lock serialize
// Issue and Consume for the same phone. Consumed rows stay as history.
type VerificationRepo struct {
	db *pgxpool.Pool
}

func NewVerificationRepo(db *pgxpool.Pool) *VerificationRepo {
	return &VerificationRepo{db: db}
}

const lockPhone = `SELECT pg_advisory_xact_lock(hashtext($1))`

func (r *VerificationRepo) Issue(ctx context.Context, rec *domain.VerificationRecord) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockPhone, rec.Phone); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM phone_verifications WHERE phone = $1 AND consumed_at IS NULL`,
			rec.Phone); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO phone_verifications (id, phone, code_hash, issued_at, expires_at, attempts, version)
			VALUES ($1, $2, $3, $4, $5, 0, 0)`,
			rec.ID, rec.Phone, rec.CodeHash, rec.IssuedAt, rec.ExpiresAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: issue: %w", domain.ErrStorePersistence, err)
	}
	rec.Attempts = 0
	rec.ConsumedAt = nil
	return nil
}

func (r *VerificationRepo) Consume(ctx context.Context, phone, code string, now time.Time, maxAttempts int) (domain.ConsumeResult, error) {
	var result domain.ConsumeResult
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockPhone, phone); err != nil {
			return err
		}
		var rec domain.VerificationRecord
		err := tx.QueryRow(ctx, `
			SELECT id, phone, code_hash, issued_at, expires_at, attempts, version
			FROM phone_verifications
			WHERE phone = $1 AND consumed_at IS NULL
			FOR UPDATE`, phone).
			Scan(&rec.ID, &rec.Phone, &rec.CodeHash, &rec.IssuedAt, &rec.ExpiresAt, &rec.Attempts, &rec.Version)
		if errors.Is(err, pgx.ErrNoRows) {
			result = domain.ConsumeNotFound
			return nil
		}
		if err != nil {
			return err
		}

		result = rec.Evaluate(now, maxAttempts, func(hash string) bool { return otp.Matches(hash, code) })
		switch result {
		case domain.ConsumeMismatch:
			_, err = tx.Exec(ctx,
				`UPDATE phone_verifications SET attempts = attempts + 1, version = version + 1 WHERE id = $1`,
				rec.ID)
		case domain.ConsumeAccepted:
			_, err = tx.Exec(ctx,
				`UPDATE phone_verifications SET consumed_at = $2, version = version + 1 WHERE id = $1`,
				rec.ID, now)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: consume: %w", domain.ErrStorePersistence, err)
	}
	return result, nil
}

func (r *VerificationRepo) Clear(ctx context.Context, phones []string) (int, error) {
	if len(phones) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM phone_verifications WHERE phone = ANY($1)`, phones)
	if err != nil {
		return 0, fmt.Errorf("%w: clear: %w", domain.ErrStorePersistence, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *VerificationRepo) ClearAll(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM phone_verifications`)
	if err != nil {
		return 0, fmt.Errorf("%w: clear all: %w", domain.ErrStorePersistence, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *VerificationRepo) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM phone_verifications WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %w", domain.ErrStorePersistence, err)
	}
	return int(tag.RowsAffected()), nil
}
