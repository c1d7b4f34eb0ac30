package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hospitalrecords/internal/models"
)

type OneTimeCodeRepository interface {
	// InvalidateOutstanding retires every unused code of the account and
	// reports how many were retired.
	InvalidateOutstanding(ctx context.Context, accountID int64) (int64, error)
	// Save inserts the code when ID is zero, otherwise persists used/attempts.
	Save(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error)
	// FindNewestValid returns the newest unused code of the account, or nil.
	// Expiry is left to the caller so it can report it.
	FindNewestValid(ctx context.Context, accountID int64) (*models.OneTimeCode, error)
}

type oneTimeCodeRepository struct {
	db DBTX
}

func NewOneTimeCodeRepository(db DBTX) OneTimeCodeRepository {
	return &oneTimeCodeRepository{db: db}
}

func (r *oneTimeCodeRepository) InvalidateOutstanding(ctx context.Context, accountID int64) (int64, error) {
	const q = `
		UPDATE one_time_codes
		SET used = TRUE
		WHERE account_id = $1 AND used = FALSE
	`
	res, err := r.db.ExecContext(ctx, q, accountID)
	if err != nil {
		return 0, fmt.Errorf("one_time_code invalidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("one_time_code invalidate: %w", err)
	}
	return n, nil
}

func (r *oneTimeCodeRepository) Save(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	saved := *code
	if saved.ID == 0 {
		const q = `
			INSERT INTO one_time_codes (account_id, code_hash, created_at, expires_at, used, attempts)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err := r.db.QueryRowContext(ctx, q,
			saved.AccountID, saved.CodeHash, saved.CreatedAt, saved.ExpiresAt, saved.Used, saved.Attempts,
		).Scan(&saved.ID)
		if err != nil {
			return nil, fmt.Errorf("one_time_code create: %w", err)
		}
		return &saved, nil
	}

	const q = `
		UPDATE one_time_codes
		SET used = $2, attempts = $3
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, q, saved.ID, saved.Used, saved.Attempts); err != nil {
		return nil, fmt.Errorf("one_time_code update id=%d: %w", saved.ID, err)
	}
	return &saved, nil
}

func (r *oneTimeCodeRepository) FindNewestValid(ctx context.Context, accountID int64) (*models.OneTimeCode, error) {
	const q = `
		SELECT id, account_id, code_hash, created_at, expires_at, used, attempts
		FROM one_time_codes
		WHERE account_id = $1 AND used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`
	var c models.OneTimeCode
	err := r.db.QueryRowContext(ctx, q, accountID).Scan(
		&c.ID, &c.AccountID, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Used, &c.Attempts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("one_time_code newest: %w", err)
	}
	return &c, nil
}
