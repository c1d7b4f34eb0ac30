package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hospitalrecords/internal/models"
)

type SessionRepository interface {
	// Save inserts the session when ID is zero, otherwise persists
	// active/last_activity_at.
	Save(ctx context.Context, session *models.Session) (*models.Session, error)
	// FindActiveByToken returns nil, nil when no active session holds the token.
	FindActiveByToken(ctx context.Context, token string) (*models.Session, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Session, error)
}

type sessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Save(ctx context.Context, session *models.Session) (*models.Session, error) {
	saved := *session
	if saved.ID == 0 {
		const q = `
			INSERT INTO sessions (account_id, token, created_at, expires_at, origin_address, active, last_activity_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err := r.db.QueryRowContext(ctx, q,
			saved.AccountID, saved.Token, saved.CreatedAt, saved.ExpiresAt,
			saved.OriginAddress, saved.Active, saved.LastActivityAt,
		).Scan(&saved.ID)
		if err != nil {
			return nil, fmt.Errorf("session create: %w", err)
		}
		return &saved, nil
	}

	const q = `
		UPDATE sessions
		SET active = $2, last_activity_at = $3
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, q, saved.ID, saved.Active, saved.LastActivityAt); err != nil {
		return nil, fmt.Errorf("session update id=%d: %w", saved.ID, err)
	}
	return &saved, nil
}

func (r *sessionRepository) FindActiveByToken(ctx context.Context, token string) (*models.Session, error) {
	const q = `
		SELECT id, account_id, token, created_at, expires_at, origin_address, active, last_activity_at
		FROM sessions
		WHERE token = $1 AND active = TRUE
		FOR UPDATE
	`
	var s models.Session
	err := r.db.QueryRowContext(ctx, q, token).Scan(
		&s.ID, &s.AccountID, &s.Token, &s.CreatedAt, &s.ExpiresAt, &s.OriginAddress, &s.Active, &s.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session by token: %w", err)
	}
	return &s, nil
}

func (r *sessionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, account_id, token, created_at, expires_at, origin_address, active, last_activity_at
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(
			&s.ID, &s.AccountID, &s.Token, &s.CreatedAt, &s.ExpiresAt, &s.OriginAddress, &s.Active, &s.LastActivityAt,
		); err != nil {
			return nil, fmt.Errorf("session list scan: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session list rows: %w", err)
	}
	return out, nil
}
