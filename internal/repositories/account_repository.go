package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hospitalrecords/internal/models"
)

var ErrUsernameTaken = errors.New("username already taken")

type AccountRepository interface {
	// FindByUsername returns nil, nil when no account matches.
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	// Save inserts the account when ID is zero and updates it otherwise.
	Save(ctx context.Context, account *models.Account) (*models.Account, error)
}

type accountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

// Reads lock the row until the surrounding transaction ends.
const accountColumns = `
	id, username, password_hash, first_name, last_name,
	COALESCE(email, ''), COALESCE(phone, ''), COALESCE(telegram_chat_id, 0),
	role, failed_attempts, locked, last_login_at, created_at, updated_at`

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	q := `SELECT` + accountColumns + `
		FROM accounts
		WHERE username = $1
		FOR UPDATE`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, username))
	if err != nil {
		return nil, fmt.Errorf("account by username: %w", err)
	}
	return a, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	q := `SELECT` + accountColumns + `
		FROM accounts
		WHERE id = $1
		FOR UPDATE`
	a, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("account by id: %w", err)
	}
	return a, nil
}

func (r *accountRepository) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	saved := *account
	if saved.ID == 0 {
		const q = `
			INSERT INTO accounts (
				username, password_hash, first_name, last_name,
				email, phone, telegram_chat_id,
				role, failed_attempts, locked, last_login_at
			)
			VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,0),$8,$9,$10,$11)
			RETURNING id, created_at, updated_at
		`
		err := r.db.QueryRowContext(ctx, q,
			saved.Username, saved.PasswordHash, saved.FirstName, saved.LastName,
			saved.Email, saved.Phone, saved.TelegramChatID,
			saved.Role, saved.FailedAttempts, saved.Locked, saved.LastLoginAt,
		).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return nil, ErrUsernameTaken
			}
			return nil, fmt.Errorf("account create: %w", err)
		}
		return &saved, nil
	}

	const q = `
		UPDATE accounts
		SET password_hash = $2,
			first_name = $3,
			last_name = $4,
			email = NULLIF($5,''),
			phone = NULLIF($6,''),
			telegram_chat_id = NULLIF($7,0),
			role = $8,
			failed_attempts = $9,
			locked = $10,
			last_login_at = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		saved.ID, saved.PasswordHash, saved.FirstName, saved.LastName,
		saved.Email, saved.Phone, saved.TelegramChatID,
		saved.Role, saved.FailedAttempts, saved.Locked, saved.LastLoginAt,
	).Scan(&saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("account update id=%d: %w", saved.ID, err)
	}
	return &saved, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a         models.Account
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.Email, &a.Phone, &a.TelegramChatID,
		&a.Role, &a.FailedAttempts, &a.Locked, &lastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}
