package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// Store groups the repositories the auth core works with. Every operation of
// the core runs inside WithinTx; implementations must serialize transactions
// touching the same account.
type Store interface {
	Accounts() AccountRepository
	Codes() OneTimeCodeRepository
	Sessions() SessionRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type postgresStore struct {
	db *sql.DB // nil once bound to a transaction
	q  DBTX
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) Accounts() AccountRepository { return NewAccountRepository(s.q) }
func (s *postgresStore) Codes() OneTimeCodeRepository { return NewOneTimeCodeRepository(s.q) }
func (s *postgresStore) Sessions() SessionRepository { return NewSessionRepository(s.q) }

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.db == nil {
		// already inside a transaction
		return fn(ctx, s)
	}
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, q DBTX) error {
		return fn(ctx, &postgresStore{q: q})
	})
	if err != nil {
		return fmt.Errorf("store tx: %w", err)
	}
	return nil
}
