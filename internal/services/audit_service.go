package services

import (
	"context"
	"strings"
	"time"

	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/models"
	"hospitalrecords/internal/pdf"
	"hospitalrecords/internal/repositories"
)

const (
	DefaultSessionListLimit = 100
	MaxSessionListLimit     = DefaultSessionListLimit * 10
)

// AuditService serves the administrative read side of sessions.
type AuditService struct {
	store   repositories.Store
	reports pdf.Generator
	log     logging.Logger
	now     func() time.Time
}

func NewAuditService(store repositories.Store, reports pdf.Generator, log logging.Logger) *AuditService {
	return &AuditService{store: store, reports: reports, log: log, now: time.Now}
}

func (s *AuditService) account(ctx context.Context, tx repositories.Store, accountID int64) (*models.Account, error) {
	a, err := tx.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// ListSessions returns the newest sessions of an account, active or not.
func (s *AuditService) ListSessions(ctx context.Context, accountID int64, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = DefaultSessionListLimit
	}
	limit = min(limit, MaxSessionListLimit)
	var out []*models.Session
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if _, err := s.account(ctx, tx, accountID); err != nil {
			return err
		}
		var err error
		out, err = tx.Sessions().ListByAccount(ctx, accountID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SessionReport renders the account's session history to a PDF and returns
// the file path.
func (s *AuditService) SessionReport(ctx context.Context, accountID int64) (string, error) {
	var (
		a        *models.Account
		sessions []*models.Session
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		if a, err = s.account(ctx, tx, accountID); err != nil {
			return err
		}
		sessions, err = tx.Sessions().ListByAccount(ctx, accountID, DefaultSessionListLimit)
		return err
	})
	if err != nil {
		return "", err
	}

	data := pdf.SessionReportData{
		AccountID:      a.ID,
		Username:       a.Username,
		FullName:       strings.TrimSpace(a.FirstName + " " + a.LastName),
		Role:           a.Role,
		Locked:         a.Locked,
		FailedAttempts: a.FailedAttempts,
		LastLoginAt:    a.LastLoginAt,
		GeneratedAt:    s.now(),
	}
	for _, sess := range sessions {
		data.Sessions = append(data.Sessions, pdf.SessionRow{
			ID:             sess.ID,
			CreatedAt:      sess.CreatedAt,
			ExpiresAt:      sess.ExpiresAt,
			LastActivityAt: sess.LastActivityAt,
			Origin:         sess.OriginAddress,
			Active:         sess.Active,
		})
	}

	path, err := s.reports.GenerateSessionReport(data)
	if err != nil {
		s.log.Error(ctx, "[audit][session-report] generate failed", "account_id", accountID, "error", err)
		return "", err
	}
	s.log.Info(ctx, "[audit][session-report]", "account_id", accountID, "sessions", len(sessions))
	return path, nil
}
