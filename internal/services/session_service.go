package services

import (
	"context"
	"time"

	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/models"
	"hospitalrecords/internal/repositories"
)

const SessionTTL = 24 * time.Hour

// SessionService keeps the server-side record of each login. Sessions are
// never deleted; expired ones are switched off the next time they are read.
type SessionService struct {
	log logging.Logger
	now func() time.Time
}

func NewSessionService(log logging.Logger) *SessionService {
	return &SessionService{log: log, now: time.Now}
}

func (s *SessionService) Open(ctx context.Context, sessions repositories.SessionRepository, a *models.Account, token, origin string) (*models.Session, error) {
	now := s.now()
	saved, err := sessions.Save(ctx, &models.Session{
		AccountID:      a.ID,
		Token:          token,
		CreatedAt:      now,
		ExpiresAt:      now.Add(SessionTTL),
		OriginAddress:  origin,
		Active:         true,
		LastActivityAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "[session][open]", "account_id", a.ID, "session_id", saved.ID, "origin", origin)
	return saved, nil
}

// Close deactivates the active session holding token.
func (s *SessionService) Close(ctx context.Context, sessions repositories.SessionRepository, token string) error {
	sess, err := sessions.FindActiveByToken(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrInvalidSession
	}
	sess.Active = false
	if _, err := sessions.Save(ctx, sess); err != nil {
		return err
	}
	s.log.Info(ctx, "[session][close]", "account_id", sess.AccountID, "session_id", sess.ID)
	return nil
}

// Resolve returns the live session for token. An expired session is
// deactivated here and reported as invalid.
func (s *SessionService) Resolve(ctx context.Context, sessions repositories.SessionRepository, token string) (*models.Session, error) {
	sess, err := sessions.FindActiveByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	if sess.Expired(s.now()) {
		sess.Active = false
		if _, err := sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
		s.log.Info(ctx, "[session][expire]", "account_id", sess.AccountID, "session_id", sess.ID)
		return nil, ErrInvalidSession
	}
	return sess, nil
}

func (s *SessionService) Touch(ctx context.Context, sessions repositories.SessionRepository, sess *models.Session) (*models.Session, error) {
	sess.LastActivityAt = s.now()
	return sessions.Save(ctx, sess)
}
