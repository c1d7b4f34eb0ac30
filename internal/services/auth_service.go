package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/models"
	"hospitalrecords/internal/repositories"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is in bytes; bcrypt refuses longer input.
	MaxPasswordLength = 72
)

var ErrPasswordPolicy = fmt.Errorf("password must be %d to %d bytes long", MinPasswordLength, MaxPasswordLength)

// AuthService runs the login pipeline: password, one-time code, token and
// session. Each public operation is one store transaction. Failure kinds from
// errors.go end the operation but keep what was already written (failed
// attempt counters); any other error rolls the transaction back.
type AuthService struct {
	store    repositories.Store
	hasher   Hasher
	lockout  LockoutPolicy
	otp      *OTPService
	tokens   *TokenService
	sessions *SessionService
	log      logging.Logger
	now      func() time.Time

	// ConcealUnknownAccounts makes RequestPasswordReset succeed silently for
	// usernames that do not exist.
	ConcealUnknownAccounts bool
}

func NewAuthService(
	store repositories.Store,
	hasher Hasher,
	otp *OTPService,
	tokens *TokenService,
	sessions *SessionService,
	log logging.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		lockout:  NewLockoutPolicy(),
		otp:      otp,
		tokens:   tokens,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// inTx commits when fn ends with an auth failure and returns that failure
// afterwards.
func (s *AuthService) inTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	var failure error
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := fn(ctx, tx); err != nil {
			if IsAuthFailure(err) {
				failure = err
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return failure
}

func (s *AuthService) findAccount(ctx context.Context, tx repositories.Store, username string) (*models.Account, error) {
	a, err := tx.Accounts().FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// Login checks the password and sends a one-time code. No token is issued
// here; see CompleteLogin.
func (s *AuthService) Login(ctx context.Context, username, password, origin string) (*models.LoginAck, error) {
	username = strings.TrimSpace(username)

	var (
		account *models.Account
		code    string
	)
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := s.findAccount(ctx, tx, username)
		if err != nil {
			return err
		}
		if s.lockout.IsLocked(*a) {
			return ErrAccountLocked
		}

		if !s.hasher.Compare(a.PasswordHash, password) {
			failed := s.lockout.RecordFailure(*a)
			if _, err := tx.Accounts().Save(ctx, &failed); err != nil {
				return err
			}
			s.log.Info(ctx, "[auth][login] password mismatch",
				"account_id", a.ID, "failed_attempts", failed.FailedAttempts, "locked", failed.Locked)
			return ErrInvalidCredentials
		}

		cleared := s.lockout.RecordSuccess(*a)
		saved, err := tx.Accounts().Save(ctx, &cleared)
		if err != nil {
			return err
		}
		code, err = s.otp.Issue(ctx, tx.Codes(), saved)
		if err != nil {
			return err
		}
		account = saved
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "[auth][login]", username, origin, err)
		return nil, err
	}

	s.otp.Deliver(ctx, account, code)
	s.log.Info(ctx, "[auth][login] password ok, code issued", "account_id", account.ID, "origin", origin)
	return &models.LoginAck{AccountID: account.ID, Username: account.Username}, nil
}

// CompleteLogin verifies the one-time code, signs a token and opens a session.
func (s *AuthService) CompleteLogin(ctx context.Context, username, code, origin string) (*models.LoginResult, error) {
	username = strings.TrimSpace(username)

	var result *models.LoginResult
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := s.findAccount(ctx, tx, username)
		if err != nil {
			return err
		}
		if s.lockout.IsLocked(*a) {
			return ErrAccountLocked
		}
		if err := s.otp.Verify(ctx, tx.Codes(), a.ID, code); err != nil {
			return err
		}

		token, _, err := s.tokens.Issue(a)
		if err != nil {
			return err
		}
		if _, err := s.sessions.Open(ctx, tx.Sessions(), a, token, origin); err != nil {
			return err
		}

		now := s.now()
		a.LastLoginAt = &now
		saved, err := tx.Accounts().Save(ctx, a)
		if err != nil {
			return err
		}

		result = &models.LoginResult{
			Token:            token,
			TokenType:        TokenType,
			ExpiresInSeconds: int64(TokenTTL / time.Second),
			AccountID:        saved.ID,
			Username:         saved.Username,
			Role:             saved.Role,
			FirstName:        saved.FirstName,
			LastName:         saved.LastName,
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "[auth][verify-otp]", username, origin, err)
		return nil, err
	}

	s.log.Info(ctx, "[auth][verify-otp] login complete", "account_id", result.AccountID, "origin", origin)
	return result, nil
}

// Logout deactivates the session behind token. A "Bearer " prefix is accepted.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = StripBearer(token)
	if token == "" {
		return ErrInvalidSession
	}
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		return s.sessions.Close(ctx, tx.Sessions(), token)
	})
	if err != nil {
		s.logFailure(ctx, "[auth][logout]", "", "", err)
		return err
	}
	return nil
}

// RequestPasswordReset sends a one-time code that ResetPassword will accept.
func (s *AuthService) RequestPasswordReset(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	var (
		account *models.Account
		code    string
	)
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := s.findAccount(ctx, tx, username)
		if err != nil {
			return err
		}
		code, err = s.otp.Issue(ctx, tx.Codes(), a)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) && s.ConcealUnknownAccounts {
			s.log.Info(ctx, "[auth][password-reset] unknown username, concealed", "username", username)
			return nil
		}
		s.logFailure(ctx, "[auth][password-reset]", username, "", err)
		return err
	}

	s.otp.Deliver(ctx, account, code)
	s.log.Info(ctx, "[auth][password-reset] code issued", "account_id", account.ID)
	return nil
}

// ResetPassword replaces the password after a verified code. Unlike a normal
// login it also clears the lock.
func (s *AuthService) ResetPassword(ctx context.Context, username, code, newPassword string) error {
	username = strings.TrimSpace(username)
	if len(newPassword) < MinPasswordLength || len(newPassword) > MaxPasswordLength {
		return ErrPasswordPolicy
	}

	var accountID int64
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := s.findAccount(ctx, tx, username)
		if err != nil {
			return err
		}
		if err := s.otp.Verify(ctx, tx.Codes(), a.ID, code); err != nil {
			return err
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		recovered := s.lockout.Unlock(*a)
		recovered.PasswordHash = hash
		if _, err := tx.Accounts().Save(ctx, &recovered); err != nil {
			return err
		}
		accountID = a.ID
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "[auth][password-reset][confirm]", username, "", err)
		return err
	}

	s.log.Info(ctx, "[auth][password-reset][confirm] password replaced, lock cleared", "account_id", accountID)
	return nil
}

// Authenticate is the per-request check used by the HTTP middleware: the
// token must verify and its session must still be active.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	token = StripBearer(token)
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if IsExpired(err) {
			s.log.Debug(ctx, "[auth][authenticate] token expired")
		}
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		sess, err := s.sessions.Resolve(ctx, tx.Sessions(), token)
		if err != nil {
			return err
		}
		if sess.AccountID != claims.AccountID {
			return ErrInvalidSession
		}
		_, err = s.sessions.Touch(ctx, tx.Sessions(), sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Unlock is the administrative unlock: counter reset and lock cleared.
func (s *AuthService) Unlock(ctx context.Context, accountID int64) (*models.Account, error) {
	var unlocked *models.Account
	err := s.inTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := tx.Accounts().FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAccountNotFound
		}
		cleared := s.lockout.Unlock(*a)
		unlocked, err = tx.Accounts().Save(ctx, &cleared)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "[auth][unlock]", "account_id", accountID)
	return unlocked, nil
}

func (s *AuthService) logFailure(ctx context.Context, event, username, origin string, err error) {
	if IsAuthFailure(err) {
		s.log.Info(ctx, event+" rejected", "username", username, "origin", origin, "reason", err.Error())
		return
	}
	s.log.Error(ctx, event+" failed", "username", username, "origin", origin, "error", err)
}

// StripBearer removes a case-insensitive "Bearer " prefix.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	const scheme = "bearer"
	if len(token) < len(scheme) || !strings.EqualFold(token[:len(scheme)], scheme) {
		return token
	}
	if len(token) == len(scheme) {
		return ""
	}
	if token[len(scheme)] != ' ' {
		return token
	}
	return strings.TrimSpace(token[len(scheme):])
}
