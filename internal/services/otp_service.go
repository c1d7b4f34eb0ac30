package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/models"
	"hospitalrecords/internal/repositories"
	"hospitalrecords/internal/utils"
)

const (
	OTPLength = 6
	OTPTTL    = 5 * time.Minute
	// OTPMaxAttempts is only reported back to the client; verification is not
	// cut off when it is exceeded.
	OTPMaxAttempts = 3
)

type CodeGenerator interface {
	Generate() (string, error)
}

type numericCodeGenerator struct {
	digits int
}

func NewCodeGenerator(digits int) CodeGenerator {
	return numericCodeGenerator{digits: digits}
}

func (g numericCodeGenerator) Generate() (string, error) {
	return utils.NewNumericCode(g.digits)
}

// OTPService issues and verifies one-time codes. Persistence goes through
// the repository handed in by the caller so it joins the caller's transaction.
type OTPService struct {
	hasher    Hasher
	generator CodeGenerator
	notifier  Notifier
	log       logging.Logger
	now       func() time.Time
}

func NewOTPService(hasher Hasher, notifier Notifier, log logging.Logger) *OTPService {
	return &OTPService{
		hasher:    hasher,
		generator: NewCodeGenerator(OTPLength),
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// Issue retires the account's outstanding codes and stores a fresh one. The
// plaintext is returned for Deliver and is not kept anywhere.
func (s *OTPService) Issue(ctx context.Context, codes repositories.OneTimeCodeRepository, a *models.Account) (string, error) {
	if strings.TrimSpace(s.notifier.Address(a)) == "" {
		return "", fmt.Errorf("%w: channel=%s", ErrMissingNotificationAddress, s.notifier.Channel())
	}

	superseded, err := codes.InvalidateOutstanding(ctx, a.ID)
	if err != nil {
		return "", err
	}

	code, err := s.generator.Generate()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", err
	}

	now := s.now()
	saved, err := codes.Save(ctx, &models.OneTimeCode{
		AccountID: a.ID,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(OTPTTL),
	})
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "[otp][issue]",
		"account_id", a.ID, "code_id", saved.ID, "superseded", superseded, "expires_at", saved.ExpiresAt)
	return code, nil
}

// Deliver hands the code to the notifier. A failed delivery is logged only;
// the stored code stays verifiable.
func (s *OTPService) Deliver(ctx context.Context, a *models.Account, code string) {
	address := s.notifier.Address(a)
	if err := s.notifier.SendCode(ctx, address, code); err != nil {
		s.log.Warn(ctx, "[otp][deliver] failed",
			"account_id", a.ID, "channel", s.notifier.Channel(), "error", err)
		return
	}
	s.log.Info(ctx, "[otp][deliver] sent", "account_id", a.ID, "channel", s.notifier.Channel())
}

// Verify checks supplied against the account's newest unused code and marks
// it used on success. A mismatch is persisted before the error is returned.
func (s *OTPService) Verify(ctx context.Context, codes repositories.OneTimeCodeRepository, accountID int64, supplied string) error {
	c, err := codes.FindNewestValid(ctx, accountID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrOTPNotFound
	}
	if c.Expired(s.now()) {
		return ErrOTPExpired
	}
	if c.Used {
		return ErrOTPUsed
	}

	if !s.hasher.Compare(c.CodeHash, strings.TrimSpace(supplied)) {
		c.Attempts++
		if _, err := codes.Save(ctx, c); err != nil {
			return err
		}
		s.log.Info(ctx, "[otp][verify] mismatch", "account_id", accountID, "attempts", c.Attempts)
		return &OTPMismatchError{Remaining: OTPMaxAttempts - c.Attempts}
	}

	c.Used = true
	if _, err := codes.Save(ctx, c); err != nil {
		return err
	}
	s.log.Info(ctx, "[otp][verify] ok", "account_id", accountID, "code_id", c.ID)
	return nil
}
