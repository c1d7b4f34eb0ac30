package services

import (
	"context"
	"fmt"

	"hospitalrecords/internal/models"
)

// Notifier delivers one-time codes over one channel.
type Notifier interface {
	Channel() string
	// Address returns the account's address on this channel, "" if none.
	Address(a *models.Account) string
	SendCode(ctx context.Context, address, code string) error
}

func codeMessage(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(OTPTTL.Minutes()))
}
