package models

import "time"

// OneTimeCode is one issued passcode. Rows are retired, never deleted.
// Only the bcrypt hash of the code is stored.
type OneTimeCode struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	CodeHash  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	Attempts  int       `json:"attempts"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
