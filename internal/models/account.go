package models

import "time"

// Account is the identity under authentication.
type Account struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"` // never exposed
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	TelegramChatID int64      `json:"-"`
	Role           string     `json:"role"`
	FailedAttempts int        `json:"failed_attempts"`
	Locked         bool       `json:"locked"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
