package models

import "time"

// Session is the server-side record of one completed login.
type Session struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Token          string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	OriginAddress  string    `json:"origin_address"`
	Active         bool      `json:"active"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
