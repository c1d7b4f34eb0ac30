package services

import "hospitalrecords/internal/models"

const DefaultLockoutThreshold = 3

// LockoutPolicy works on account values and never persists anything; the
// caller saves the returned account.
type LockoutPolicy struct {
	Threshold int
}

func NewLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold}
}

func (p LockoutPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultLockoutThreshold
	}
	return p.Threshold
}

// RecordFailure counts a failed password check and locks the account once the
// count reaches the threshold.
func (p LockoutPolicy) RecordFailure(a models.Account) models.Account {
	a.FailedAttempts++
	if a.FailedAttempts >= p.threshold() {
		a.Locked = true
	}
	return a
}

// RecordSuccess clears the failure count. The lock flag is left alone.
func (p LockoutPolicy) RecordSuccess(a models.Account) models.Account {
	a.FailedAttempts = 0
	return a
}

// Unlock is the recovery path (password reset, admin action).
func (p LockoutPolicy) Unlock(a models.Account) models.Account {
	a.FailedAttempts = 0
	a.Locked = false
	return a
}

func (p LockoutPolicy) IsLocked(a models.Account) bool {
	return a.Locked
}
