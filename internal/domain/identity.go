package domain

import "time"

// Identity is the domain model for a person allowed to present credentials
// at the gate. Embedding is nil until biometrics are enrolled.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	IsAdmin      bool
	ExpireTime   *time.Time
	Embedding    []float32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the account has an expiry set in the past.
func (i *Identity) Expired(now time.Time) bool {
	return i.ExpireTime != nil && now.After(*i.ExpireTime)
}

// HasBiometrics reports whether a face template has been enrolled.
func (i *Identity) HasBiometrics() bool {
	return len(i.Embedding) > 0
}
