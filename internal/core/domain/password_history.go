package domain

import "time"

// PasswordHistoryDepth is how many previous hashes are retained per staff member.
const PasswordHistoryDepth = 5

// PasswordHistory is an append-only record of a previously active password hash.
type PasswordHistory struct {
	ID           string
	StaffID      string
	PasswordHash string
	CreatedAt    time.Time
}

// NewPasswordHistory builds a history entry for the supplied hash.
func NewPasswordHistory(id, staffID, hash string, now time.Time) PasswordHistory {
	return PasswordHistory{
		ID:           id,
		StaffID:      staffID,
		PasswordHash: hash,
		CreatedAt:    now,
	}
}
