package core

import (
	"strings"
	"time"
)

// User is an account referenced by the finance records. CoupleID is empty
// unless the user is a member of an active couple; a user can never belong
// to more than one active couple.
type User struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	CoupleID     string
	CreatedAt    time.Time
}

// DisplayName prefers the full name, falling back to the username. Used to
// build default couple names.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Username
}
