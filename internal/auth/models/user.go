package models

import (
	"strings"
	"time"

	id "workguard/pkg/domain"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleEmployee   Role = "EMPLOYEE"
	RoleTeamLeader Role = "TEAM_LEADER"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleTeamLeader:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is the slice of the employee directory the login pipeline needs.
type User struct {
	ID           id.UserID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	IsOnline     bool
	LastActivity *time.Time
}

// NormalizeEmail is the canonical form used for lookups and attempt rows.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserSummary struct {
	ID         id.UserID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department"`
	IsOnline   bool      `json:"isOnline"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
		IsOnline:   u.IsOnline,
	}
}

// UserPresence is the admin view of whether a user is connected right now.
type UserPresence struct {
	UserID         id.UserID  `json:"userId"`
	Online         bool       `json:"online"`
	ActiveSessions int        `json:"activeSessions"`
	LastActivity   *time.Time `json:"lastActivity,omitempty"`
}
