package models

import (
	"time"

	id "workguard/pkg/domain"
)

const (
	AttemptReasonUserNotFound     = "User not found"
	AttemptReasonInvalidPassword  = "Invalid password"
	AttemptReasonMobileRestricted = "Mobile login restricted"
	AttemptReasonSuccess          = "Login successful"
)

// PreviousSessionInvalidatedReason is the success reason recorded when the
// login displaced another device.
func PreviousSessionInvalidatedReason(osName, browserName string) string {
	return "Previous session invalidated: new login from " + osName + " - " + browserName
}

// LoginAttempt is an append-only audit row; exactly one is written per login call.
type LoginAttempt struct {
	ID                id.AttemptID `json:"id"`
	UserID            *id.UserID   `json:"userId,omitempty"`
	Email             string       `json:"email"`
	DeviceFingerprint string       `json:"deviceFingerprint"`
	IPAddress         string       `json:"ipAddress"`
	Success           bool         `json:"success"`
	Reason            string       `json:"reason"`
	UserAgent         string       `json:"userAgent"`
	IsMobile          bool         `json:"isMobile"`
	CreatedAt         time.Time    `json:"createdAt"`
}

const (
	DefaultAttemptLimit = 50
	MaxAttemptLimit     = 500
)

// AttemptFilter narrows an audit read. Zero values mean "any".
type AttemptFilter struct {
	UserID *id.UserID
	Email  string
	Limit  int
}

// EffectiveLimit clamps Limit into [1, MaxAttemptLimit], defaulting to DefaultAttemptLimit.
func (f AttemptFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultAttemptLimit
	case f.Limit > MaxAttemptLimit:
		return MaxAttemptLimit
	default:
		return f.Limit
	}
}
