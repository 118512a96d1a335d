package models

import (
	"time"

	id "workguard/pkg/domain"
)

// LoginRequest is one login call. UserAgent and IPAddress come from the
// transport, never from the body.
type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type SessionInfo struct {
	DeviceName  string    `json:"deviceName"`
	OSName      string    `json:"osName"`
	BrowserName string    `json:"browserName"`
	LoginTime   time.Time `json:"loginTime"`
}

type LoginResult struct {
	Token       string       `json:"token"`
	SessionID   id.SessionID `json:"sessionId"`
	User        UserSummary  `json:"user"`
	SessionInfo SessionInfo  `json:"sessionInfo"`

	// InvalidatedSessionID is set when this login displaced another device.
	InvalidatedSessionID *id.SessionID `json:"-"`
}

// Principal is the identity behind an ACTIVE session token.
type Principal struct {
	UserID    id.UserID
	SessionID id.SessionID
	Role      Role
}
