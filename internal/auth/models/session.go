package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
)

type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "ACTIVE"
	SessionStatusInvalidated SessionStatus = "INVALIDATED"
	SessionStatusExpired     SessionStatus = "EXPIRED"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusActive, SessionStatusInvalidated, SessionStatusExpired:
		return true
	}
	return false
}

func (s SessionStatus) String() string { return string(s) }

const (
	ReasonLoggedOut       = "User logged out"
	ReasonLoggedOutDevice = "User logged out from this device"
)

// MaxReasonLen matches the width of the persisted reason column.
const MaxReasonLen = 255

// NewLoginReason is recorded on a session displaced by a login from another device.
func NewLoginReason(osName, browserName string) string {
	return fmt.Sprintf("New login from %s - %s", osName, browserName)
}

// TruncateReason fits reason into MaxReasonLen bytes without splitting a rune.
// Invalid UTF-8 is replaced first so the result is always storable.
func TruncateReason(reason string) string {
	reason = strings.ToValidUTF8(reason, "\uFFFD")
	if len(reason) <= MaxReasonLen {
		return reason
	}
	n := MaxReasonLen
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

// Session is one login on one device. Rows are never deleted; they leave
// ACTIVE exactly once, to INVALIDATED or EXPIRED.
type Session struct {
	ID                id.SessionID
	UserID            id.UserID
	TokenHash         string
	DeviceFingerprint string
	DeviceName        string
	BrowserName       string
	OSName            string
	IPAddress         string
	IsMobile          bool
	IsTablet          bool
	LoginTime         time.Time
	LastActivityTime  time.Time
	Status            SessionStatus
	Reason            *string
}

func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Close moves an ACTIVE session to status with reason. Any other starting
// state is sentinel.ErrInvalidState.
func (s *Session) Close(status SessionStatus, reason string) error {
	if !s.IsActive() {
		return sentinel.ErrInvalidState
	}
	if status != SessionStatusInvalidated && status != SessionStatusExpired {
		return fmt.Errorf("close session to %q: %w", status, sentinel.ErrInvalidState)
	}
	reason = TruncateReason(reason)
	s.Status = status
	s.Reason = &reason
	return nil
}

// SessionSummary is the client-facing view of an ACTIVE session.
type SessionSummary struct {
	ID               id.SessionID `json:"id"`
	DeviceName       string       `json:"deviceName"`
	BrowserName      string       `json:"browserName"`
	OSName           string       `json:"osName"`
	IPAddress        string       `json:"ipAddress"`
	IsMobile         bool         `json:"isMobile"`
	IsTablet         bool         `json:"isTablet"`
	LoginTime        time.Time    `json:"loginTime"`
	LastActivityTime time.Time    `json:"lastActivityTime"`
	IsCurrent        bool         `json:"isCurrent"`
}

func (s *Session) Summary(current id.SessionID) SessionSummary {
	return SessionSummary{
		ID:               s.ID,
		DeviceName:       s.DeviceName,
		BrowserName:      s.BrowserName,
		OSName:           s.OSName,
		IPAddress:        s.IPAddress,
		IsMobile:         s.IsMobile,
		IsTablet:         s.IsTablet,
		LoginTime:        s.LoginTime,
		LastActivityTime: s.LastActivityTime,
		IsCurrent:        s.ID == current,
	}
}
