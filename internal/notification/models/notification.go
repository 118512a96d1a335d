package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "workguard/pkg/domain"
)

type Type string

const (
	TypeMobileLoginRestricted Type = "MOBILE_LOGIN_RESTRICTED"
	TypeMultipleLoginAttempt  Type = "MULTIPLE_LOGIN_ATTEMPT"
	TypeLoginAnomaly          Type = "LOGIN_ANOMALY"
	TypeSessionInvalidated    Type = "SESSION_INVALIDATED"
	TypeSecurityAlert         Type = "SECURITY_ALERT"
	TypeOther                 Type = "OTHER"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeMobileLoginRestricted, TypeMultipleLoginAttempt, TypeLoginAnomaly,
		TypeSessionInvalidated, TypeSecurityAlert, TypeOther:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Notification is one row in one admin's inbox.
type Notification struct {
	ID             id.NotificationID `json:"id"`
	UserID         id.UserID         `json:"userId"`
	Type           Type              `json:"type"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	RelatedData    RelatedData       `json:"relatedData,omitempty"`
	IsRead         bool              `json:"isRead"`
	Priority       Priority          `json:"priority"`
	ActionRequired bool              `json:"actionRequired"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// UnmarshalJSON decodes relatedData into the variant matching Type.
func (n *Notification) UnmarshalJSON(b []byte) error {
	type plain Notification
	var wire struct {
		plain
		RelatedData json.RawMessage `json:"relatedData,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	data, err := DecodeRelatedData(wire.Type, wire.RelatedData)
	if err != nil {
		return err
	}
	*n = Notification(wire.plain)
	n.RelatedData = data
	return nil
}

// Draft is a notification before it is addressed to a recipient.
type Draft struct {
	Type           Type
	Priority       Priority
	Title          string
	Message        string
	RelatedData    RelatedData
	ActionRequired bool
}

func (d Draft) Validate() error {
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid notification type %q", d.Type)
	}
	if !d.Priority.IsValid() {
		return fmt.Errorf("invalid notification priority %q", d.Priority)
	}
	if d.Title == "" {
		return fmt.Errorf("notification title is required")
	}
	if d.RelatedData != nil && d.RelatedData.NotificationType() != d.Type {
		return fmt.Errorf("related data of type %q on %q notification", d.RelatedData.NotificationType(), d.Type)
	}
	return nil
}

// For addresses the draft to one admin.
func (d Draft) For(recipient id.UserID, at time.Time) *Notification {
	return &Notification{
		ID:             id.NewNotificationID(),
		UserID:         recipient,
		Type:           d.Type,
		Title:          d.Title,
		Message:        d.Message,
		RelatedData:    d.RelatedData,
		Priority:       d.Priority,
		ActionRequired: d.ActionRequired,
		CreatedAt:      at,
	}
}

const DefaultListLimit = 50

type ListFilter struct {
	UnreadOnly bool
	Limit      int
}

func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > DefaultListLimit {
		return DefaultListLimit
	}
	return f.Limit
}

// Inbox is what an admin sees when listing notifications.
type Inbox struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unreadCount"`
}
