package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "workguard/pkg/domain"
)

// RelatedData is the payload a producer attaches to a notification. Each
// variant belongs to exactly one notification Type.
type RelatedData interface {
	NotificationType() Type
}

// Employee identifies the account an event is about.
type Employee struct {
	EmployeeID    id.UserID `json:"employeeId"`
	EmployeeName  string    `json:"employeeName"`
	EmployeeEmail string    `json:"employeeEmail"`
}

// Device describes one side of a login as the server saw it.
type Device struct {
	DeviceName  string `json:"deviceName"`
	BrowserName string `json:"browserName"`
	OSName      string `json:"osName"`
	IPAddress   string `json:"ipAddress"`
	IsMobile    bool   `json:"isMobile"`
	IsTablet    bool   `json:"isTablet"`
}

type MobileLoginRestrictedData struct {
	Employee
	Device      Device    `json:"device"`
	UserAgent   string    `json:"userAgent"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

func (MobileLoginRestrictedData) NotificationType() Type { return TypeMobileLoginRestricted }

type MultipleLoginData struct {
	Employee
	PreviousSessionID id.SessionID `json:"previousSessionId"`
	PreviousDevice    Device       `json:"previousDevice"`
	PreviousLoginTime time.Time    `json:"previousLoginTime"`
	NewSessionID      id.SessionID `json:"newSessionId"`
	NewDevice         Device       `json:"newDevice"`
	LoginTime         time.Time    `json:"loginTime"`
}

func (MultipleLoginData) NotificationType() Type { return TypeMultipleLoginAttempt }

// GenericData carries the payload of types without a dedicated variant.
type GenericData struct {
	Type Type
	Raw  json.RawMessage
}

func (g GenericData) NotificationType() Type { return g.Type }

func (g GenericData) MarshalJSON() ([]byte, error) {
	if len(g.Raw) == 0 {
		return []byte("null"), nil
	}
	return g.Raw, nil
}

// EncodeRelatedData returns the stored form of data, or nil when there is none.
func EncodeRelatedData(data RelatedData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s related data: %w", data.NotificationType(), err)
	}
	return b, nil
}

// DecodeRelatedData picks the variant by notification type.
func DecodeRelatedData(t Type, raw []byte) (RelatedData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch t {
	case TypeMobileLoginRestricted:
		var d MobileLoginRestrictedData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s related data: %w", t, err)
		}
		return d, nil
	case TypeMultipleLoginAttempt:
		var d MultipleLoginData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s related data: %w", t, err)
		}
		return d, nil
	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("decode %s related data: invalid json", t)
		}
		return GenericData{Type: t, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
