package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "workguard/pkg/domain"
)

func TestNotificationJSON_DecodesVariantByType(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	employee := Employee{EmployeeID: id.NewUserID(), EmployeeName: "Bob", EmployeeEmail: "bob@co.com"}

	t.Run("multiple login", func(t *testing.T) {
		n := Draft{
			Type:     TypeMultipleLoginAttempt,
			Priority: PriorityMedium,
			Title:    "Multiple Login Detected",
			RelatedData: MultipleLoginData{
				Employee:          employee,
				PreviousSessionID: id.NewSessionID(),
				PreviousDevice:    Device{DeviceName: "Windows Chrome", BrowserName: "Chrome", OSName: "Windows"},
				NewSessionID:      id.NewSessionID(),
				NewDevice:         Device{DeviceName: "Windows Firefox", BrowserName: "Firefox", OSName: "Windows"},
				LoginTime:         at,
			},
		}.For(id.NewUserID(), at)

		b, err := json.Marshal(n)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"employeeEmail":"bob@co.com"`)

		var decoded Notification
		require.NoError(t, json.Unmarshal(b, &decoded))
		data, ok := decoded.RelatedData.(MultipleLoginData)
		require.True(t, ok, "got %T", decoded.RelatedData)
		assert.Equal(t, "Firefox", data.NewDevice.BrowserName)
		assert.Equal(t, employee.EmployeeID, data.EmployeeID)
		assert.Equal(t, n.ID, decoded.ID)
	})

	t.Run("mobile restricted", func(t *testing.T) {
		raw, err := EncodeRelatedData(MobileLoginRestrictedData{Employee: employee, UserAgent: "iPhone"})
		require.NoError(t, err)

		data, err := DecodeRelatedData(TypeMobileLoginRestricted, raw)
		require.NoError(t, err)
		assert.Equal(t, "iPhone", data.(MobileLoginRestrictedData).UserAgent)
	})

	t.Run("unknown type keeps raw payload", func(t *testing.T) {
		data, err := DecodeRelatedData(TypeSecurityAlert, []byte(`{"k":1}`))
		require.NoError(t, err)
		generic, ok := data.(GenericData)
		require.True(t, ok)
		assert.Equal(t, TypeSecurityAlert, generic.NotificationType())

		b, err := json.Marshal(generic)
		require.NoError(t, err)
		assert.JSONEq(t, `{"k":1}`, string(b))
	})

	t.Run("empty payload decodes to nil", func(t *testing.T) {
		data, err := DecodeRelatedData(TypeOther, nil)
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		_, err := DecodeRelatedData(TypeMultipleLoginAttempt, []byte(`{"newDevice":`))
		assert.Error(t, err)
	})
}

func TestDraftValidate(t *testing.T) {
	valid := Draft{Type: TypeOther, Priority: PriorityLow, Title: "t"}
	assert.NoError(t, valid.Validate())

	badType := valid
	badType.Type = "NOPE"
	assert.Error(t, badType.Validate())

	badPriority := valid
	badPriority.Priority = "URGENT"
	assert.Error(t, badPriority.Validate())

	mismatched := valid
	mismatched.RelatedData = MobileLoginRestrictedData{}
	assert.Error(t, mismatched.Validate())
}
