package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jgivc/csclient/internal/common"
	"github.com/stretchr/testify/require"
)

func TestSecurityModeJSON(t *testing.T) {
	manual, err := NewSecurityMode("x", PasswordModeManual)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		mode     SecurityMode
		expected string
	}{
		{
			name:     "none",
			mode:     NoPassword(),
			expected: `{"name":"ONE_TIME_PASSWORD","config":{"passwordMode":"NONE"}}`,
		},
		{
			name:     "generated without password",
			mode:     GeneratedPassword(""),
			expected: `{"name":"ONE_TIME_PASSWORD","config":{"passwordMode":"GENERATED"}}`,
		},
		{
			name:     "generated with password",
			mode:     GeneratedPassword("").WithPassword("s3cr3t"),
			expected: `{"name":"ONE_TIME_PASSWORD","config":{"passwordMode":"GENERATED","password":"s3cr3t"}}`,
		},
		{
			name:     "manual",
			mode:     manual,
			expected: `{"name":"ONE_TIME_PASSWORD","config":{"passwordMode":"MANUAL","password":"x"}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.mode)
			require.NoError(t, err)
			require.JSONEq(t, tc.expected, string(data))
		})
	}
}

func TestSecurityModeValidation(t *testing.T) {
	_, err := NewSecurityMode("", PasswordModeManual)
	require.ErrorIs(t, err, common.ErrInvalidSecurityMode)

	_, err = NewSecurityMode("x", PasswordMode(42))
	require.ErrorIs(t, err, common.ErrInvalidSecurityMode)

	sm, err := NewSecurityMode("", PasswordModeGenerated)
	require.NoError(t, err)
	require.Equal(t, PasswordModeGenerated, sm.Mode())

	manual, err := ManualPassword("pw")
	require.NoError(t, err)
	require.Equal(t, "pw", manual.WithPassword("other").Password())

	mode, ok := ParsePasswordMode("MANUAL")
	require.True(t, ok)
	require.Equal(t, PasswordModeManual, mode)
	_, ok = ParsePasswordMode("QUICK")
	require.False(t, ok)
}

func TestTransferSettingsData(t *testing.T) {
	settings := &TransferSettings{
		Sender:       &Sender{Name: "A", Phone: "0", Email: "a@example.com", Language: "de"},
		Notification: &NotificationMessage{Body: "Hallo", Subject: "Dateien", Language: "de"},
		SecurityMode: GeneratedPassword(""),
		Expiration:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("", 2*60*60)),
		Options: map[string]any{
			"sendDownloadNotifications": true,
			"classificationId":          "",
			"confidentialMessageFileId": nil,
		},
	}

	data, err := json.Marshal(settings)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"notificationMessage": {"body": "Hallo", "subject": "Dateien"},
		"securityMode": {"name": "ONE_TIME_PASSWORD", "config": {"passwordMode": "GENERATED"}},
		"sender": {"name": "A", "phone": "0", "email": "a@example.com"},
		"expirationDate": "2024-06-01T12:00:00+02:00",
		"recipientLanguage": "de",
		"senderLanguage": "de",
		"sendDownloadNotifications": true
	}`, string(data))

	_, err = (&TransferSettings{}).Data()
	require.ErrorIs(t, err, common.ErrMissingSender)
}

func TestTransferPolicy(t *testing.T) {
	body := []byte(`{
		"allowed": true,
		"settings": {
			"maxRetentionPeriod": 14,
			"maxTotalSize": 1048576,
			"recipientNotificationEditable": true,
			"securityModes": [
				{"name": "ONE_TIME_PASSWORD", "config": {"allowedPasswordModes": ["MANUAL", "GENERATED", "GENERATED"]}},
				{"name": "QUICK", "config": {"allowedPasswordModes": ["NONE"]}}
			]
		}
	}`)

	p, err := NewTransferPolicy(body)
	require.NoError(t, err)
	require.True(t, p.IsAllowed())
	require.Equal(t, 14, p.MaximumRetentionTime())
	require.Equal(t, int64(1048576), p.MaximumTotalSize())
	require.True(t, p.IsAllowedEditingRecipientNotification())
	require.Equal(t, []PasswordMode{PasswordModeManual, PasswordModeGenerated}, p.AllowedSecurityModes())
	require.False(t, p.AllowsPasswordMode(PasswordModeNone))

	_, err = NewTransferPolicy([]byte(`{not json`))
	require.Error(t, err)
}

func TestTransferPolicyNilSafe(t *testing.T) {
	var nilPolicy *TransferPolicy
	empty, err := NewTransferPolicy(nil)
	require.NoError(t, err)

	for _, p := range []*TransferPolicy{nilPolicy, empty} {
		require.False(t, p.IsAllowed())
		require.Zero(t, p.MaximumRetentionTime())
		require.Zero(t, p.MaximumTotalSize())
		require.Empty(t, p.AllowedSecurityModes())
		require.False(t, p.IsAllowedEditingRecipientNotification())
		require.False(t, p.ConfidentialMessageRequired())
	}
}

func TestRecipients(t *testing.T) {
	r := NewRecipients([]string{"b@example.com"}, nil, []string{"c@example.com"})
	require.Equal(t, 2, r.Len())
	require.Equal(t, []string{"b@example.com", "c@example.com"}, r.Emails())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"to":[{"mail":"b@example.com"}],"cc":[],"bcc":[{"mail":"c@example.com"}]}`, string(data))
}

func TestDescribePasswordRules(t *testing.T) {
	rules := []PasswordRule{
		{Name: "minimumLengthRequired", Details: map[string]any{"length": 8}},
		{Name: "digitsRequired"},
		{Name: "somethingNew"},
	}

	require.Equal(t, []string{"Minimal length: 8", "Digits are required", "somethingNew"}, DescribePasswordRules(rules))
}
