package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jgivc/csclient/internal/common"
)

const (
	ExpirationLayout = "2006-01-02T15:04:05-07:00"

	OptionRecipientLanguage = "recipientLanguage"
	OptionSenderLanguage    = "senderLanguage"
)

// TransferSettings is replaceable while a session is open. Options carries the
// optional keys of the remote API, blank values are never sent.
type TransferSettings struct {
	Sender       *Sender
	Notification *NotificationMessage
	SecurityMode SecurityMode
	Expiration   time.Time
	Options      map[string]any
}

func (s *TransferSettings) Validate() error {
	if s == nil || s.Sender == nil {
		return common.ErrMissingSender
	}

	return nil
}

func (s *TransferSettings) Data() (map[string]any, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	notification := s.Notification
	if notification == nil {
		notification = &NotificationMessage{}
	}

	data := map[string]any{
		"notificationMessage": notification,
		"securityMode":        s.SecurityMode,
		"sender":              s.Sender,
	}

	if !s.Expiration.IsZero() {
		data["expirationDate"] = s.Expiration.Format(ExpirationLayout)
	}

	if notification.Language != "" {
		data[OptionRecipientLanguage] = notification.Language
	}

	if s.Sender.Language != "" {
		data[OptionSenderLanguage] = s.Sender.Language
	}

	for key, value := range s.Options {
		if isBlank(value) {
			continue
		}

		data[key] = value
	}

	return data, nil
}

func (s *TransferSettings) MarshalJSON() ([]byte, error) {
	data, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("cannot build transfer settings: %w", err)
	}

	return json.Marshal(data)
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}

	return false
}
