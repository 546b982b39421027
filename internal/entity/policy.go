package entity

import (
	"encoding/json"
	"fmt"
)

// TransferPolicy is the server decision for one recipient set. All accessors are
// safe on a nil or empty policy.
type TransferPolicy struct {
	data policyData
}

type policyData struct {
	Allowed              bool            `json:"allowed"`
	FailedEmailAddresses []string        `json:"failedEmailAddresses"`
	Settings             *PolicySettings `json:"settings"`
}

type PolicySettings struct {
	MaxRetentionPeriod                  int                  `json:"maxRetentionPeriod"`
	MaxTotalSize                        int64                `json:"maxTotalSize"`
	RecipientNotificationEditable       bool                 `json:"recipientNotificationEditable"`
	ShowFileNamesDefault                bool                 `json:"showFileNamesDefault"`
	ShowFileNamesChangeable             bool                 `json:"showFileNamesChangeable"`
	ShowZipFileContentDefault           bool                 `json:"showZipFileContentDefault"`
	SendDownloadNotificationsDefault    bool                 `json:"sendDownloadNotificationsDefault"`
	SendDownloadNotificationsChangeable bool                 `json:"sendDownloadNotificationsChangeable"`
	ConfidentialMessageAllowed          bool                 `json:"confidentialMessageAllowed"`
	ConfidentialMessageRequired         bool                 `json:"confidentialMessageRequired"`
	SecurityModes                       []PolicySecurityMode `json:"securityModes"`
}

type PolicySecurityMode struct {
	Name   string `json:"name"`
	Config struct {
		AllowedPasswordModes []string `json:"allowedPasswordModes"`
	} `json:"config"`
}

func NewTransferPolicy(body []byte) (*TransferPolicy, error) {
	p := &TransferPolicy{}
	if len(body) == 0 || string(body) == "null" {
		return p, nil
	}

	if err := json.Unmarshal(body, &p.data); err != nil {
		return nil, fmt.Errorf("cannot decode transfer policy: %w", err)
	}

	return p, nil
}

func (p *TransferPolicy) IsAllowed() bool {
	if p == nil {
		return false
	}

	return p.data.Allowed
}

func (p *TransferPolicy) FailedEmailAddresses() []string {
	if p == nil {
		return nil
	}

	return p.data.FailedEmailAddresses
}

func (p *TransferPolicy) settings() PolicySettings {
	if p == nil || p.data.Settings == nil {
		return PolicySettings{}
	}

	return *p.data.Settings
}

// AllowedSecurityModes lists the one-time-password modes the server accepts.
func (p *TransferPolicy) AllowedSecurityModes() []PasswordMode {
	var modes []PasswordMode
	seen := make(map[PasswordMode]struct{})

	for _, sm := range p.settings().SecurityModes {
		if sm.Name != SecurityModeOneTimePassword {
			continue
		}

		for _, str := range sm.Config.AllowedPasswordModes {
			mode, ok := ParsePasswordMode(str)
			if !ok {
				continue
			}

			if _, exists := seen[mode]; exists {
				continue
			}

			seen[mode] = struct{}{}
			modes = append(modes, mode)
		}
	}

	return modes
}

func (p *TransferPolicy) AllowsPasswordMode(mode PasswordMode) bool {
	for _, m := range p.AllowedSecurityModes() {
		if m == mode {
			return true
		}
	}

	return false
}

// MaximumRetentionTime is in days.
func (p *TransferPolicy) MaximumRetentionTime() int {
	return p.settings().MaxRetentionPeriod
}

func (p *TransferPolicy) MaximumTotalSize() int64 {
	return p.settings().MaxTotalSize
}

func (p *TransferPolicy) IsAllowedEditingRecipientNotification() bool {
	return p.settings().RecipientNotificationEditable
}

func (p *TransferPolicy) ShowFileNamesDefault() bool {
	return p.settings().ShowFileNamesDefault
}

func (p *TransferPolicy) ShowFileNamesChangeable() bool {
	return p.settings().ShowFileNamesChangeable
}

func (p *TransferPolicy) ShowZipFileContentDefault() bool {
	return p.settings().ShowZipFileContentDefault
}

func (p *TransferPolicy) SendDownloadNotificationsDefault() bool {
	return p.settings().SendDownloadNotificationsDefault
}

func (p *TransferPolicy) SendDownloadNotificationsChangeable() bool {
	return p.settings().SendDownloadNotificationsChangeable
}

func (p *TransferPolicy) ConfidentialMessageAllowed() bool {
	return p.settings().ConfidentialMessageAllowed
}

func (p *TransferPolicy) ConfidentialMessageRequired() bool {
	return p.settings().ConfidentialMessageRequired
}

func (p *TransferPolicy) String() string {
	if p == nil {
		return "{}"
	}

	data, err := json.Marshal(p.data)
	if err != nil {
		return "{}"
	}

	return string(data)
}
