package entity

import (
	"encoding/json"
	"fmt"

	"github.com/jgivc/csclient/internal/common"
)

const (
	PasswordModeNone PasswordMode = iota
	PasswordModeGenerated
	PasswordModeManual

	SecurityModeOneTimePassword = "ONE_TIME_PASSWORD"
)

// PasswordMode is how a recipient obtains the password for a transfer.
type PasswordMode int

func (m PasswordMode) String() string {
	switch m {
	case PasswordModeNone:
		return "NONE"
	case PasswordModeGenerated:
		return "GENERATED"
	case PasswordModeManual:
		return "MANUAL"
	}

	return fmt.Sprintf("PasswordMode(%d)", int(m))
}

func ParsePasswordMode(str string) (PasswordMode, bool) {
	switch str {
	case "NONE":
		return PasswordModeNone, true
	case "GENERATED":
		return PasswordModeGenerated, true
	case "MANUAL":
		return PasswordModeManual, true
	}

	return 0, false
}

type SecurityMode struct {
	mode     PasswordMode
	password string
}

type securityModeData struct {
	Name   string             `json:"name"`
	Config securityModeConfig `json:"config"`
}

type securityModeConfig struct {
	PasswordMode string `json:"passwordMode"`
	Password     string `json:"password,omitempty"`
}

func NewSecurityMode(password string, mode PasswordMode) (SecurityMode, error) {
	switch mode {
	case PasswordModeNone:
		return SecurityMode{mode: mode}, nil
	case PasswordModeGenerated:
		return SecurityMode{mode: mode, password: password}, nil
	case PasswordModeManual:
		if password == "" {
			return SecurityMode{}, fmt.Errorf("manual password mode requires a password: %w", common.ErrInvalidSecurityMode)
		}

		return SecurityMode{mode: mode, password: password}, nil
	}

	return SecurityMode{}, fmt.Errorf("unknown password mode %d: %w", int(mode), common.ErrInvalidSecurityMode)
}

func NoPassword() SecurityMode {
	return SecurityMode{mode: PasswordModeNone}
}

func GeneratedPassword(password string) SecurityMode {
	return SecurityMode{mode: PasswordModeGenerated, password: password}
}

func ManualPassword(password string) (SecurityMode, error) {
	return NewSecurityMode(password, PasswordModeManual)
}

func (s SecurityMode) Mode() PasswordMode {
	return s.mode
}

func (s SecurityMode) Password() string {
	return s.password
}

// WithPassword returns a copy carrying password. Only generated modes take it.
func (s SecurityMode) WithPassword(password string) SecurityMode {
	if s.mode == PasswordModeGenerated {
		s.password = password
	}

	return s
}

func (s SecurityMode) data() securityModeData {
	cfg := securityModeConfig{PasswordMode: s.mode.String()}
	if s.mode != PasswordModeNone {
		cfg.Password = s.password
	}

	return securityModeData{Name: SecurityModeOneTimePassword, Config: cfg}
}

func (s SecurityMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.data())
}
