// Package validator holds side-effect free checks for user and server supplied values.
package validator

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	trackingIDTimeLayout = "20060102-150405"
	maxSubjectLength     = 250
)

var (
	emailRegexp            = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,7}$`)
	serverURLRegexp        = regexp.MustCompile(`^https?://[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,7}(:\d{1,5})?/?$`)
	trackingIDRegexp       = regexp.MustCompile(`^(\d{8}-\d{6})-.{8}$`)
	transferIDRegexp       = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
	verificationCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
)

func IsValidEmailOrBlank(email string) bool {
	if email == "" {
		return true
	}

	return emailRegexp.MatchString(email)
}

func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}

	return IsValidEmailOrBlank(email)
}

func IsValidServerURL(server string) bool {
	if strings.TrimSpace(server) == "" {
		return false
	}

	return serverURLRegexp.MatchString(server)
}

// IsValidTrackingIDOrBlank checks the YYYYMMDD-HHMMSS-xxxxxxxx shape and that the
// prefix is a real calendar timestamp.
func IsValidTrackingIDOrBlank(trackingID string) bool {
	if trackingID == "" {
		return true
	}

	m := trackingIDRegexp.FindStringSubmatch(trackingID)
	if m == nil {
		return false
	}

	_, err := time.Parse(trackingIDTimeLayout, m[1])

	return err == nil
}

func IsValidTrackingID(trackingID string) bool {
	if trackingID == "" {
		return false
	}

	return IsValidTrackingIDOrBlank(trackingID)
}

func IsValidTransferID(transferID string) bool {
	return transferIDRegexp.MatchString(transferID)
}

func IsValidVerificationCode(code string) bool {
	return verificationCodeRegexp.MatchString(code)
}

// IsValidSubject accepts blank subjects.
func IsValidSubject(subject string) bool {
	if !utf8.ValidString(subject) || utf8.RuneCountInString(subject) > maxSubjectLength {
		return false
	}

	for _, r := range subject {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}
