package util

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

const (
	keyHashSize    = 16
	serverHashSize = 8
	daysPerMonth   = 28
)

var expirationLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
	"02.01.2006",
	"02.01.2006T15:04:05-0700",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04:05-0700",
	"02.01.2006 15:04:05 -0700",
}

// HashKey returns an opaque store key for str. It is not meant to protect str.
func HashKey(str string) string {
	return shake(str, keyHashSize)
}

func ServerHash(server string) string {
	return shake(server, serverHashSize)
}

func shake(str string, size int) string {
	sum := make([]byte, size)
	sha3.ShakeSum256(sum, []byte(str))

	return hex.EncodeToString(sum)
}

/*
ParseExpiration accepts absolute dates in several layouts and relative values:
"tomorrow", "<n>d", "<n>w" and "<n>m" (a month is four weeks). A blank value
means now plus defaultDays.
*/
func ParseExpiration(value string, now time.Time, defaultDays int) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.AddDate(0, 0, defaultDays), nil
	}

	for _, layout := range expirationLayouts {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t, nil
		}
	}

	if value == "tomorrow" {
		return now.AddDate(0, 0, 1), nil
	}

	unit := value[len(value)-1]
	n, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("cannot parse expiration %q", value)
	}

	switch unit {
	case 'd':
		return now.AddDate(0, 0, n), nil
	case 'w':
		return now.AddDate(0, 0, n*7), nil
	case 'm':
		return now.AddDate(0, 0, n*daysPerMonth), nil
	}

	return time.Time{}, fmt.Errorf("cannot parse expiration %q", value)
}

// CleanStringList splits space separated values and drops blanks and duplicates.
func CleanStringList(values ...string) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, value := range values {
		for _, item := range strings.Fields(value) {
			if _, exists := seen[item]; exists {
				continue
			}

			seen[item] = struct{}{}
			out = append(out, item)
		}
	}

	return out
}
