package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	a := HashKey("a@example.com")
	require.Len(t, a, 32)
	require.Equal(t, a, HashKey("a@example.com"))
	require.NotEqual(t, a, HashKey("b@example.com"))
	require.Len(t, ServerHash("https://cs.example.com"), 16)
}

func TestParseExpiration(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2024, 5, 22, 10, 0, 0, 0, loc)

	testCases := []struct {
		name        string
		value       string
		expected    time.Time
		expectError bool
	}{
		{name: "blank", value: "", expected: now.AddDate(0, 0, 2)},
		{name: "date", value: "2024-06-01", expected: time.Date(2024, 6, 1, 0, 0, 0, 0, loc)},
		{name: "german date", value: "01.06.2024", expected: time.Date(2024, 6, 1, 0, 0, 0, 0, loc)},
		{name: "rfc3339", value: "2024-06-01T12:30:00+02:00", expected: time.Date(2024, 6, 1, 12, 30, 0, 0, loc)},
		{name: "tomorrow", value: "tomorrow", expected: now.AddDate(0, 0, 1)},
		{name: "days", value: "3d", expected: now.AddDate(0, 0, 3)},
		{name: "weeks", value: "2w", expected: now.AddDate(0, 0, 14)},
		{name: "months", value: "1m", expected: now.AddDate(0, 0, 28)},
		{name: "garbage", value: "soon", expectError: true},
		{name: "bad unit", value: "3y", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseExpiration(tc.value, now, 2)
			if tc.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.True(t, tc.expected.Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}

func TestCleanStringList(t *testing.T) {
	require.Equal(t, []string{"a@x.de", "b@x.de"}, CleanStringList("a@x.de  b@x.de", "a@x.de", ""))
	require.Nil(t, CleanStringList(""))
}
