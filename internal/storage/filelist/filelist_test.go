package filelist

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jgivc/csclient/internal/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	files := map[string]string{
		"/data/a.txt":         "aaa",
		"/data/b.txt":         "bb",
		"/data/.hidden":       "h",
		"/data/sub/c.txt":     "c",
		"/data/report.pdf":    "pdf",
		"/other/d.txt":        "dddd",
		"/other/nested/e.txt": "e",
	}

	testCases := []struct {
		name        string
		args        []string
		expected    []string
		expectedErr error
		expectError bool
	}{
		{
			name:     "single file",
			args:     []string{"/other/d.txt"},
			expected: []string{"/other/d.txt"},
		},
		{
			name:     "directory",
			args:     []string{"/data"},
			expected: []string{"/data/a.txt", "/data/b.txt", "/data/report.pdf"},
		},
		{
			name:     "pattern",
			args:     []string{"/data/*.txt"},
			expected: []string{"/data/a.txt", "/data/b.txt"},
		},
		{
			name:     "duplicates",
			args:     []string{"/data/a.txt", "/data/*.txt", "/data/./a.txt"},
			expected: []string{"/data/a.txt", "/data/b.txt"},
		},
		{
			name:        "missing",
			args:        []string{"/nope.txt"},
			expectError: true,
		},
		{
			name:        "nothing matched",
			args:        []string{"/data/*.doc"},
			expectedErr: common.ErrNoFiles,
		},
		{
			name:        "no args",
			expectedErr: common.ErrNoFiles,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for path, content := range files {
				require.NoError(t, afero.WriteFile(fs, path, []byte(content), os.ModePerm))
			}

			s := NewFileListStorageWithFS(fs, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))

			paths, err := s.Expand(context.Background(), tc.args...)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}

			if tc.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, paths)
		})
	}
}

func TestTotalSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a", []byte("123"), os.ModePerm))
	require.NoError(t, afero.WriteFile(fs, "/b", []byte("45"), os.ModePerm))

	s := NewFileListStorageWithFS(fs, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))

	size, err := s.TotalSize([]string{"/a", "/b"})
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	_, err = s.TotalSize([]string{"/c"})
	require.Error(t, err)
}
