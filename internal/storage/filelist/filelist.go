package filelist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jgivc/csclient/internal/common"
	"github.com/spf13/afero"
)

const (
	maxFiles = 1000
)

// fileListStorage turns command line arguments into the list of files to upload.
// Arguments may be files, directories or glob patterns. Directories contribute
// their regular, non hidden files without descending.
type fileListStorage struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewFileListStorage(log *slog.Logger) *fileListStorage {
	return NewFileListStorageWithFS(afero.NewOsFs(), log)
}

func NewFileListStorageWithFS(fs afero.Fs, log *slog.Logger) *fileListStorage {
	return &fileListStorage{
		fs:  fs,
		log: log.With(slog.String("item", "FileListStorage")),
	}
}

func (s *fileListStorage) Expand(ctx context.Context, args ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) error {
		path = filepath.Clean(path)
		if _, exists := seen[path]; exists {
			return nil
		}

		if len(files) >= maxFiles {
			return fmt.Errorf("too many files, the limit is %d", maxFiles)
		}

		seen[path] = struct{}{}
		files = append(files, path)

		return nil
	}

	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		paths, err := s.resolve(arg)
		if err != nil {
			return nil, err
		}

		for _, path := range paths {
			if err := add(path); err != nil {
				return nil, err
			}
		}
	}

	if len(files) == 0 {
		return nil, common.ErrNoFiles
	}

	s.log.Debug("Files to upload", slog.Int("count", len(files)))

	return files, nil
}

func (s *fileListStorage) resolve(arg string) ([]string, error) {
	if strings.ContainsAny(arg, "*?[") {
		matches, err := afero.Glob(s.fs, arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}

		var paths []string
		for _, match := range matches {
			info, err := s.fs.Stat(match)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			paths = append(paths, match)
		}

		if len(paths) == 0 {
			s.log.Warn("Pattern matches no files", slog.String("pattern", arg))
		}

		return paths, nil
	}

	info, err := s.fs.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", arg, err)
	}

	if info.Mode().IsRegular() {
		return []string{arg}, nil
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a regular file", arg)
	}

	entries, err := afero.ReadDir(s.fs, arg)
	if err != nil {
		return nil, fmt.Errorf("cannot read dir %s: %w", arg, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		paths = append(paths, filepath.Join(arg, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

func (s *fileListStorage) TotalSize(paths []string) (int64, error) {
	var total int64
	for _, path := range paths {
		info, err := s.fs.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("cannot stat %s: %w", path, err)
		}

		total += info.Size()
	}

	return total, nil
}
