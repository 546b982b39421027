package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/util"
	"github.com/spf13/afero"
)

const (
	KeyClientID = "X-CS-ClientId"

	storeFileMode = 0o600
)

/*
fileRepository keeps tokens in one JSON object per server:
{"<hashed email>": "<token>", "X-CS-ClientId": "<client id>"}
*/
type fileRepository struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	log  *slog.Logger
}

func NewFileRepository(basePath, server string, log *slog.Logger) *fileRepository {
	return NewFileRepositoryWithFS(afero.NewOsFs(), basePath, server, log)
}

func NewFileRepositoryWithFS(fs afero.Fs, basePath, server string, log *slog.Logger) *fileRepository {
	return &fileRepository{
		fs:   fs,
		path: StorePath(basePath, server),
		log:  log.With(slog.String("item", "FileTokenRepository")),
	}
}

// StorePath puts the server hash between name and extension: store.json -> store_<hash>.json.
func StorePath(basePath, server string) string {
	ext := filepath.Ext(basePath)

	return strings.TrimSuffix(basePath, ext) + "_" + util.ServerHash(server) + ext
}

func (r *fileRepository) Path() string {
	return r.path
}

func (r *fileRepository) Token(_ context.Context, email string) (string, error) {
	return r.get(util.HashKey(email), common.ErrTokenNotFound)
}

func (r *fileRepository) SaveToken(_ context.Context, email, token string) error {
	return r.set(util.HashKey(email), token)
}

func (r *fileRepository) DeleteToken(_ context.Context, email string) error {
	return r.set(util.HashKey(email), "")
}

func (r *fileRepository) ClientID(_ context.Context) (string, error) {
	return r.get(KeyClientID, common.ErrClientIDNotFound)
}

func (r *fileRepository) SaveClientID(_ context.Context, id string) error {
	return r.set(KeyClientID, id)
}

func (r *fileRepository) get(key string, notFound error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return "", err
	}

	value, exists := data[key]
	if !exists || value == "" {
		return "", notFound
	}

	return value, nil
}

// set removes key when value is empty.
func (r *fileRepository) set(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return err
	}

	if value == "" {
		delete(data, key)
	} else {
		data[key] = value
	}

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode token store: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create token store dir: %w", err)
		}
	}

	if err := afero.WriteFile(r.fs, r.path, content, storeFileMode); err != nil {
		r.log.Error("Cannot write token store", slog.String("path", r.path), slog.Any("error", err))

		return fmt.Errorf("cannot write token store %s: %w", r.path, err)
	}

	return nil
}

func (r *fileRepository) load() (map[string]string, error) {
	data := make(map[string]string)

	content, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}

		return nil, fmt.Errorf("cannot read token store %s: %w", r.path, err)
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(content, &data); err != nil {
		r.log.Error("Cannot decode token store", slog.String("path", r.path), slog.Any("error", err))

		return nil, fmt.Errorf("cannot decode token store %s: %w", r.path, err)
	}

	return data, nil
}
