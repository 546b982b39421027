package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jgivc/csclient/internal/common"
	"github.com/spf13/afero"
)

// File is one file of a transfer session. The content is read once when the file
// is created; size, checksum and the uploaded bytes all come from that read. The
// checksum is not verified again after the upload.
type File struct {
	Path     string
	Name     string
	Size     int64
	Checksum string

	content  []byte
	remoteID string
	location string
}

type fileData struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

func NewFile(fs afero.Fs, path string) (*File, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", path, err)
	}

	sum := sha256.Sum256(content)

	return &File{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     int64(len(content)),
		Checksum: hex.EncodeToString(sum[:]),
		content:  content,
	}, nil
}

func (f *File) RemoteID() string {
	return f.remoteID
}

func (f *File) IsAnnounced() bool {
	return f.remoteID != ""
}

func (f *File) data() fileData {
	return fileData{FileName: f.Name, Size: f.Size, Checksum: f.Checksum}
}

// Announce registers the file metadata in the file collection of a session.
func (f *File) Announce(ctx context.Context, api API, filesURL string, log *slog.Logger) error {
	log.Info("Announce file", slog.String("name", f.Name), slog.Int64("size", f.Size))

	res, err := api.Call(ctx, http.MethodPost, filesURL, f.data())
	if err != nil {
		return fmt.Errorf("cannot announce file %s: %w", f.Name, err)
	}

	id := lastSegment(res.Location)
	if id == "" {
		log.Error("No file id in location", slog.String("name", f.Name), slog.String("location", res.Location))

		return fmt.Errorf("cannot announce file %s: %w", f.Name, common.ErrMissingFileID)
	}

	f.remoteID = id
	f.location = strings.TrimRight(filesURL, "/") + "/" + id

	return nil
}

func (f *File) UploadContent(ctx context.Context, api API, log *slog.Logger) error {
	if !f.IsAnnounced() {
		return fmt.Errorf("cannot upload file %s: %w", f.Name, common.ErrFileNotAnnounced)
	}

	log.Info("Upload file content", slog.String("name", f.Name), slog.String("file_id", f.remoteID))

	if _, err := api.Upload(ctx, f.location+"/content", f.content); err != nil {
		return fmt.Errorf("cannot upload file %s: %w", f.Name, err)
	}

	return nil
}

func (f *File) Delete(ctx context.Context, api API, log *slog.Logger) error {
	if !f.IsAnnounced() {
		return fmt.Errorf("cannot delete file %s: %w", f.Name, common.ErrFileNotAnnounced)
	}

	log.Info("Delete file", slog.String("name", f.Name), slog.String("file_id", f.remoteID))

	if _, err := api.Call(ctx, http.MethodDelete, f.location, nil); err != nil {
		return fmt.Errorf("cannot delete file %s: %w", f.Name, err)
	}

	f.remoteID = ""
	f.location = ""

	return nil
}

func lastSegment(location string) string {
	location = strings.TrimSpace(location)
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}

	return location[strings.LastIndex(location, "/")+1:]
}
