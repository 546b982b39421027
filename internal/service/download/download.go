package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jgivc/csclient/internal/adapter/csapi"
	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	"github.com/jgivc/csclient/internal/validator"
	"github.com/spf13/afero"
)

const (
	serviceName = "download"

	ArchiveZip = "zip"
	ArchiveEML = "eml"

	dirMode  = 0o755
	fileMode = 0o644
)

type API interface {
	Call(ctx context.Context, method, url string, payload any) (*csapi.Result, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Server() string
	TransferURL(transferID string) string
}

type downloadService struct {
	api API
	fs  afero.Fs
	log *slog.Logger
}

func NewDownloadService(api API, fs afero.Fs, log *slog.Logger) *downloadService {
	return &downloadService{
		api: api,
		fs:  fs,
		log: log.With(slog.String("service", serviceName)),
	}
}

func (d *downloadService) transferURL(transferID, password, suffix string) (string, error) {
	if !validator.IsValidTransferID(transferID) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidTransferID, transferID)
	}

	return d.api.TransferURL(transferID) + suffix + "?password=" + url.QueryEscape(password), nil
}

// Info returns the transfer description as the server sends it.
func (d *downloadService) Info(ctx context.Context, transferID, password string) (map[string]any, error) {
	u, err := d.transferURL(transferID, password, "")
	if err != nil {
		return nil, err
	}

	res, err := d.api.Call(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer %s info: %w", transferID, err)
	}

	var info map[string]any
	if err := res.Decode(&info); err != nil {
		return nil, fmt.Errorf("cannot get transfer %s info: %w", transferID, err)
	}

	return info, nil
}

func (d *downloadService) Files(ctx context.Context, transferID, password string) ([]entity.RemoteFile, error) {
	u, err := d.transferURL(transferID, password, "/files")
	if err != nil {
		return nil, err
	}

	res, err := d.api.Call(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer %s files: %w", transferID, err)
	}

	var files []entity.RemoteFile
	if len(res.Data) == 0 {
		return files, nil
	}

	if err := res.Decode(&files); err != nil {
		return nil, fmt.Errorf("cannot get transfer %s files: %w", transferID, err)
	}

	return files, nil
}

// DownloadAll writes every file of the transfer into dir and returns the paths.
func (d *downloadService) DownloadAll(ctx context.Context, transferID, password, dir string) ([]string, error) {
	files, err := d.Files(ctx, transferID, password)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path, err := d.downloadFile(ctx, file, dir)
		if err != nil {
			d.log.Error("Cannot download file", slog.String("transfer_id", transferID), slog.String("name", file.FileName), slog.Any("error", err))

			return paths, err
		}

		paths = append(paths, path)
	}

	d.log.Info("Transfer downloaded", slog.String("transfer_id", transferID), slog.Int("files", len(paths)), slog.String("dir", dir))

	return paths, nil
}

// DownloadArchive saves the whole transfer as <transfer id>.zip or .eml.
func (d *downloadService) DownloadArchive(ctx context.Context, transferID, password, kind, dir string) (string, error) {
	if kind != ArchiveZip && kind != ArchiveEML {
		return "", fmt.Errorf("unknown archive kind %q", kind)
	}

	u, err := d.transferURL(transferID, password, "/"+kind)
	if err != nil {
		return "", err
	}

	content, err := d.api.Download(ctx, u)
	if err != nil {
		return "", fmt.Errorf("cannot download transfer %s %s: %w", transferID, kind, err)
	}

	return d.save(dir, transferID+"."+kind, content)
}

func (d *downloadService) downloadFile(ctx context.Context, file entity.RemoteFile, dir string) (string, error) {
	href, err := d.fileURL(file.Href)
	if err != nil {
		d.log.Warn("Skip file location", slog.String("name", file.FileName), slog.String("href", file.Href))

		return "", fmt.Errorf("cannot download file %s: %w", file.FileName, err)
	}

	content, err := d.api.Download(ctx, href)
	if err != nil {
		return "", fmt.Errorf("cannot download file %s: %w", file.FileName, err)
	}

	if file.Size > 0 && int64(len(content)) != file.Size {
		d.log.Warn("File size mismatch", slog.String("name", file.FileName), slog.Int64("expected", file.Size), slog.Int("got", len(content)))
	}

	return d.save(dir, file.FileName, content)
}

// fileURL resolves a file href against the server. Absolute hrefs must point to
// the server itself, the client sends its credentials with every download.
func (d *downloadService) fileURL(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("cannot parse file location: %w", err)
	}

	if !u.IsAbs() && u.Host == "" {
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}

		return d.api.Server() + href, nil
	}

	server, err := url.Parse(d.api.Server())
	if err != nil {
		return "", fmt.Errorf("cannot parse server url: %w", err)
	}

	if !strings.EqualFold(u.Scheme, server.Scheme) || !strings.EqualFold(u.Host, server.Host) {
		return "", fmt.Errorf("%w: %s", common.ErrUntrustedLocation, u.Host)
	}

	return href, nil
}

func (d *downloadService) save(dir, name string, content []byte) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := d.fs.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("cannot create dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	if err := afero.WriteFile(d.fs, path, content, fileMode); err != nil {
		return "", fmt.Errorf("cannot write file %s: %w", path, err)
	}

	return path, nil
}
