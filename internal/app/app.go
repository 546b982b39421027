package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jgivc/csclient/internal/adapter/csapi"
	"github.com/jgivc/csclient/internal/adapter/httpadapter"
	"github.com/jgivc/csclient/internal/adapter/langadapter"
	"github.com/jgivc/csclient/internal/adapter/mdadapter"
	"github.com/jgivc/csclient/internal/config"
	"github.com/jgivc/csclient/internal/entity"
	repository "github.com/jgivc/csclient/internal/repository/verification"
	"github.com/jgivc/csclient/internal/service/download"
	"github.com/jgivc/csclient/internal/service/verification"
	"github.com/jgivc/csclient/internal/service/workflow"
	"github.com/jgivc/csclient/internal/storage/filelist"
	"github.com/jgivc/csclient/internal/util"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	pingTimeout = 5 * time.Second
)

type SendOptions struct {
	To          []string
	Cc          []string
	Bcc         []string
	Password    string
	Subject     string
	Message     string
	MessageFile string
	Language    string
	Expiration  string
	Files       []string
	Interactive bool
}

type App struct {
	cfg      *config.Config
	client   *csapi.Client
	workflow interface {
		Send(ctx context.Context, req workflow.SendRequest) (*workflow.SendResult, error)
		Status(ctx context.Context, req workflow.StatusRequest) ([]entity.TransferStatus, error)
	}
	download interface {
		DownloadAll(ctx context.Context, transferID, password, dir string) ([]string, error)
		DownloadArchive(ctx context.Context, transferID, password, kind, dir string) (string, error)
	}
	messages interface {
		Load(path string) (*entity.NotificationMessage, error)
	}
	files interface {
		Expand(ctx context.Context, args ...string) ([]string, error)
	}
	rdb *redis.Client
	log *slog.Logger
}

func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}

func New(cfg *config.Config, prompter verification.CodePrompter) (*App, error) {
	return NewWithFS(cfg, afero.NewOsFs(), prompter, os.Stderr)
}

func NewWithFS(cfg *config.Config, fs afero.Fs, prompter verification.CodePrompter, logW io.Writer) (*App, error) {
	log, err := NewLogger(cfg.LogLevel, logW)
	if err != nil {
		return nil, err
	}

	client, err := csapi.NewClient(cfg.Server, cfg.APIVersion, httpadapter.NewHTTPAdapter(cfg.Timeout, !cfg.Insecure), log)
	if err != nil {
		return nil, fmt.Errorf("cannot create api client: %w", err)
	}

	a := &App{
		cfg:    cfg,
		client: client,
		log:    log,
	}

	repo, err := a.tokenRepository(fs)
	if err != nil {
		return nil, err
	}

	verifier := verification.NewVerificationService(client, repo, prompter, log)
	a.workflow = workflow.NewWorkflowService(client, verifier, langadapter.NewLangAdapter(), fs, log)
	a.download = download.NewDownloadService(client, fs, log)
	a.messages = mdadapter.NewMDAdapterWithFS(fs, log)
	a.files = filelist.NewFileListStorageWithFS(fs, log)

	return a, nil
}

func (a *App) tokenRepository(fs afero.Fs) (verification.TokenRepository, error) {
	if a.cfg.Store.RedisURL == "" {
		a.log.Debug("Use file token store", slog.String("path", repository.StorePath(a.cfg.Store.Path, a.cfg.Server)))

		return repository.NewFileRepositoryWithFS(fs, a.cfg.Store.Path, a.cfg.Server, a.log), nil
	}

	opt, err := redis.ParseURL(a.cfg.Store.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}

	a.rdb = rdb
	a.log.Debug("Use redis token store", slog.String("addr", opt.Addr))

	return repository.NewRedisRepository(rdb, a.cfg.Server, a.log), nil
}

func (a *App) sender() entity.Sender {
	return entity.Sender{
		Name:     a.cfg.Sender.Name,
		Phone:    a.cfg.Sender.Phone,
		Email:    a.cfg.Sender.Email,
		Language: a.cfg.Sender.Language,
	}
}

func (a *App) Send(ctx context.Context, opts SendOptions) (*workflow.SendResult, error) {
	files, err := a.files.Expand(ctx, opts.Files...)
	if err != nil {
		return nil, err
	}

	req := workflow.SendRequest{
		Sender:      a.sender(),
		Recipients:  entity.NewRecipients(cleanList(opts.To), cleanList(opts.Cc), cleanList(opts.Bcc)),
		Password:    opts.Password,
		Subject:     opts.Subject,
		Message:     opts.Message,
		Language:    opts.Language,
		Files:       files,
		Interactive: opts.Interactive,
	}

	if opts.MessageFile != "" {
		msg, err := a.messages.Load(opts.MessageFile)
		if err != nil {
			return nil, err
		}

		if req.Subject == "" {
			req.Subject = msg.Subject
		}

		if req.Message == "" {
			req.Message = msg.Body
		}

		if req.Language == "" {
			req.Language = msg.Language
		}
	}

	if req.Expiration, err = util.ParseExpiration(opts.Expiration, time.Now(), a.cfg.ExpirationDays); err != nil {
		return nil, err
	}

	return a.workflow.Send(ctx, req)
}

func (a *App) Status(ctx context.Context, trackingID string, interactive bool) ([]entity.TransferStatus, error) {
	return a.workflow.Status(ctx, workflow.StatusRequest{
		Sender:      a.sender(),
		TrackingID:  trackingID,
		Interactive: interactive,
	})
}

// Download saves the transfer files, or one archive when archive is zip or eml.
func (a *App) Download(ctx context.Context, transferID, password, dir, archive string) ([]string, error) {
	if dir == "" {
		dir = a.cfg.DownloadDir
	}

	if archive == "" {
		return a.download.DownloadAll(ctx, transferID, password, dir)
	}

	path, err := a.download.DownloadArchive(ctx, transferID, password, archive, dir)
	if err != nil {
		return nil, err
	}

	return []string{path}, nil
}

func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Cannot close redis client", slog.Any("error", err))
		}
	}
}

func cleanList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		items = append(items, strings.ReplaceAll(value, ",", " "))
	}

	return util.CleanStringList(items...)
}
