package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	"github.com/jgivc/csclient/internal/service/notification"
	"github.com/jgivc/csclient/internal/service/transfer"
	"github.com/jgivc/csclient/internal/validator"
	"github.com/spf13/afero"
)

const (
	serviceName = "workflow"

	DefaultExpirationDays = 7

	optionSendDownloadNotifications = "sendDownloadNotifications"
)

const (
	OutcomeSent Outcome = iota
	OutcomePolicyRejected
	OutcomePasswordRejected
)

type Outcome int

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomePolicyRejected:
		return "policy rejected"
	case OutcomePasswordRejected:
		return "password rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type API interface {
	transfer.API
	transfer.PolicyChecker
	GeneratedPassword(ctx context.Context) (string, error)
	ValidatePassword(ctx context.Context, password string) (bool, error)
	PasswordRules(ctx context.Context) ([]entity.PasswordRule, error)
	AvailableLanguages(ctx context.Context, productKey string) ([]string, error)
	Transfers(ctx context.Context, email string) ([]entity.TransferStatus, error)
}

type SenderVerifier interface {
	Verify(ctx context.Context, sender *entity.Sender, interactive bool) (*entity.Verification, error)
}

// SendRequest describes one transfer. An empty Password asks the server for a
// generated one, a zero Expiration means DefaultExpirationDays from now.
type SendRequest struct {
	Sender      entity.Sender
	Recipients  entity.Recipients
	Password    string
	Subject     string
	Message     string
	Language    string
	Expiration  time.Time
	Files       []string
	Options     map[string]any
	Interactive bool
}

// SendResult reports a sent transfer or the reason it was not sent. Rejections
// by policy or password rules are results, not errors.
type SendResult struct {
	Outcome       Outcome
	TrackingID    string
	Password      string
	Status        *entity.TransferStatus
	Policy        *entity.TransferPolicy
	PasswordRules []string
	Files         []*transfer.File
}

type StatusRequest struct {
	Sender      entity.Sender
	TrackingID  string
	Interactive bool
}

type workflowService struct {
	api      API
	verifier SenderVerifier
	detector notification.LanguageDetector
	fs       afero.Fs
	now      func() time.Time
	log      *slog.Logger
}

func NewWorkflowService(api API, verifier SenderVerifier, detector notification.LanguageDetector, fs afero.Fs, log *slog.Logger) *workflowService {
	return &workflowService{
		api:      api,
		verifier: verifier,
		detector: detector,
		fs:       fs,
		now:      time.Now,
		log:      log.With(slog.String("service", serviceName)),
	}
}

func (w *workflowService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	files, err := w.readFiles(req.Files)
	if err != nil {
		return nil, err
	}

	sender := req.Sender
	log := w.log.With(slog.String("sender", sender.Email))

	if _, err := w.verifier.Verify(ctx, &sender, req.Interactive); err != nil {
		return nil, err
	}

	mode, rules, err := w.securityMode(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	if rules != nil {
		log.Warn("Password is rejected by server")

		return &SendResult{Outcome: OutcomePasswordRejected, PasswordRules: rules}, nil
	}

	policy, err := w.api.Policy(ctx, sender.Email, req.Recipients.Emails())
	if err != nil {
		return nil, err
	}

	if !policy.IsAllowed() {
		log.Warn("Transfer is not allowed by policy", slog.Any("failed", policy.FailedEmailAddresses()))

		return &SendResult{Outcome: OutcomePolicyRejected, Policy: policy}, nil
	}

	if allowed := policy.AllowedSecurityModes(); len(allowed) > 0 && !policy.AllowsPasswordMode(mode.Mode()) {
		return nil, fmt.Errorf("%w: %s", common.ErrSecurityModeNotAllowed, mode.Mode())
	}

	settings := &entity.TransferSettings{
		Sender:       &sender,
		Notification: w.notification(ctx, req),
		SecurityMode: mode,
		Expiration:   w.expiration(req.Expiration, policy, log),
		Options:      options(req.Options),
	}

	session, err := transfer.NewSession(w.api, w.fs, w.api, settings, req.Recipients, w.log)
	if err != nil {
		return nil, err
	}

	err = transfer.Run(ctx, session, func(ctx context.Context, s *transfer.Session) error {
		if err := s.UpdateSettings(ctx, nil); err != nil {
			return err
		}

		for _, file := range files {
			if err := s.AddFile(ctx, file); err != nil {
				return err
			}
		}

		remote, err := s.RemoteSettings(ctx)
		if err != nil {
			return err
		}
		log.Debug("Transfer settings before send", slog.String("settings", string(remote)))

		_, err = s.Send(ctx)

		return err
	})
	if err != nil {
		log.Error("Cannot send transfer", slog.String("tracking_id", session.TrackingID()), slog.Any("error", err))

		return nil, err
	}

	res := &SendResult{
		Outcome:    OutcomeSent,
		TrackingID: session.TrackingID(),
		Password:   session.GeneratedPassword(),
		Policy:     policy,
		Files:      session.Files(),
	}

	status, err := session.Status(ctx)
	if err != nil {
		log.Warn("Cannot get transfer status", slog.Any("error", err))
	}
	res.Status = status

	log.Info("Transfer sent", slog.String("tracking_id", res.TrackingID), slog.Int("files", len(res.Files)))

	return res, nil
}

// readFiles reads every file up front so a bad path fails before the server is
// contacted.
func (w *workflowService) readFiles(paths []string) ([]*transfer.File, error) {
	files := make([]*transfer.File, 0, len(paths))
	for _, path := range paths {
		file, err := transfer.NewFile(w.fs, path)
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	return files, nil
}

// securityMode returns rules instead of a mode when a manual password is rejected.
func (w *workflowService) securityMode(ctx context.Context, password string) (entity.SecurityMode, []string, error) {
	if password == "" {
		generated, err := w.api.GeneratedPassword(ctx)
		if err != nil {
			return entity.SecurityMode{}, nil, err
		}

		return entity.GeneratedPassword(generated), nil, nil
	}

	valid, err := w.api.ValidatePassword(ctx, password)
	if err != nil {
		return entity.SecurityMode{}, nil, err
	}

	if !valid {
		rules, err := w.api.PasswordRules(ctx)
		if err != nil {
			return entity.SecurityMode{}, nil, err
		}

		return entity.SecurityMode{}, entity.DescribePasswordRules(rules), nil
	}

	mode, err := entity.ManualPassword(password)

	return mode, nil, err
}

func (w *workflowService) notification(ctx context.Context, req SendRequest) *entity.NotificationMessage {
	locales, err := w.api.AvailableLanguages(ctx, "")
	if err != nil {
		w.log.Warn("Cannot get available languages", slog.Any("error", err))
	}

	return notification.NewNotificationService(w.detector, locales, w.log).NewMessage(req.Message, req.Subject, req.Language)
}

func (w *workflowService) expiration(exp time.Time, policy *entity.TransferPolicy, log *slog.Logger) time.Time {
	now := w.now()
	if exp.IsZero() {
		exp = now.AddDate(0, 0, DefaultExpirationDays)
	}

	if days := policy.MaximumRetentionTime(); days > 0 {
		if limit := now.AddDate(0, 0, days); exp.After(limit) {
			log.Warn("Expiration exceeds retention period", slog.Int("days", days))

			return limit
		}
	}

	return exp
}

func options(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	out[optionSendDownloadNotifications] = true
	maps.Copy(out, in)

	return out
}

func validateRequest(req SendRequest) error {
	if req.Sender.Email == "" {
		return common.ErrMissingSender
	}

	if req.Recipients.Len() == 0 {
		return common.ErrNoRecipients
	}

	for _, email := range req.Recipients.Emails() {
		if !validator.IsValidEmail(email) {
			return fmt.Errorf("%w: %q", common.ErrInvalidRecipient, email)
		}
	}

	if !validator.IsValidSubject(req.Subject) {
		return fmt.Errorf("%w: %q", common.ErrInvalidSubject, req.Subject)
	}

	if len(req.Files) == 0 {
		return common.ErrNoFiles
	}

	return nil
}

// Status returns one transfer, or every transfer of the sender for a blank id.
func (w *workflowService) Status(ctx context.Context, req StatusRequest) ([]entity.TransferStatus, error) {
	sender := req.Sender
	if _, err := w.verifier.Verify(ctx, &sender, req.Interactive); err != nil {
		return nil, err
	}

	if req.TrackingID == "" {
		return w.api.Transfers(ctx, sender.Email)
	}

	session, err := transfer.Attach(w.api, &entity.TransferSettings{Sender: &sender}, req.TrackingID, w.log)
	if err != nil {
		return nil, err
	}

	status, err := session.Status(ctx)
	if err != nil {
		return nil, err
	}

	return []entity.TransferStatus{*status}, nil
}
