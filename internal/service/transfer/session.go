package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jgivc/csclient/internal/adapter/csapi"
	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	"github.com/jgivc/csclient/internal/validator"
	"github.com/spf13/afero"
)

const (
	StateClosed State = iota
	StateOpen
)

type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type API interface {
	Call(ctx context.Context, method, url string, payload any) (*csapi.Result, error)
	Upload(ctx context.Context, url string, content []byte) (*csapi.Result, error)
	SessionsURL(email string) string
	StatusURL(email, trackingID string) string
}

type PolicyChecker interface {
	Policy(ctx context.Context, email string, recipients []string) (*entity.TransferPolicy, error)
}

type openData struct {
	Sender     *entity.Sender    `json:"sender"`
	Recipients entity.Recipients `json:"recipients"`
}

/*
Session is a transfer session on the server. It starts closed, is open after Open
and is closed for good after Send or Abort. It is not safe for concurrent use.
*/
type Session struct {
	api    API
	fs     afero.Fs
	policy PolicyChecker

	settings          *entity.TransferSettings
	recipients        entity.Recipients
	email             string
	trackingID        string
	url               string
	state             State
	finished          bool
	files             []*File
	generatedPassword string

	log *slog.Logger
}

// NewSession creates a closed session. policy may be nil, then recipient changes
// are not checked against the server.
func NewSession(api API, fs afero.Fs, policy PolicyChecker, settings *entity.TransferSettings, recipients entity.Recipients, log *slog.Logger) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := validateRecipients(recipients); err != nil {
		return nil, err
	}

	s := &Session{
		api:        api,
		fs:         fs,
		policy:     policy,
		settings:   settings,
		recipients: recipients,
		email:      settings.Sender.Email,
		log:        log.With(slog.String("item", "TransferSession")),
	}

	if settings.SecurityMode.Mode() == entity.PasswordModeGenerated {
		s.generatedPassword = settings.SecurityMode.Password()
	}

	return s, nil
}

// Attach returns a finished session for a transfer that already exists on the
// server. Only Status can be used on it.
func Attach(api API, settings *entity.TransferSettings, trackingID string, log *slog.Logger) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if !validator.IsValidTrackingID(trackingID) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidTrackingID, trackingID)
	}

	return &Session{
		api:        api,
		settings:   settings,
		trackingID: trackingID,
		email:      settings.Sender.Email,
		finished:   true,
		log:        log.With(slog.String("item", "TransferSession"), slog.String("tracking_id", trackingID)),
	}, nil
}

func (s *Session) TrackingID() string {
	return s.trackingID
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Files() []*File {
	return append([]*File(nil), s.files...)
}

func (s *Session) Recipients() entity.Recipients {
	return s.recipients
}

func (s *Session) Settings() *entity.TransferSettings {
	return s.settings
}

func (s *Session) GeneratedPassword() string {
	if s.settings.SecurityMode.Mode() != entity.PasswordModeGenerated {
		return ""
	}

	return s.generatedPassword
}

// SetGeneratedPassword is ignored unless the security mode is generated.
func (s *Session) SetGeneratedPassword(password string) {
	if s.settings.SecurityMode.Mode() != entity.PasswordModeGenerated {
		return
	}

	s.generatedPassword = password
	s.settings.SecurityMode = s.settings.SecurityMode.WithPassword(password)
}

func (s *Session) requireOpen() error {
	if s.state != StateOpen {
		return common.ErrSessionNotOpen
	}

	return nil
}

func (s *Session) Open(ctx context.Context) error {
	if s.state == StateOpen {
		return common.ErrAlreadyOpen
	}

	if s.finished {
		return common.ErrSessionFinished
	}

	url := s.api.SessionsURL(s.email)
	s.log.Info("Open transfer session", slog.String("sender", s.email), slog.Int("recipients", s.recipients.Len()))

	res, err := s.api.Call(ctx, http.MethodPost, url, &openData{Sender: s.settings.Sender, Recipients: s.recipients})
	if err != nil {
		return fmt.Errorf("cannot open transfer session: %w", err)
	}

	trackingID, err := TrackingIDFromLocation(res.Location)
	if err != nil {
		s.log.Error("Cannot get tracking id", slog.String("location", res.Location), slog.Any("error", err))

		return fmt.Errorf("cannot open transfer session: %w", err)
	}

	s.trackingID = trackingID
	s.url = url + "/" + trackingID
	s.state = StateOpen
	s.log = s.log.With(slog.String("tracking_id", trackingID))
	s.log.Info("Transfer session is open")

	return nil
}

// TrackingIDFromLocation takes the last path segment of a session location.
func TrackingIDFromLocation(location string) (string, error) {
	trackingID := lastSegment(location)
	if trackingID == "" {
		return "", common.ErrMissingTrackingID
	}

	if !validator.IsValidTrackingID(trackingID) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidTrackingID, trackingID)
	}

	return trackingID, nil
}

// UpdateSettings sends settings, or the current ones when settings is nil. The
// session stays addressed under the sender it was opened with.
func (s *Session) UpdateSettings(ctx context.Context, settings *entity.TransferSettings) error {
	if err := s.requireOpen(); err != nil {
		return err
	}

	if settings == nil {
		settings = s.settings
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	s.log.Info("Update transfer settings")

	if _, err := s.api.Call(ctx, http.MethodPatch, s.url, settings); err != nil {
		return fmt.Errorf("cannot update transfer settings: %w", err)
	}

	s.settings = settings
	if settings.SecurityMode.Mode() == entity.PasswordModeGenerated && settings.SecurityMode.Password() != "" {
		s.generatedPassword = settings.SecurityMode.Password()
	}

	return nil
}

// RemoteSettings returns the settings as the server sees them.
func (s *Session) RemoteSettings(ctx context.Context) (json.RawMessage, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	res, err := s.api.Call(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer settings: %w", err)
	}

	return res.Data, nil
}

func (s *Session) UploadFile(ctx context.Context, path string) (*File, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	file, err := NewFile(s.fs, path)
	if err != nil {
		return nil, err
	}

	if err := s.AddFile(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// AddFile announces and uploads a file that was read before, see NewFile.
func (s *Session) AddFile(ctx context.Context, file *File) error {
	if err := s.requireOpen(); err != nil {
		return err
	}

	if file.IsAnnounced() {
		return fmt.Errorf("cannot add file %s: %w", file.Name, common.ErrFileAlreadyAnnounced)
	}

	if err := file.Announce(ctx, s.api, s.url+"/files", s.log); err != nil {
		return err
	}

	if err := file.UploadContent(ctx, s.api, s.log); err != nil {
		if derr := file.Delete(ctx, s.api, s.log); derr != nil {
			s.log.Error("Cannot delete announced file", slog.String("name", file.Name), slog.Any("error", derr))
		}

		return err
	}

	s.files = append(s.files, file)

	return nil
}

func (s *Session) DeleteFile(ctx context.Context, file *File) error {
	if err := s.requireOpen(); err != nil {
		return err
	}

	idx := -1
	for i := range s.files {
		if s.files[i] == file {
			idx = i

			break
		}
	}

	if idx < 0 {
		return common.ErrFileNotFound
	}

	if err := file.Delete(ctx, s.api, s.log); err != nil {
		return err
	}

	s.files = append(s.files[:idx], s.files[idx+1:]...)

	return nil
}

// Send finalizes the transfer. The session can not be used afterwards.
func (s *Session) Send(ctx context.Context) (*entity.TransferStatus, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	s.log.Info("Send transfer", slog.Int("files", len(s.files)))

	res, err := s.api.Call(ctx, http.MethodPost, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot send transfer: %w", err)
	}

	s.state = StateClosed
	s.finished = true

	return csapi.DecodeStatus(res, s.trackingID)
}

// Status works in every state, the status resource outlives the session.
func (s *Session) Status(ctx context.Context) (*entity.TransferStatus, error) {
	if s.trackingID == "" {
		return nil, common.ErrMissingTrackingID
	}

	res, err := s.api.Call(ctx, http.MethodGet, s.api.StatusURL(s.email, s.trackingID), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer status: %w", err)
	}

	return csapi.DecodeStatus(res, s.trackingID)
}

// Abort deletes the open session on the server and drops its files.
func (s *Session) Abort(ctx context.Context) error {
	if err := s.requireOpen(); err != nil {
		return err
	}

	s.log.Info("Abort transfer session")

	if _, err := s.api.Call(ctx, http.MethodDelete, s.url, nil); err != nil {
		return fmt.Errorf("cannot delete transfer session: %w", err)
	}

	s.state = StateClosed
	s.finished = true
	s.files = nil

	return nil
}

// Close aborts an open session and does nothing otherwise.
func (s *Session) Close(ctx context.Context) error {
	if s.state != StateOpen {
		return nil
	}

	return s.Abort(ctx)
}

/*
Run opens the session, calls fn and closes the session on every path. A session
that fn did not send is aborted.
*/
func Run(ctx context.Context, s *Session, fn func(ctx context.Context, s *Session) error) (err error) {
	if err := s.Open(ctx); err != nil {
		return err
	}

	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.log.Error("Cannot close transfer session", slog.Any("error", cerr))

			if err == nil {
				err = cerr
			}
		}
	}()

	return fn(ctx, s)
}

// SetRecipients replaces the recipients of a session that is not open yet. With a
// policy checker the new set is checked first; a rejected set is not applied and
// the policy is returned.
func (s *Session) SetRecipients(ctx context.Context, recipients entity.Recipients) (*entity.TransferPolicy, error) {
	if s.finished {
		return nil, common.ErrSessionFinished
	}

	if s.state == StateOpen {
		return nil, common.ErrAlreadyOpen
	}

	if err := validateRecipients(recipients); err != nil {
		return nil, err
	}

	var policy *entity.TransferPolicy
	if s.policy != nil {
		p, err := s.policy.Policy(ctx, s.email, recipients.Emails())
		if err != nil {
			return nil, fmt.Errorf("cannot check recipients: %w", err)
		}

		if !p.IsAllowed() {
			s.log.Warn("Recipients are not allowed by policy", slog.Int("recipients", recipients.Len()))

			return p, nil
		}

		policy = p
	}

	s.recipients = recipients

	return policy, nil
}

func (s *Session) SetTo(ctx context.Context, emails []string) (*entity.TransferPolicy, error) {
	r := s.recipients
	r.To = entity.ToRecipients(emails)

	return s.SetRecipients(ctx, r)
}

func (s *Session) SetCc(ctx context.Context, emails []string) (*entity.TransferPolicy, error) {
	r := s.recipients
	r.Cc = entity.ToRecipients(emails)

	return s.SetRecipients(ctx, r)
}

func (s *Session) SetBcc(ctx context.Context, emails []string) (*entity.TransferPolicy, error) {
	r := s.recipients
	r.Bcc = entity.ToRecipients(emails)

	return s.SetRecipients(ctx, r)
}

func validateRecipients(recipients entity.Recipients) error {
	for _, email := range recipients.Emails() {
		if !validator.IsValidEmail(email) {
			return fmt.Errorf("%w: %q", common.ErrInvalidRecipient, email)
		}
	}

	return nil
}
