package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	"github.com/jgivc/csclient/internal/validator"
)

const (
	serviceName = "verification"
)

type API interface {
	RequestClientID(ctx context.Context) (string, error)
	SetClientID(id string)
	SetVerificationToken(token string)
	Verification(ctx context.Context, email string) (*entity.Verification, error)
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (string, error)
}

type TokenRepository interface {
	Token(ctx context.Context, email string) (string, error)
	SaveToken(ctx context.Context, email, token string) error
	DeleteToken(ctx context.Context, email string) error
	ClientID(ctx context.Context) (string, error)
	SaveClientID(ctx context.Context, id string) error
}

// CodePrompter asks the sender for the code that was mailed to email.
type CodePrompter interface {
	PromptCode(ctx context.Context, email string) (string, error)
}

type verificationService struct {
	api      API
	repo     TokenRepository
	prompter CodePrompter
	clientID string
	log      *slog.Logger
}

func NewVerificationService(api API, repo TokenRepository, prompter CodePrompter, log *slog.Logger) *verificationService {
	return &verificationService{
		api:      api,
		repo:     repo,
		prompter: prompter,
		log:      log.With(slog.String("service", serviceName)),
	}
}

/*
Verify makes sure the sender may create transfers. A stored token is tried first.
Without interactive the flow stops with ErrVerificationRequired instead of asking
for a code.
*/
func (v *verificationService) Verify(ctx context.Context, sender *entity.Sender, interactive bool) (*entity.Verification, error) {
	if sender == nil {
		return nil, common.ErrMissingSender
	}

	email := sender.Email
	if !validator.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidEmail, email)
	}

	log := v.log.With(slog.String("sender", email))

	if err := v.ensureClientID(ctx); err != nil {
		return nil, err
	}

	// An empty token also drops one left from another sender.
	stored := v.storedToken(ctx, email)
	v.api.SetVerificationToken(stored)

	verification, err := v.api.Verification(ctx, email)
	if err != nil {
		return nil, err
	}

	if verification.Verified {
		log.Info("Sender is verified", slog.String("valid_until", verification.ValidUntil))

		return verification, nil
	}

	if stored != "" {
		log.Info("Stored verification token is not valid anymore")
		v.api.SetVerificationToken("")

		if err := v.repo.DeleteToken(ctx, email); err != nil {
			log.Warn("Cannot delete verification token", slog.Any("error", err))
		}
	}

	if !interactive || v.prompter == nil {
		log.Warn("Sender is not verified")

		return nil, common.ErrVerificationRequired
	}

	return v.verifyByCode(ctx, email, log)
}

func (v *verificationService) verifyByCode(ctx context.Context, email string, log *slog.Logger) (*entity.Verification, error) {
	if err := v.api.RequestCode(ctx, email); err != nil {
		return nil, err
	}

	log.Info("Verification code requested")

	code, err := v.prompter.PromptCode(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("cannot read verification code: %w", err)
	}

	code = strings.TrimSpace(code)
	if !validator.IsValidVerificationCode(code) {
		return nil, common.ErrInvalidVerificationCode
	}

	token, err := v.api.VerifyCode(ctx, email, code)
	if err != nil {
		return nil, err
	}

	if err := v.repo.SaveToken(ctx, email, token); err != nil {
		log.Warn("Cannot save verification token", slog.Any("error", err))
	}

	verification, err := v.api.Verification(ctx, email)
	if err != nil {
		return nil, err
	}

	if !verification.Verified {
		log.Error("Sender verification failed")

		return nil, common.ErrVerificationFailed
	}

	log.Info("Sender is verified", slog.String("valid_until", verification.ValidUntil))

	return verification, nil
}

func (v *verificationService) ensureClientID(ctx context.Context) error {
	if v.clientID != "" {
		return nil
	}

	id, err := v.repo.ClientID(ctx)
	if err == nil {
		v.clientID = id
		v.api.SetClientID(id)

		return nil
	}

	if !errors.Is(err, common.ErrClientIDNotFound) {
		v.log.Warn("Cannot read client id", slog.Any("error", err))
	}

	id, err = v.api.RequestClientID(ctx)
	if err != nil {
		return err
	}

	v.clientID = id

	if err := v.repo.SaveClientID(ctx, id); err != nil {
		v.log.Warn("Cannot save client id", slog.Any("error", err))
	}

	return nil
}

func (v *verificationService) storedToken(ctx context.Context, email string) string {
	token, err := v.repo.Token(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrTokenNotFound) {
			v.log.Warn("Cannot read verification token", slog.Any("error", err))
		}

		return ""
	}

	return token
}
