package csapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/jgivc/csclient/internal/entity"
)

func (c *Client) RequestClientID(ctx context.Context) (string, error) {
	res, err := c.Call(ctx, http.MethodGet, c.server+pathClients, nil)
	if err != nil {
		return "", fmt.Errorf("cannot request client id: %w", err)
	}

	var body struct {
		ClientID string `json:"clientId"`
	}
	if err := res.Decode(&body); err != nil {
		return "", fmt.Errorf("cannot request client id: %w", err)
	}

	c.header.SetClientID(body.ClientID)

	return body.ClientID, nil
}

func (c *Client) Verification(ctx context.Context, email string) (*entity.Verification, error) {
	res, err := c.Call(ctx, http.MethodGet, c.UsersURL(email)+"/verification", nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get verification for %s: %w", email, err)
	}

	var v entity.Verification
	if err := res.Decode(&v); err != nil {
		return nil, fmt.Errorf("cannot get verification for %s: %w", email, err)
	}

	return &v, nil
}

func (c *Client) RequestCode(ctx context.Context, email string) error {
	if _, err := c.Call(ctx, http.MethodPost, c.UsersURL(email)+"/verification/code/email", nil); err != nil {
		return fmt.Errorf("cannot request verification code for %s: %w", email, err)
	}

	return nil
}

// VerifyCode exchanges a code for a verification token and uses it for later requests.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (string, error) {
	res, err := c.Call(ctx, http.MethodPost, c.UsersURL(email)+"/verification/token", map[string]string{"verificationCode": code})
	if err != nil {
		return "", fmt.Errorf("cannot verify code for %s: %w", email, err)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := res.Decode(&body); err != nil {
		return "", fmt.Errorf("cannot verify code for %s: %w", email, err)
	}

	c.header.SetVerificationToken(body.Token)

	return body.Token, nil
}

func (c *Client) Policy(ctx context.Context, email string, recipients []string) (*entity.TransferPolicy, error) {
	if recipients == nil {
		recipients = []string{}
	}

	res, err := c.Call(ctx, http.MethodPost, c.UsersURL(email)+"/transfer-policy", map[string][]string{"recipients": recipients})
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer policy: %w", err)
	}

	policy, err := entity.NewTransferPolicy(res.Data)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Got transfer policy", slog.Bool("allowed", policy.IsAllowed()), slog.Int("recipients", len(recipients)))

	return policy, nil
}

func (c *Client) GeneratedPassword(ctx context.Context) (string, error) {
	res, err := c.Call(ctx, http.MethodGet, c.server+pathPassword, nil)
	if err != nil {
		return "", fmt.Errorf("cannot get generated password: %w", err)
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := res.Decode(&body); err != nil {
		return "", fmt.Errorf("cannot get generated password: %w", err)
	}

	return body.Password, nil
}

func (c *Client) ValidatePassword(ctx context.Context, password string) (bool, error) {
	res, err := c.Call(ctx, http.MethodPost, c.server+pathPassword, map[string]string{"password": password})
	if err != nil {
		return false, fmt.Errorf("cannot validate password: %w", err)
	}

	var body struct {
		Valid bool `json:"valid"`
	}
	if err := res.Decode(&body); err != nil {
		return false, fmt.Errorf("cannot validate password: %w", err)
	}

	return body.Valid, nil
}

func (c *Client) PasswordRules(ctx context.Context) ([]entity.PasswordRule, error) {
	res, err := c.Call(ctx, http.MethodGet, c.server+pathPasswordRequirements, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get password rules: %w", err)
	}

	var rules []entity.PasswordRule
	if err := res.Decode(&rules); err != nil {
		return nil, fmt.Errorf("cannot get password rules: %w", err)
	}

	return rules, nil
}

// AvailableLanguages returns the distinct locales of the installed language packs.
func (c *Client) AvailableLanguages(ctx context.Context, productKey string) ([]string, error) {
	if productKey == "" {
		productKey = ProductKey
	}

	res, err := c.Call(ctx, http.MethodGet, c.server+pathProducts+url.PathEscape(productKey)+"/language-packs", nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get language packs: %w", err)
	}

	var packs []struct {
		Locale string `json:"locale"`
	}
	if err := res.Decode(&packs); err != nil {
		return nil, fmt.Errorf("cannot get language packs: %w", err)
	}

	seen := make(map[string]struct{}, len(packs))
	locales := make([]string, 0, len(packs))
	for _, pack := range packs {
		if _, exists := seen[pack.Locale]; exists || pack.Locale == "" {
			continue
		}

		seen[pack.Locale] = struct{}{}
		locales = append(locales, pack.Locale)
	}
	sort.Strings(locales)

	return locales, nil
}

func (c *Client) Transfers(ctx context.Context, email string) ([]entity.TransferStatus, error) {
	res, err := c.Call(ctx, http.MethodGet, c.TransfersURL(email), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfers: %w", err)
	}

	var transfers []entity.TransferStatus
	if len(res.Data) == 0 {
		return transfers, nil
	}

	if err := res.Decode(&transfers); err != nil {
		return nil, fmt.Errorf("cannot get transfers: %w", err)
	}

	return transfers, nil
}

func (c *Client) TransferStatus(ctx context.Context, email, trackingID string) (*entity.TransferStatus, error) {
	res, err := c.Call(ctx, http.MethodGet, c.StatusURL(email, trackingID), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer %s status: %w", trackingID, err)
	}

	return DecodeStatus(res, trackingID)
}

func DecodeStatus(res *Result, trackingID string) (*entity.TransferStatus, error) {
	status := &entity.TransferStatus{TrackingID: trackingID}
	if res == nil || len(res.Data) == 0 {
		return status, nil
	}

	if err := res.Decode(status); err != nil {
		return nil, err
	}

	if status.TrackingID == "" {
		status.TrackingID = trackingID
	}
	status.Raw = res.Data

	return status, nil
}

func (c *Client) TransferURL(transferID string) string {
	return c.server + pathTransfers + url.PathEscape(transferID)
}
