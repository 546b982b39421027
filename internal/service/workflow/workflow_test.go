package workflow

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jgivc/csclient/internal/adapter/csapi"
	"github.com/jgivc/csclient/internal/adapter/csapi/csapitest"
	"github.com/jgivc/csclient/internal/adapter/httpadapter"
	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(context.Context, *entity.Sender, bool) (*entity.Verification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return &entity.Verification{Verified: true}, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(string) ([]entity.LanguageProbability, error) {
	return []entity.LanguageProbability{{Language: "de", Probability: 0.99}}, nil
}

type testEnv struct {
	srv      *csapitest.Server
	fs       afero.Fs
	verifier *fakeVerifier
	svc      *workflowService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := csapitest.NewServer()
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	cl, err := csapi.NewClient(srv.URL, "", httpadapter.NewHTTPAdapter(5*time.Second, true), log)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.txt", []byte("0123456789"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/b.txt", []byte("abcdef"), 0o644))

	verifier := &fakeVerifier{}

	return &testEnv{
		srv:      srv,
		fs:       fs,
		verifier: verifier,
		svc:      NewWorkflowService(cl, verifier, fakeDetector{}, fs, log),
	}
}

func newRequest() SendRequest {
	return SendRequest{
		Sender:     entity.Sender{Name: "A", Phone: "0", Email: "a@example.com"},
		Recipients: entity.NewRecipients([]string{"b@example.com"}, []string{"c@example.com"}, nil),
		Subject:    "Unterlagen",
		Message:    "Hallo, anbei die Unterlagen",
		Files:      []string{"/data/a.txt", "/data/b.txt"},
	}
}

func hasRequest(srv *csapitest.Server, method, contains string) bool {
	for _, req := range srv.RequestLog() {
		if strings.HasPrefix(req, method+" ") && strings.Contains(req, contains) {
			return true
		}
	}

	return false
}

func TestSendGeneratedPassword(t *testing.T) {
	env := newEnv(t)

	res, err := env.svc.Send(context.Background(), newRequest())
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, res.Outcome)
	require.Equal(t, env.srv.TrackingID, res.TrackingID)
	require.Equal(t, env.srv.GeneratedPassword, res.Password)
	require.Equal(t, "SENT", res.Status.Status)
	require.Len(t, res.Files, 2)
	require.Equal(t, 1, env.verifier.calls)

	require.False(t, hasRequest(env.srv, http.MethodDelete, "/transfer-sessions/"))
	require.True(t, hasRequest(env.srv, http.MethodPatch, "/transfer-sessions/"+env.srv.TrackingID))
}

func TestSendFailureAbortsSession(t *testing.T) {
	testCases := []struct {
		name   string
		method string
		suffix string
	}{
		{name: "send", method: http.MethodPost, suffix: "/transfer-sessions/20240522-065711-H8UoUSI6"},
		{name: "remote settings", method: http.MethodGet, suffix: "/transfer-sessions/20240522-065711-H8UoUSI6"},
		{name: "content", method: http.MethodPut, suffix: "/content"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t)
			env.srv.FailOn(tc.method, tc.suffix, http.StatusConflict, 4090)

			_, err := env.svc.Send(context.Background(), newRequest())
			require.ErrorIs(t, err, common.ErrRemote)
			require.True(t, hasRequest(env.srv, http.MethodDelete, "/transfer-sessions/"+env.srv.TrackingID))

			env.srv.Update(func(s *csapitest.Server) {
				require.NotContains(t, s.Sessions, s.TrackingID)
				require.NotContains(t, s.Statuses, s.TrackingID)
			})
		})
	}
}

func TestSendSettingsPayload(t *testing.T) {
	env := newEnv(t)
	now := time.Date(2024, 5, 22, 10, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }

	// Keep the session on the server to look at what was sent.
	env.srv.FailOn(http.MethodPost, "/transfer-sessions/"+env.srv.TrackingID, http.StatusConflict, 4090)
	env.srv.FailOn(http.MethodDelete, "/transfer-sessions/"+env.srv.TrackingID, http.StatusInternalServerError, 5000)

	req := newRequest()
	req.Expiration = now.AddDate(0, 0, 60)
	req.Options = map[string]any{"showFileNames": true}

	_, err := env.svc.Send(context.Background(), req)
	require.ErrorIs(t, err, common.ErrRemote)

	env.srv.Update(func(s *csapitest.Server) {
		sess := s.Sessions[s.TrackingID]
		require.NotNil(t, sess)
		require.Len(t, sess.Files, 2)
		require.Equal(t, "a@example.com", sess.Sender["email"])

		settings := sess.Settings
		require.Equal(t, "2024-06-05T10:00:00+00:00", settings["expirationDate"])
		require.Equal(t, "de", settings["recipientLanguage"])
		require.Equal(t, true, settings["sendDownloadNotifications"])
		require.Equal(t, true, settings["showFileNames"])
		require.Equal(t, map[string]any{"body": "Hallo, anbei die Unterlagen", "subject": "Unterlagen"}, settings["notificationMessage"])
		require.Equal(t, map[string]any{
			"name":   "ONE_TIME_PASSWORD",
			"config": map[string]any{"passwordMode": "GENERATED", "password": s.GeneratedPassword},
		}, settings["securityMode"])
	})
}

func TestSendPolicyGate(t *testing.T) {
	env := newEnv(t)
	env.srv.Update(func(s *csapitest.Server) {
		s.PolicyAllowed = false
	})

	res, err := env.svc.Send(context.Background(), newRequest())
	require.NoError(t, err)
	require.Equal(t, OutcomePolicyRejected, res.Outcome)
	require.False(t, res.Policy.IsAllowed())
	require.Empty(t, res.TrackingID)

	require.False(t, hasRequest(env.srv, http.MethodPost, "/transfer-sessions"))

	env.srv.Update(func(s *csapitest.Server) {
		require.Equal(t, [][]string{{"b@example.com", "c@example.com"}}, s.PolicyRecipients)
		require.Empty(t, s.Sessions)
	})
}

func TestSendManualPassword(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		env := newEnv(t)
		req := newRequest()
		req.Password = "weak"

		res, err := env.svc.Send(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, OutcomePasswordRejected, res.Outcome)
		require.Equal(t, []string{"Minimal length: 10", "Digits are required"}, res.PasswordRules)
		require.False(t, hasRequest(env.srv, http.MethodPost, "/transfer-policy"))
	})

	t.Run("accepted", func(t *testing.T) {
		env := newEnv(t)
		env.srv.ValidPasswords["G00d!Password"] = true
		req := newRequest()
		req.Password = "G00d!Password"

		res, err := env.svc.Send(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, OutcomeSent, res.Outcome)
		require.Empty(t, res.Password)
	})

	t.Run("mode not allowed", func(t *testing.T) {
		env := newEnv(t)
		env.srv.ValidPasswords["G00d!Password"] = true
		env.srv.PolicyModes = []string{"GENERATED"}
		req := newRequest()
		req.Password = "G00d!Password"

		_, err := env.svc.Send(context.Background(), req)
		require.ErrorIs(t, err, common.ErrSecurityModeNotAllowed)
		require.False(t, hasRequest(env.srv, http.MethodPost, "/transfer-sessions"))
	})
}

func TestSendValidation(t *testing.T) {
	testCases := []struct {
		name        string
		modify      func(req *SendRequest)
		expectedErr error
	}{
		{
			name:        "no sender",
			modify:      func(req *SendRequest) { req.Sender = entity.Sender{} },
			expectedErr: common.ErrMissingSender,
		},
		{
			name:        "no recipients",
			modify:      func(req *SendRequest) { req.Recipients = entity.Recipients{} },
			expectedErr: common.ErrNoRecipients,
		},
		{
			name:        "bad recipient",
			modify:      func(req *SendRequest) { req.Recipients = entity.NewRecipients([]string{"b"}, nil, nil) },
			expectedErr: common.ErrInvalidRecipient,
		},
		{
			name:        "subject with line break",
			modify:      func(req *SendRequest) { req.Subject = "first\nsecond" },
			expectedErr: common.ErrInvalidSubject,
		},
		{
			name:        "subject too long",
			modify:      func(req *SendRequest) { req.Subject = strings.Repeat("s", 251) },
			expectedErr: common.ErrInvalidSubject,
		},
		{
			name:        "no files",
			modify:      func(req *SendRequest) { req.Files = nil },
			expectedErr: common.ErrNoFiles,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t)
			req := newRequest()
			tc.modify(&req)

			_, err := env.svc.Send(context.Background(), req)
			require.ErrorIs(t, err, tc.expectedErr)
			require.Zero(t, env.verifier.calls)
			require.Empty(t, env.srv.RequestLog())
		})
	}
}

func TestSendVerificationRequired(t *testing.T) {
	env := newEnv(t)
	env.verifier.err = common.ErrVerificationRequired

	_, err := env.svc.Send(context.Background(), newRequest())
	require.ErrorIs(t, err, common.ErrVerificationRequired)
	require.Empty(t, env.srv.RequestLog())
}

func TestSendMissingFile(t *testing.T) {
	env := newEnv(t)
	req := newRequest()
	req.Files = append(req.Files, "/data/missing.txt")

	_, err := env.svc.Send(context.Background(), req)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, env.verifier.calls)
	require.Empty(t, env.srv.RequestLog())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "sent", OutcomeSent.String())
	require.Equal(t, "policy rejected", OutcomePolicyRejected.String())
	require.Equal(t, "password rejected", OutcomePasswordRejected.String())
	require.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestExpiration(t *testing.T) {
	env := newEnv(t)
	now := time.Date(2024, 5, 22, 10, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }
	log := env.svc.log

	policy, err := entity.NewTransferPolicy([]byte(`{"allowed":true,"settings":{"maxRetentionPeriod":14}}`))
	require.NoError(t, err)

	require.Equal(t, now.AddDate(0, 0, DefaultExpirationDays), env.svc.expiration(time.Time{}, policy, log))
	require.Equal(t, now.AddDate(0, 0, 14), env.svc.expiration(now.AddDate(0, 0, 30), policy, log))
	require.Equal(t, now.AddDate(0, 0, 3), env.svc.expiration(now.AddDate(0, 0, 3), policy, log))
	require.Equal(t, now.AddDate(0, 0, 30), env.svc.expiration(now.AddDate(0, 0, 30), nil, log))
}

func TestStatus(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sender := entity.Sender{Email: "a@example.com"}

	env.srv.Update(func(s *csapitest.Server) {
		s.Statuses[s.TrackingID] = "DOWNLOADED"
		s.Statuses["20240101-101010-AAAAAAAA"] = "SENT"
	})

	statuses, err := env.svc.Status(ctx, StatusRequest{Sender: sender, TrackingID: env.srv.TrackingID})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, "DOWNLOADED", statuses[0].Status)

	statuses, err = env.svc.Status(ctx, StatusRequest{Sender: sender})
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	_, err = env.svc.Status(ctx, StatusRequest{Sender: sender, TrackingID: "20240230-101010-AAAAAAAA"})
	require.ErrorIs(t, err, common.ErrInvalidTrackingID)
}
