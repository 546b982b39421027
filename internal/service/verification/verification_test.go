package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jgivc/csclient/internal/adapter/csapi"
	"github.com/jgivc/csclient/internal/adapter/csapi/csapitest"
	"github.com/jgivc/csclient/internal/adapter/httpadapter"
	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/entity"
	repository "github.com/jgivc/csclient/internal/repository/verification"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	code  string
	err   error
	calls int
}

func (f *fakePrompter) PromptCode(context.Context, string) (string, error) {
	f.calls++

	return f.code, f.err
}

type testEnv struct {
	srv  *csapitest.Server
	cl   *csapi.Client
	repo TokenRepository
	log  *slog.Logger
}

func newEnv(t *testing.T, fs afero.Fs) *testEnv {
	t.Helper()

	srv := csapitest.NewServer()
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	cl, err := csapi.NewClient(srv.URL, "", httpadapter.NewHTTPAdapter(5*time.Second, true), log)
	require.NoError(t, err)

	return &testEnv{
		srv:  srv,
		cl:   cl,
		repo: repository.NewFileRepositoryWithFS(fs, "/store.json", srv.URL, log),
		log:  log,
	}
}

func sender() *entity.Sender {
	return &entity.Sender{Name: "A", Phone: "0", Email: "a@example.com"}
}

func TestVerifyInteractive(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := newEnv(t, fs)
	ctx := context.Background()
	prompter := &fakePrompter{code: " ABCDE12345\n"}

	svc := NewVerificationService(env.cl, env.repo, prompter, env.log)
	v, err := svc.Verify(ctx, sender(), true)
	require.NoError(t, err)
	require.True(t, v.Verified)
	require.Equal(t, 1, prompter.calls)

	token, err := env.repo.Token(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "token-a@example.com", token)

	id, err := env.repo.ClientID(ctx)
	require.NoError(t, err)
	require.Equal(t, env.srv.ClientID, id)

	// A second client with the same store reuses the token and client id.
	cl, err := csapi.NewClient(env.srv.URL, "", httpadapter.NewHTTPAdapter(5*time.Second, true), env.log)
	require.NoError(t, err)

	requests := len(env.srv.RequestLog())
	svc = NewVerificationService(cl, env.repo, nil, env.log)
	v, err = svc.Verify(ctx, sender(), false)
	require.NoError(t, err)
	require.True(t, v.Verified)
	require.Equal(t, env.srv.ClientID, cl.Header().ClientID())

	log := env.srv.RequestLog()[requests:]
	require.Equal(t, []string{http.MethodGet + " /api/users/a@example.com/verification"}, log)
}

func TestVerifyAlreadyVerified(t *testing.T) {
	env := newEnv(t, afero.NewMemMapFs())
	env.srv.Verified["a@example.com"] = true
	prompter := &fakePrompter{}

	v, err := NewVerificationService(env.cl, env.repo, prompter, env.log).Verify(context.Background(), sender(), true)
	require.NoError(t, err)
	require.True(t, v.Verified)
	require.Zero(t, prompter.calls)
}

func TestVerifyErrors(t *testing.T) {
	testCases := []struct {
		name        string
		sender      *entity.Sender
		interactive bool
		prompter    *fakePrompter
		prepare     func(srv *csapitest.Server)
		expectedErr error
	}{
		{
			name:        "missing sender",
			expectedErr: common.ErrMissingSender,
		},
		{
			name:        "invalid email",
			sender:      &entity.Sender{Email: "nope"},
			expectedErr: common.ErrInvalidEmail,
		},
		{
			name:        "not interactive",
			sender:      sender(),
			prompter:    &fakePrompter{code: "ABCDE12345"},
			expectedErr: common.ErrVerificationRequired,
		},
		{
			name:        "malformed code",
			sender:      sender(),
			interactive: true,
			prompter:    &fakePrompter{code: "abc"},
			expectedErr: common.ErrInvalidVerificationCode,
		},
		{
			name:        "rejected code",
			sender:      sender(),
			interactive: true,
			prompter:    &fakePrompter{code: "ZZZZZ99999"},
			expectedErr: common.ErrRemote,
		},
		{
			name:        "not licensed",
			sender:      sender(),
			interactive: true,
			prompter:    &fakePrompter{code: "ABCDE12345"},
			prepare: func(srv *csapitest.Server) {
				srv.FailOn(http.MethodGet, "/api/clients", http.StatusForbidden, common.ErrorCodeNotLicensed)
			},
			expectedErr: common.ErrNotLicensed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t, afero.NewMemMapFs())
			if tc.prepare != nil {
				tc.prepare(env.srv)
			}

			var prompter CodePrompter
			if tc.prompter != nil {
				prompter = tc.prompter
			}

			_, err := NewVerificationService(env.cl, env.repo, prompter, env.log).Verify(context.Background(), tc.sender, tc.interactive)
			require.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

type staleAPI struct {
	API
	verifiedCalls int
}

func (s *staleAPI) Verification(context.Context, string) (*entity.Verification, error) {
	s.verifiedCalls++

	return &entity.Verification{}, nil
}

func (s *staleAPI) RequestCode(context.Context, string) error {
	return nil
}

func (s *staleAPI) VerifyCode(context.Context, string, string) (string, error) {
	return "token-new", nil
}

func TestVerifyFailedAfterCode(t *testing.T) {
	env := newEnv(t, afero.NewMemMapFs())
	ctx := context.Background()
	require.NoError(t, env.repo.SaveClientID(ctx, "client-1"))
	require.NoError(t, env.repo.SaveToken(ctx, "a@example.com", "token-old"))

	api := &staleAPI{API: env.cl}
	_, err := NewVerificationService(api, env.repo, &fakePrompter{code: "ABCDE12345"}, env.log).Verify(ctx, sender(), true)
	require.ErrorIs(t, err, common.ErrVerificationFailed)
	require.Equal(t, 2, api.verifiedCalls)

	token, err := env.repo.Token(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "token-new", token)
}

func TestPrompterError(t *testing.T) {
	env := newEnv(t, afero.NewMemMapFs())
	failure := errors.New("eof")

	_, err := NewVerificationService(env.cl, env.repo, &fakePrompter{err: failure}, env.log).Verify(context.Background(), sender(), true)
	require.ErrorIs(t, err, failure)
}

func TestStaleTokenDropped(t *testing.T) {
	env := newEnv(t, afero.NewMemMapFs())
	ctx := context.Background()
	require.NoError(t, env.repo.SaveToken(ctx, "a@example.com", "token-old"))

	_, err := NewVerificationService(env.cl, env.repo, nil, env.log).Verify(ctx, sender(), false)
	require.ErrorIs(t, err, common.ErrVerificationRequired)
	require.Empty(t, env.cl.Header().VerificationToken())
	require.NotContains(t, env.cl.Header().HTTPHeader(), csapi.HeaderVerificationToken)

	_, err = env.repo.Token(ctx, "a@example.com")
	require.ErrorIs(t, err, common.ErrTokenNotFound)
}

func TestTokenOfOtherSenderDropped(t *testing.T) {
	env := newEnv(t, afero.NewMemMapFs())
	env.cl.SetVerificationToken("token-b@example.com")

	_, err := NewVerificationService(env.cl, env.repo, nil, env.log).Verify(context.Background(), sender(), false)
	require.ErrorIs(t, err, common.ErrVerificationRequired)
	require.Empty(t, env.cl.Header().VerificationToken())
}
