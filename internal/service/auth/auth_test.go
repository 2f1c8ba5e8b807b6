package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/kv"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
	"github.com/nkiryanov/clubhub/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/clubhub/internal/testutil"
)

// Fast hasher: argon2id with production parameters makes the suite crawl
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Compare(hash string, password string) error {
	if hash != "plain:"+password {
		return ErrPasswordMismatch
	}
	return nil
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string // email -> last code
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, email string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[email] = code
	return nil
}

func (m *recordingMailer) lastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testService struct {
	*AuthService
	mailer *recordingMailer
}

func newService(t *testing.T, cfg Config) testService {
	t.Helper()

	_, client := testutil.StartMiniredis(t)
	store := testutil.NewMemStorage()

	token, err := tokenmanager.New(
		tokenmanager.Config{SecretKey: "test-secret-key"},
		store.Refresh(),
		kv.NewDenylist(client),
	)
	require.NoError(t, err, "token manager should be created without errors")

	mailer := &recordingMailer{}
	if cfg.Hasher == nil {
		cfg.Hasher = plainHasher{}
	}
	if cfg.Mailer == nil {
		cfg.Mailer = mailer
	}

	s, err := NewService(cfg, token, store, kv.NewCodeStore(client, 15*time.Minute))
	require.NoError(t, err, "auth service couldn't be started")

	return testService{AuthService: s, mailer: mailer}
}

func register(t *testing.T, s testService, username string) models.PublicUser {
	t.Helper()
	public, err := s.Register(t.Context(), 1, username, username+"@example.com", "pwd")
	require.NoError(t, err)
	return public
}

func Test_Auth_Register(t *testing.T) {
	t.Parallel()

	t.Run("new user gets visitor grant only", func(t *testing.T) {
		s := newService(t, Config{})

		public, err := s.Register(t.Context(), 1, "alice", "alice@example.com", "pw")

		require.NoError(t, err)
		assert.Equal(t, int64(1), public.ID)
		assert.Equal(t, "alice", public.Username)
		assert.False(t, public.Verified)
		assert.Equal(t, []int{int(permission.Visitor)}, public.Permissions)
	})

	t.Run("fail if username exists", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")

		_, err := s.Register(t.Context(), 2, "alice", "other@example.com", "pw")

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("fail if user id exists", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")

		_, err := s.Register(t.Context(), 1, "bob", "bob@example.com", "pw")

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		s := newService(t, Config{})

		_, err := s.Register(t.Context(), 1, "alice", "alice@example.com", "")

		require.Error(t, err)
	})

	t.Run("blocked email domain rejected", func(t *testing.T) {
		s := newService(t, Config{BlockedEmailDomains: []string{"tempmail.io"}})

		tests := []struct {
			email   string
			blocked bool
		}{
			{"alice@tempmail.io", true},
			{"alice@sub.tempmail.io", true},
			{"alice@TEMPMAIL.IO", true},
			{"alice@example.com", false},
			{"alice@notatempmail.io", false},
		}
		for _, tt := range tests {
			_, err := s.Register(t.Context(), 1, "alice", tt.email, "pw")
			if tt.blocked {
				assert.ErrorIs(t, err, apperrors.ErrEmailNotAllowed, "email %s should be blocked", tt.email)
			} else {
				assert.NotErrorIs(t, err, apperrors.ErrEmailNotAllowed, "email %s should be allowed", tt.email)
			}
		}
	})
}

func Test_Auth_Login(t *testing.T) {
	t.Parallel()

	t.Run("registered user logs in and identity round trips", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")

		pair, public, err := s.Login(t.Context(), "alice", "pwd")

		require.NoError(t, err)
		require.NotEmpty(t, pair.Access.Value)
		require.NotEmpty(t, pair.Refresh.Value)
		assert.Equal(t, "alice", public.Username)
		assert.Equal(t, []int{int(permission.Visitor)}, public.Permissions)

		identity, err := s.VerifyAccess(t.Context(), pair.Access.Value)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Username)
		assert.Equal(t, int64(1), identity.UserID)
	})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "nobody", "pwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" fails the same way", func(t *testing.T) {
			s := newService(t, Config{})
			register(t, s, "alice")

			_, _, err := s.Login(t.Context(), tt.username, tt.password)

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	}
}

func Test_Auth_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("refresh rotates the pair", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		pair, _, err := s.Login(t.Context(), "alice", "pwd")
		require.NoError(t, err)

		rotated, err := s.Refresh(t.Context(), pair.Refresh.Value)

		require.NoError(t, err)
		assert.NotEqual(t, pair.Access.Value, rotated.Access.Value)
		assert.NotEqual(t, pair.Refresh.Value, rotated.Refresh.Value)
	})

	t.Run("superseded refresh token loses immediately", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		pair, _, err := s.Login(t.Context(), "alice", "pwd")
		require.NoError(t, err)

		_, err = s.Refresh(t.Context(), pair.Refresh.Value)
		require.NoError(t, err)

		_, err = s.Refresh(t.Context(), pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)
	})

	t.Run("malformed refresh token rejected", func(t *testing.T) {
		s := newService(t, Config{})

		_, err := s.Refresh(t.Context(), "garbage")

		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	})
}

func Test_Auth_Logout(t *testing.T) {
	t.Parallel()

	t.Run("access token dies before natural expiry", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		pair, _, err := s.Login(t.Context(), "alice", "pwd")
		require.NoError(t, err)

		identity, err := s.VerifyAccess(t.Context(), pair.Access.Value)
		require.NoError(t, err)

		require.NoError(t, s.Logout(t.Context(), identity))

		_, err = s.VerifyAccess(t.Context(), pair.Access.Value)
		require.ErrorIs(t, err, apperrors.ErrAccessTokenRevoked)
	})

	t.Run("refresh token dies with logout", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		pair, _, err := s.Login(t.Context(), "alice", "pwd")
		require.NoError(t, err)

		identity, err := s.VerifyAccess(t.Context(), pair.Access.Value)
		require.NoError(t, err)
		require.NoError(t, s.Logout(t.Context(), identity))

		_, err = s.Refresh(t.Context(), pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenRevoked)
	})

	t.Run("logout twice is not an error", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		pair, _, err := s.Login(t.Context(), "alice", "pwd")
		require.NoError(t, err)

		identity, err := s.VerifyAccess(t.Context(), pair.Access.Value)
		require.NoError(t, err)

		require.NoError(t, s.Logout(t.Context(), identity))
		require.NoError(t, s.Logout(t.Context(), identity))
	})
}

func Test_Auth_EmailVerification(t *testing.T) {
	t.Parallel()

	t.Run("code confirms the user once", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")

		require.NoError(t, s.RequestEmailVerification(t.Context(), "alice"))
		code := s.mailer.lastCode("alice@example.com")
		require.NotEmpty(t, code, "code should be delivered via mailer")

		require.NoError(t, s.ConfirmEmail(t.Context(), code))

		err := s.ConfirmEmail(t.Context(), code)
		require.ErrorIs(t, err, apperrors.ErrCodeNotFound, "code must be single use")
	})

	t.Run("already verified user", func(t *testing.T) {
		s := newService(t, Config{})
		register(t, s, "alice")
		require.NoError(t, s.RequestEmailVerification(t.Context(), "alice"))
		require.NoError(t, s.ConfirmEmail(t.Context(), s.mailer.lastCode("alice@example.com")))

		err := s.RequestEmailVerification(t.Context(), "alice")

		require.ErrorIs(t, err, apperrors.ErrAlreadyVerified)
	})

	t.Run("unknown code", func(t *testing.T) {
		s := newService(t, Config{})

		err := s.ConfirmEmail(t.Context(), "no-such-code")

		require.ErrorIs(t, err, apperrors.ErrCodeNotFound)
	})
}

func Test_Auth_RequestPlumbing(t *testing.T) {
	t.Parallel()

	s := newService(t, Config{})
	register(t, s, "alice")
	pair, _, err := s.Login(t.Context(), "alice", "pwd")
	require.NoError(t, err)

	t.Run("response carries refresh cookie and access header", func(t *testing.T) {
		w := httptest.NewRecorder()

		s.SetTokenPairToResponse(w, pair)

		resp := w.Result()
		require.Len(t, resp.Cookies(), 1)
		cookie := resp.Cookies()[0]
		assert.Equal(t, defaultRefreshCookieName, cookie.Name)
		assert.Equal(t, pair.Refresh.Value, cookie.Value)
		assert.Equal(t, defaultRefreshCookiePath, cookie.Path, "cookie must be scoped to the refresh path")
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, defaultAccessAuthScheme+" "+pair.Access.Value, resp.Header.Get(defaultAccessHeaderName))
	})

	t.Run("authenticate reads the bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		s.SetTokenPairToRequest(req, pair)

		identity, err := s.Authenticate(t.Context(), req)

		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Username)
	})

	t.Run("missing bearer header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := s.Authenticate(t.Context(), req)

		require.ErrorIs(t, err, apperrors.ErrAccessTokenInvalid)
	})

	t.Run("refresh cookie round trips", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		s.SetTokenPairToRequest(req, pair)

		refresh, err := s.GetRefreshString(req)

		require.NoError(t, err)
		assert.Equal(t, pair.Refresh.Value, refresh)
	})
}
