package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/kv"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
	"github.com/nkiryanov/clubhub/internal/repository"
	"github.com/nkiryanov/clubhub/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refresh_token"
	defaultRefreshCookiePath = "/api/auth/refresh"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Mailer delivers one-time verification codes. The real transport lives
// outside this core.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email string, code string) error
}

type noopMailer struct{}

func (noopMailer) SendVerificationCode(context.Context, string, string) error { return nil }

type Config struct {
	// Hasher to use during registration or login
	// Argon2id with default parameters if not set
	Hasher PasswordHasher

	// Email domains rejected at sign-up, e.g. "tempmail.io"
	BlockedEmailDomains []string

	// Verification code delivery, noop if not set
	Mailer Mailer
}

// Auth service: the token issuing, verification and revocation core
type AuthService struct {
	token  *tokenmanager.TokenManager
	hasher PasswordHasher
	mailer Mailer

	userRepo repository.UserRepo
	permRepo repository.PermissionRepo
	codes    *kv.CodeStore

	blockedDomains []string

	// Hash compared against on the unknown-user login path so response
	// timing does not reveal whether a username exists
	dummyHash string

	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	refreshCookiePath string
}

func NewService(
	cfg Config,
	token *tokenmanager.TokenManager,
	store repository.Storage,
	codes *kv.CodeStore,
) (*AuthService, error) {
	if token == nil || store == nil || codes == nil {
		return nil, errors.New("token manager, storage and code store must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	mailer := cfg.Mailer
	if mailer == nil {
		mailer = noopMailer{}
	}

	dummyHash, err := hasher.Hash("clubhub-timing-decoy")
	if err != nil {
		return nil, fmt.Errorf("error while preparing decoy hash. Err: %w", err)
	}

	return &AuthService{
		token:             token,
		hasher:            hasher,
		mailer:            mailer,
		userRepo:          store.User(),
		permRepo:          store.Permission(),
		codes:             codes,
		blockedDomains:    cfg.BlockedEmailDomains,
		dummyHash:         dummyHash,
		accessHeaderName:  defaultAccessHeaderName,
		accessAuthScheme:  defaultAccessAuthScheme,
		refreshCookieName: defaultRefreshCookieName,
		refreshCookiePath: defaultRefreshCookiePath,
	}, nil
}

// Register creates a credential with the caller supplied stable id and
// grants the default visitor permission. Tokens are not issued here, the
// user logs in afterwards.
func (s *AuthService) Register(ctx context.Context, id int64, username string, email string, password string) (models.PublicUser, error) {
	var public models.PublicUser

	if password == "" {
		return public, fmt.Errorf("registration error: %w", errors.New("password must not be empty"))
	}
	if s.emailBlocked(email) {
		return public, fmt.Errorf("registration error: %w", apperrors.ErrEmailNotAllowed)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return public, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return public, err
	}

	if err := s.permRepo.Grant(ctx, username, permission.Visitor); err != nil {
		return public, fmt.Errorf("error while granting default permission. Err: %w", err)
	}

	return s.publicUser(ctx, user)
}

// Login verifies the password and mints a fresh token pair plus a profile
// snapshot. Unknown username and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, models.PublicUser, error) {
	var pair models.TokenPair
	var public models.PublicUser

	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		// Burn comparable time before answering
		_ = s.hasher.Compare(s.dummyHash, password)
		return pair, public, apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return pair, public, apperrors.ErrUserNotFound
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, public, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	public, err = s.publicUser(ctx, user)
	if err != nil {
		return pair, public, err
	}

	return pair, public, nil
}

// Refresh rotates the pair. The spent refresh token is revoked in the same
// statement that reads it, so replaying it can never win.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return pair, err
	}

	user, err := s.userRepo.GetUserByID(ctx, token.UserID)
	if err != nil {
		return pair, fmt.Errorf("refresh token owner vanished. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Logout denylists the access token for its remaining lifetime and revokes
// every refresh token of the user. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, identity models.Identity) error {
	if err := s.token.DenyAccess(ctx, identity); err != nil {
		return err
	}

	err := s.token.RevokeRefresh(ctx, identity.UserID)
	if err != nil {
		return err
	}

	return nil
}

// VerifyAccess checks signature, expiry and denylist membership
func (s *AuthService) VerifyAccess(ctx context.Context, access string) (models.Identity, error) {
	return s.token.ParseAccess(ctx, access)
}

// Authenticate extracts the bearer token from the request and verifies it
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.Identity, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, access, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return models.Identity{}, fmt.Errorf("%w: bearer header missing or malformed", apperrors.ErrAccessTokenInvalid)
	}

	return s.token.ParseAccess(ctx, access)
}

// GetUser returns the public view of the user with grants resolved
func (s *AuthService) GetUser(ctx context.Context, userID int64) (models.PublicUser, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return s.publicUser(ctx, user)
}

// RequestEmailVerification mints a one-time code with a short fixed TTL
// and hands it to the mailer. Always answers the same whether or not the
// user is already verified.
func (s *AuthService) RequestEmailVerification(ctx context.Context, username string) error {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user.Verified {
		return apperrors.ErrAlreadyVerified
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("error while generating verification code. Err: %w", err)
	}
	code := hex.EncodeToString(b)

	if err := s.codes.Put(ctx, code, username); err != nil {
		return err
	}

	return s.mailer.SendVerificationCode(ctx, user.Email, code)
}

// ConfirmEmail consumes the code and marks the user verified. The code is
// gone after one attempt, successful or not for the user lookup.
func (s *AuthService) ConfirmEmail(ctx context.Context, code string) error {
	username, err := s.codes.Consume(ctx, code)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return apperrors.ErrCodeNotFound
	}
	if err != nil {
		return err
	}

	return s.userRepo.SetVerified(ctx, username)
}

// Set auth tokens (access header, refresh cookie) to response
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.refreshCookie(pair.Refresh))
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
}

// Set auth tokens to request, mostly for tests
func (s *AuthService) SetTokenPairToRequest(r *http.Request, pair models.TokenPair) {
	r.AddCookie(s.refreshCookie(pair.Refresh))
	r.Header.Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
}

// Get refresh token from request cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("refresh cookie not found. Err: %w", err)
	}
	return cookie.Value, nil
}

func (s *AuthService) refreshCookie(refresh models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     s.refreshCookiePath,
		Expires:  refresh.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *AuthService) emailBlocked(email string) bool {
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return true
	}
	domain = strings.ToLower(domain)

	for _, blocked := range s.blockedDomains {
		blocked = strings.ToLower(blocked)
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return true
		}
	}
	return false
}

func (s *AuthService) publicUser(ctx context.Context, user models.User) (models.PublicUser, error) {
	grants, err := s.permRepo.GrantsFor(ctx, user.Username)
	if err != nil {
		return models.PublicUser{}, err
	}

	return models.PublicUser{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Verified:     user.Verified,
		ServiceHours: user.ServiceHours,
		Permissions:  grants.IDs(),
	}, nil
}
