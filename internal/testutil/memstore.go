package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/permission"
	"github.com/nkiryanov/clubhub/internal/repository"
)

// MemStorage is an in memory repository.Storage for tests that don't need
// postgres. Conditional writes keep the same single-winner semantics as
// the SQL statements they stand in for. InTx is not transactional: it runs
// fn against the same storage, good enough for happy-path service tests.
type MemStorage struct {
	mu sync.Mutex

	users       map[string]models.User              // by username
	grants      map[string]permission.Set           // by username
	refresh     map[string]models.RefreshToken      // by token hash
	sessions    map[int64]models.ServiceSession     // by id
	attendance  map[attKey]models.AttendanceRecord  // by (session, username)
	nextSession int64
}

type attKey struct {
	sessionID int64
	username  string
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		users:       make(map[string]models.User),
		grants:      make(map[string]permission.Set),
		refresh:     make(map[string]models.RefreshToken),
		sessions:    make(map[int64]models.ServiceSession),
		attendance:  make(map[attKey]models.AttendanceRecord),
		nextSession: 1,
	}
}

func (s *MemStorage) User() repository.UserRepo             { return (*memUserRepo)(s) }
func (s *MemStorage) Refresh() repository.RefreshTokenRepo  { return (*memRefreshRepo)(s) }
func (s *MemStorage) Permission() repository.PermissionRepo { return (*memPermRepo)(s) }
func (s *MemStorage) Session() repository.SessionRepo       { return (*memSessionRepo)(s) }
func (s *MemStorage) Attendance() repository.AttendanceRepo { return (*memAttendanceRepo)(s) }

func (s *MemStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}

type memUserRepo MemStorage

func (r *memUserRepo) CreateUser(_ context.Context, arg repository.CreateUserParams) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[arg.Username]; ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}
	for _, u := range r.users {
		if u.ID == arg.ID {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	user := models.User{
		ID:             arg.ID,
		CreatedAt:      time.Now(),
		Username:       arg.Username,
		Email:          arg.Email,
		HashedPassword: arg.PasswordHash,
		ServiceHours:   decimal.Zero,
	}
	r.users[arg.Username] = user
	return user, nil
}

func (r *memUserRepo) GetUserByID(_ context.Context, id int64) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (r *memUserRepo) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *memUserRepo) SetVerified(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user.Verified = true
	r.users[username] = user
	return nil
}

func (r *memUserRepo) AddServiceHours(_ context.Context, username string, hours decimal.Decimal) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	user.ServiceHours = user.ServiceHours.Add(hours)
	r.users[username] = user
	return user, nil
}

type memRefreshRepo MemStorage

func (r *memRefreshRepo) Save(_ context.Context, token models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh[token.TokenHash] = token
	return nil
}

func (r *memRefreshRepo) GetAndMarkUsed(_ context.Context, tokenHash string, usedAt time.Time) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.refresh[tokenHash]
	switch {
	case !ok:
		return token, apperrors.ErrRefreshTokenNotFound
	case token.RevokedAt != nil:
		return token, apperrors.ErrRefreshTokenRevoked
	case token.UsedAt != nil:
		return token, apperrors.ErrRefreshTokenIsUsed
	}

	token.UsedAt = &usedAt
	r.refresh[tokenHash] = token
	return token, nil
}

func (r *memRefreshRepo) RevokeUserTokens(_ context.Context, userID int64, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, token := range r.refresh {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &revokedAt
			r.refresh[hash] = token
		}
	}
	return nil
}

type memPermRepo MemStorage

func (r *memPermRepo) GrantsFor(_ context.Context, username string) (permission.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[username], nil
}

func (r *memPermRepo) Grant(_ context.Context, username string, p permission.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[username] = r.grants[username].Add(p)
	return nil
}

type memSessionRepo MemStorage

func (r *memSessionRepo) CreateSession(_ context.Context, arg repository.CreateSessionParams) (models.ServiceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := models.ServiceSession{
		ID:       r.nextSession,
		Name:     arg.Name,
		StartsAt: arg.StartsAt,
		EndsAt:   arg.EndsAt,
		AdHoc:    arg.AdHoc,
	}
	r.nextSession++
	r.sessions[session.ID] = session
	return session, nil
}

func (r *memSessionRepo) GetSessionByID(_ context.Context, id int64) (models.ServiceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return session, apperrors.ErrSessionNotFound
	}
	return session, nil
}

type memAttendanceRepo MemStorage

func (r *memAttendanceRepo) Register(_ context.Context, sessionID int64, username string, inCharge bool) (models.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attKey{sessionID, username}
	if _, ok := r.attendance[key]; ok {
		return models.AttendanceRecord{}, apperrors.ErrAlreadyRegistered
	}

	record := models.AttendanceRecord{
		SessionID: sessionID,
		Username:  username,
		Status:    models.StatusAbsent,
		InCharge:  inCharge,
	}
	r.attendance[key] = record
	return record, nil
}

func (r *memAttendanceRepo) Get(_ context.Context, sessionID int64, username string) (models.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.attendance[attKey{sessionID, username}]
	if !ok {
		return record, apperrors.ErrNotRegistered
	}
	return record, nil
}

func (r *memAttendanceRepo) MarkAttended(_ context.Context, sessionID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attKey{sessionID, username}
	record, ok := r.attendance[key]
	if !ok {
		return apperrors.ErrNotRegistered
	}
	if record.Status != models.StatusAbsent {
		return apperrors.ErrAlreadyAttended
	}

	record.Status = models.StatusAttended
	r.attendance[key] = record
	return nil
}

func (r *memAttendanceRepo) ListInCharge(_ context.Context, sessionID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var usernames []string
	for key, record := range r.attendance {
		if key.sessionID == sessionID && record.InCharge {
			usernames = append(usernames, record.Username)
		}
	}
	return usernames, nil
}
