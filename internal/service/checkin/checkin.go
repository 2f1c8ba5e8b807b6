// Package checkin owns the self-check-in flow: opening a service session
// behind an unguessable hash and redeeming that hash into an attendance
// transition that happens exactly once.
package checkin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/kv"
	"github.com/nkiryanov/clubhub/internal/models"
	"github.com/nkiryanov/clubhub/internal/repository"
)

// Hash length in bytes before hex encoding. The hash is the capability:
// nothing else protects the redemption link, so it has to be unguessable.
const hashBytes = 128

type Service struct {
	registry *kv.HashRegistry
	store    repository.Storage
}

func NewService(registry *kv.HashRegistry, store repository.Storage) (*Service, error) {
	if registry == nil || store == nil {
		return nil, errors.New("registry and storage must not be nil")
	}
	return &Service{registry: registry, store: store}, nil
}

// Activate opens the session for self-check-in and returns the hash to
// embed in the redeemable link. Activating twice mints an additional
// independent hash on purpose: both stay redeemable.
func (s *Service) Activate(ctx context.Context, sessionID int64) (string, error) {
	if _, err := s.store.Session().GetSessionByID(ctx, sessionID); err != nil {
		return "", err
	}

	b := make([]byte, hashBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating check-in hash. Err: %w", err)
	}
	hash := hex.EncodeToString(b)

	if err := s.registry.Put(ctx, hash, sessionID); err != nil {
		return "", err
	}

	return hash, nil
}

// ActiveSession is one open registry entry with the usernames flagged in
// charge, so operators can spot their own sessions in the listing.
type ActiveSession struct {
	SessionID int64    `json:"service_session_id"`
	InCharge  []string `json:"in_charge_usernames"`
}

// ListActive enumerates all open sessions keyed by hash.
func (s *Service) ListActive(ctx context.Context) (map[string]ActiveSession, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	// Cache per session: several hashes may point at the same one
	inCharge := make(map[int64][]string)

	active := make(map[string]ActiveSession, len(entries))
	for hash, sessionID := range entries {
		usernames, ok := inCharge[sessionID]
		if !ok {
			usernames, err = s.store.Attendance().ListInCharge(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			inCharge[sessionID] = usernames
		}

		active[hash] = ActiveSession{SessionID: sessionID, InCharge: usernames}
	}

	return active, nil
}

// VerifyAttendance redeems the hash for the user: resolves the session and
// flips the attendance record absent -> attended through one conditional
// write. Of N concurrent attempts for the same pair exactly one succeeds,
// the rest get apperrors.ErrAlreadyAttended and the state is untouched, so
// client retries after a timeout are safe.
func (s *Service) VerifyAttendance(ctx context.Context, hash string, username string) (models.ServiceSession, error) {
	var session models.ServiceSession

	sessionID, err := s.registry.Resolve(ctx, hash)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return session, apperrors.ErrHashNotFound
	}
	if err != nil {
		return session, err
	}

	if err := s.store.Attendance().MarkAttended(ctx, sessionID, username); err != nil {
		return session, err
	}

	session, err = s.store.Session().GetSessionByID(ctx, sessionID)
	if err != nil {
		return session, fmt.Errorf("session vanished after redemption. Err: %w", err)
	}

	return session, nil
}

// Deactivate drops every hash of the session from the registry. Called by
// the external session-delete trigger; redeeming the old links fails with
// invalid hash afterwards.
func (s *Service) Deactivate(ctx context.Context, sessionID int64) error {
	return s.registry.DeleteSession(ctx, sessionID)
}

// Attendee to register when creating a session.
type Attendee struct {
	Username string
	InCharge bool
}

// CreateSessionWithAttendees creates the session and registers the whole
// roster in one transaction: either everything lands or nothing does, no
// orphaned session rows on a failed bulk registration.
func (s *Service) CreateSessionWithAttendees(ctx context.Context, arg repository.CreateSessionParams, attendees []Attendee) (models.ServiceSession, error) {
	var session models.ServiceSession

	err := s.store.InTx(ctx, func(tx repository.Storage) error {
		var err error
		session, err = tx.Session().CreateSession(ctx, arg)
		if err != nil {
			return err
		}

		for _, attendee := range attendees {
			if _, err := tx.Attendance().Register(ctx, session.ID, attendee.Username, attendee.InCharge); err != nil {
				return fmt.Errorf("error while registering %q. Err: %w", attendee.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return models.ServiceSession{}, err
	}

	return session, nil
}
