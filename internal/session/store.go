package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"lisst-auth/internal/config"
	"lisst-auth/internal/events"
	"lisst-auth/internal/models"
	"lisst-auth/internal/storage"
	"lisst-auth/internal/util"
)

var ErrNoSession = errors.New("no user logged in")

// Backend is the slice of the backend client the session store needs.
type Backend interface {
	GetUserByPhone(ctx context.Context, phoneNumber string) (*models.UserRecord, error)
	UpdateUserProfile(ctx context.Context, phoneNumber string, fields map[string]interface{}) (*models.UserRecord, error)
	DeleteUserAccount(ctx context.Context, phoneNumber string) error
}

// Store is the single source of truth for the current user record. It keeps
// memory and durable storage in lockstep on every successful mutation, so a
// restart never observes a state more than one completed operation stale.
//
// Mutating operations (Login, Logout, UpdateProfile, DeleteAccount and
// refresh application) are serialized by opMu so interleaved calls cannot
// produce out-of-order writes to storage. Reads are cheap and concurrent.
type Store struct {
	backend  Backend
	storage  storage.KeyValue
	producer *events.Producer
	logger   *zap.Logger

	storageKey     string
	refreshTimeout time.Duration

	opMu sync.Mutex // serializes mutating operations end to end

	mu         sync.RWMutex
	user       *models.UserRecord
	loading    bool
	generation uint64 // bumped whenever the session identity changes

	refreshGroup singleflight.Group
}

func New(be Backend, kv storage.KeyValue, producer *events.Producer, cfg *config.Config, logger *zap.Logger) *Store {
	return &Store{
		backend:        be,
		storage:        kv,
		producer:       producer,
		logger:         logger,
		storageKey:     cfg.Session.StorageKey,
		refreshTimeout: cfg.Session.RefreshTimeout,
		loading:        true,
	}
}

// Current returns the record in memory, nil when anonymous. Callers must
// treat the record as read-only.
func (s *Store) Current() *models.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading reports whether the initial restore from durable storage is still
// in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Authenticated evaluates the derived session invariant on the current
// record.
func (s *Store) Authenticated() bool {
	return s.Current().Authenticated()
}

// Restore rehydrates the session from durable storage. The stored copy is
// trusted immediately; a background refresh is dispatched fire-and-forget to
// reconcile it against the backend. Absence or a value that fails to parse
// leaves the store anonymous, and a corrupt value is proactively removed.
func (s *Store) Restore(ctx context.Context) {
	raw, err := s.storage.GetItem(ctx, s.storageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("Failed to load session from storage", util.ErrorField(err))
		}
		s.becomeAnonymous()
		return
	}

	var record models.UserRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.logger.Warn("Removing corrupt session record", util.ErrorField(err))
		if removeErr := s.storage.RemoveItem(ctx, s.storageKey); removeErr != nil {
			s.logger.Error("Failed to remove corrupt session record", util.ErrorField(removeErr))
		}
		s.becomeAnonymous()
		return
	}

	s.mu.Lock()
	s.user = &record
	s.loading = false
	generation := s.generation
	phone := record.PhoneNumber
	s.mu.Unlock()

	s.logger.Info("Session restored from storage",
		util.String("phone_number", phone),
		util.Bool("authenticated", record.Authenticated()),
	)

	// Stale-while-revalidate: the cached copy serves immediately, the server
	// copy replaces it silently if they disagree.
	go s.backgroundRefresh(phone, generation)
}

func (s *Store) becomeAnonymous() {
	s.mu.Lock()
	s.user = nil
	s.loading = false
	s.mu.Unlock()
}

// Login unconditionally overwrites any prior session with the given record
// and persists it. No merge semantics.
func (s *Store) Login(ctx context.Context, record *models.UserRecord) error {
	if record == nil {
		return errors.New("cannot login with an empty record")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.persist(ctx, record); err != nil {
		return fmt.Errorf("failed to save user data: %w", err)
	}

	s.mu.Lock()
	s.user = record
	s.loading = false
	s.generation++
	s.mu.Unlock()

	s.producer.Emit(ctx, events.TypeLogin, record.PhoneNumber)
	s.logger.Info("User logged in",
		util.String("phone_number", record.PhoneNumber),
		util.Bool("authenticated", record.Authenticated()),
	)
	return nil
}

// Logout clears memory and durable storage. Idempotent.
func (s *Store) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.logoutLocked(ctx)
}

func (s *Store) logoutLocked(ctx context.Context) error {
	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()

	if err := s.storage.RemoveItem(ctx, s.storageKey); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	s.mu.Lock()
	s.user = nil
	s.loading = false
	s.generation++
	s.mu.Unlock()

	if current != nil {
		s.producer.Emit(ctx, events.TypeLogout, current.PhoneNumber)
		s.logger.Info("User logged out", util.String("phone_number", current.PhoneNumber))
	}
	return nil
}

// UpdateProfile round-trips a partial update through the backend. The
// server's returned record is authoritative and replaces the local one in
// full; on failure local state is untouched.
func (s *Store) UpdateProfile(ctx context.Context, fields map[string]interface{}) (*models.UserRecord, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()
	if current == nil {
		return nil, ErrNoSession
	}

	fresh, err := s.backend.UpdateUserProfile(ctx, current.PhoneNumber, fields)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save updated profile: %w", err)
	}

	s.mu.Lock()
	s.user = fresh
	s.mu.Unlock()

	s.producer.Emit(ctx, events.TypeProfileUpdated, fresh.PhoneNumber)
	s.logger.Info("Profile updated", util.String("phone_number", fresh.PhoneNumber))
	return fresh, nil
}

// RefreshUser re-fetches the current record from the backend and replaces it
// on success. A failure is logged and swallowed: a network blip must never
// log the user out.
func (s *Store) RefreshUser(ctx context.Context) {
	s.mu.RLock()
	current := s.user
	generation := s.generation
	s.mu.RUnlock()

	if current == nil {
		s.logger.Warn("No session to refresh")
		return
	}
	s.refreshByPhone(ctx, current.PhoneNumber, generation)
}

// DeleteAccount deletes the account on the backend and, only on success,
// tears the session down. On failure the session is left intact.
func (s *Store) DeleteAccount(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()
	if current == nil {
		return ErrNoSession
	}

	if err := s.backend.DeleteUserAccount(ctx, current.PhoneNumber); err != nil {
		return err
	}

	s.producer.Emit(ctx, events.TypeAccountDeleted, current.PhoneNumber)
	s.logger.Info("Account deleted", util.String("phone_number", current.PhoneNumber))
	return s.logoutLocked(ctx)
}

func (s *Store) backgroundRefresh(phone string, generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()
	s.refreshByPhone(ctx, phone, generation)
}

// refreshByPhone fetches a fresh record and applies it only if the session it
// was dispatched for is still the current one. Concurrent refreshes for the
// same phone number are coalesced.
func (s *Store) refreshByPhone(ctx context.Context, phone string, generation uint64) {
	fetched, err, _ := s.refreshGroup.Do(phone, func() (interface{}, error) {
		return s.backend.GetUserByPhone(ctx, phone)
	})
	if err != nil {
		s.logger.Warn("Session refresh failed",
			util.String("phone_number", phone),
			util.ErrorField(err),
		)
		return
	}

	fresh := fetched.(*models.UserRecord).Clone()
	if fresh == nil {
		s.logger.Warn("Session refresh returned no record", util.String("phone_number", phone))
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	stale := s.generation != generation || s.user == nil || s.user.PhoneNumber != phone
	s.mu.RUnlock()
	if stale {
		// The session was logged out or replaced while the fetch was in
		// flight; applying the result would resurrect a cleared session.
		s.logger.Debug("Dropping stale session refresh", util.String("phone_number", phone))
		return
	}

	if err := s.persist(ctx, fresh); err != nil {
		s.logger.Warn("Failed to persist refreshed session", util.ErrorField(err))
		return
	}

	s.mu.Lock()
	s.user = fresh
	s.mu.Unlock()

	s.logger.Debug("Session refreshed",
		util.String("phone_number", phone),
		util.Bool("authenticated", fresh.Authenticated()),
	)
}

func (s *Store) persist(ctx context.Context, record *models.UserRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	return s.storage.SetItem(ctx, s.storageKey, string(payload))
}
