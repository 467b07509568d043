// Package identity is the account store: credentials, profiles, and
// the admin role. It owns the only mutable copy of every identity.
package identity

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"parley/auth"
	"parley/domain"
	"parley/errors"
	"parley/repositories"
)

// Store keeps identities in memory and writes changes through to the
// snapshot repository off the caller's path. A failed write is logged
// and retried by the next periodic snapshot.
type Store struct {
	mu         sync.RWMutex
	log        *slog.Logger
	repo       repositories.ISnapshotRepository
	identities map[string]*domain.Identity

	// masterKey is the legacy admin passphrase. Empty disables the
	// mechanism entirely, which is the default; see PromoteByAdmin for
	// the supported grant path.
	masterKey string
}

func NewStore(log *slog.Logger, repo repositories.ISnapshotRepository, masterKey string) *Store {
	return &Store{
		log:        log,
		repo:       repo,
		identities: make(map[string]*domain.Identity),
		masterKey:  masterKey,
	}
}

// Load restores persisted identities. Called once at startup before
// any connection is accepted.
func (s *Store) Load() error {
	records, err := s.repo.LoadIdentities()
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.identities[rec.Username] = &domain.Identity{
			Username:     rec.Username,
			DisplayName:  rec.DisplayName,
			PasswordHash: rec.PasswordHash,
			IsAdmin:      rec.IsAdmin,
			AvatarURL:    rec.AvatarURL,
			CreatedAt:    rec.CreatedAt,
		}
	}
	return nil
}

// Register creates a new account with a hashed password.
func (s *Store) Register(username, password, displayName string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.ErrInvalidInput
	}
	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName = username
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.identities[username]; exists {
		s.mu.Unlock()
		return errors.ErrDuplicateUsername
	}
	id := &domain.Identity{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	s.identities[username] = id
	record := toRecord(*id)
	s.mu.Unlock()

	s.persist(record)
	return nil
}

// Authenticate verifies credentials and returns a copy of the identity.
// When the legacy master key is configured, supplying it as the
// password authenticates any username and promotes (or creates) it as
// an admin, preserving the pre-redesign behavior behind the flag.
func (s *Store) Authenticate(username, password string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.identities[username]
	if !exists {
		if s.masterKey == "" || password != s.masterKey {
			return domain.Identity{}, errors.ErrNotFound
		}
		created, err := s.createAdminLocked(username)
		if err != nil {
			return domain.Identity{}, err
		}
		return created, nil
	}

	match, err := auth.ComparePassword(password, id.PasswordHash)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("comparing password: %w", err)
	}
	if match {
		return *id, nil
	}
	if s.masterKey != "" && password == s.masterKey {
		id.Promote()
		s.persist(toRecord(*id))
		return *id, nil
	}
	return domain.Identity{}, errors.ErrBadPassword
}

func (s *Store) createAdminLocked(username string) (domain.Identity, error) {
	hash, err := auth.HashPassword(s.masterKey)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}
	id := &domain.Identity{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	id.Promote()
	s.identities[username] = id
	s.persist(toRecord(*id))
	return *id, nil
}

// PromoteByAdmin grants the admin role to target. Only an existing
// admin may grant it. Idempotent.
func (s *Store) PromoteByAdmin(requester, target string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grantor, ok := s.identities[requester]
	if !ok || !grantor.IsAdmin {
		return domain.Identity{}, errors.ErrForbidden
	}
	id, ok := s.identities[target]
	if !ok {
		return domain.Identity{}, errors.ErrNotFound
	}
	id.Promote()
	s.persist(toRecord(*id))
	return *id, nil
}

// Bootstrap seeds one admin account on first boot, so PromoteByAdmin
// has a grantor without any backdoor. No effect if the username exists.
func (s *Store) Bootstrap(username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	s.mu.Lock()
	if id, exists := s.identities[username]; exists {
		if !id.IsAdmin {
			id.Promote()
			s.persist(toRecord(*id))
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Register(username, password, username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.identities[username]
	id.Promote()
	s.persist(toRecord(*id))
	return nil
}

// Get returns a copy of the identity.
func (s *Store) Get(username string) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[username]
	if !ok {
		return domain.Identity{}, errors.ErrNotFound
	}
	return *id, nil
}

// SetAvatar updates the avatar URL; an empty url resets to default.
func (s *Store) SetAvatar(username, url string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[username]
	if !ok {
		return domain.Identity{}, errors.ErrNotFound
	}
	id.AvatarURL = url
	s.persist(toRecord(*id))
	return *id, nil
}

// All returns copies of every identity, ordered by username.
func (s *Store) All() []domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// persist writes a record off the caller's path. The acknowledgment to
// the user never waits on disk; failures surface in logs and the next
// scheduled snapshot rewrites every identity anyway.
func (s *Store) persist(record repositories.IdentityRecord) {
	go func() {
		if err := s.repo.SaveIdentity(record); err != nil {
			s.log.Warn("identity write failed, will retry on next snapshot",
				"username", record.Username, "error", err)
		}
	}()
}

func toRecord(id domain.Identity) repositories.IdentityRecord {
	return repositories.IdentityRecord{
		Username:     id.Username,
		DisplayName:  id.DisplayName,
		PasswordHash: id.PasswordHash,
		IsAdmin:      id.IsAdmin,
		AvatarURL:    id.AvatarURL,
		CreatedAt:    id.CreatedAt,
	}
}
