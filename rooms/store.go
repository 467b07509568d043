// Package rooms is the room registry: it owns every Room entity and is
// the only path for membership, message, and reaction mutation.
package rooms

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"parley/auth"
	"parley/domain"
	"parley/errors"
	"parley/protocol"
)

// GeneralRoomID names the room that always exists and can never be
// deleted.
const GeneralRoomID = "general"

// Store guards the room map with a RWMutex; each Room carries its own
// lock, so mutations in unrelated rooms proceed independently.
type Store struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[string]*domain.Room
}

func NewStore(log *slog.Logger) *Store {
	s := &Store{log: log, rooms: make(map[string]*domain.Room)}
	general := domain.NewRoom(GeneralRoomID, "General", "", "")
	s.rooms[GeneralRoomID] = general
	return s
}

// Restore rebuilds persisted rooms at startup. The general room is
// recreated fresh if the snapshot somehow lost it.
func (s *Store) Restore(copies []domain.RoomCopy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range copies {
		s.rooms[c.ID] = domain.Restore(c)
	}
	if _, ok := s.rooms[GeneralRoomID]; !ok {
		s.rooms[GeneralRoomID] = domain.NewRoom(GeneralRoomID, "General", "", "")
	}
}

// Create registers a new room. The creator is auto-joined and a system
// notice opens the log. A non-empty password is stored hashed.
func (s *Store) Create(name, creator, password string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ErrInvalidInput
	}

	var passwordHash string
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hashing room password: %w", err)
		}
		passwordHash = hash
	}

	room := domain.NewRoom(uuid.NewString(), name, creator, passwordHash)
	room.AddMember(creator)
	room.AppendNotice(fmt.Sprintf("%s created the room", creator))

	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()

	s.log.Info("room created", "room", room.ID, "name", name, "creator", creator, "protected", passwordHash != "")
	return room, nil
}

// Delete removes a room. The general room is never deletable, and only
// the creator or an admin may delete any other room.
func (s *Store) Delete(roomID string, requester domain.Identity) (*domain.Room, error) {
	if roomID == GeneralRoomID {
		return nil, errors.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if room.Creator != requester.Username && !requester.IsAdmin {
		return nil, errors.ErrForbidden
	}
	delete(s.rooms, roomID)
	s.log.Info("room deleted", "room", roomID, "by", requester.Username)
	return room, nil
}

// Get looks a room up by id.
func (s *Store) Get(roomID string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return room, nil
}

// Join enforces the password gate and records membership. Members who
// joined once never need the password again. History replay and the
// join notice are the caller's job, under its per-room delivery order.
func (s *Store) Join(roomID string, id domain.Identity, password string) error {
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}

	if room.HasPassword() && !room.IsMember(id.Username) {
		if password == "" {
			return errors.ErrPasswordRequired
		}
		match, err := auth.ComparePassword(password, room.PasswordHash)
		if err != nil {
			return fmt.Errorf("comparing room password: %w", err)
		}
		if !match {
			return errors.ErrBadPassword
		}
	}

	room.AddMember(id.Username)
	return nil
}

// PublicViews lists every room without exposing password hashes.
func (s *Store) PublicViews() []protocol.RoomView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := lo.MapToSlice(s.rooms, func(_ string, room *domain.Room) protocol.RoomView {
		return protocol.RoomView{
			ID:          room.ID,
			Name:        room.Name,
			HasPassword: room.HasPassword(),
			Creator:     room.Creator,
			CreatedAt:   room.CreatedAt,
		}
	})
	// Stable order: general first, then by creation time.
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.ID == GeneralRoomID || b.ID == GeneralRoomID {
			return a.ID == GeneralRoomID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return views
}

// AppendMessage appends a regular message to a room's log.
func (s *Store) AppendMessage(roomID string, author domain.Identity, text, imageURL string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" && imageURL == "" {
		return domain.Message{}, errors.ErrInvalidInput
	}
	room, err := s.Get(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	return room.Append(domain.NewMessage(roomID, author, text, imageURL)), nil
}

// DeleteMessage removes a message when the requester is its author or
// an admin, and reports which role did it.
func (s *Store) DeleteMessage(roomID string, messageID uuid.UUID, requester domain.Identity) (string, error) {
	room, err := s.Get(roomID)
	if err != nil {
		return "", err
	}
	return room.Delete(messageID, requester)
}

// AddReaction, RemoveReaction: reaction toggles on a message, both
// returning the full updated map for re-rendering.
func (s *Store) AddReaction(roomID string, messageID uuid.UUID, emoji, username string) (domain.ReactionMap, error) {
	room, err := s.Get(roomID)
	if err != nil {
		return nil, err
	}
	return room.AddReaction(messageID, emoji, username)
}

func (s *Store) RemoveReaction(roomID string, messageID uuid.UUID, emoji, username string) (domain.ReactionMap, error) {
	room, err := s.Get(roomID)
	if err != nil {
		return nil, err
	}
	return room.RemoveReaction(messageID, emoji, username)
}

// SnapshotAll takes a consistent copy of every room for persistence.
// Each room is locked only long enough to copy it.
func (s *Store) SnapshotAll() []domain.RoomCopy {
	s.mu.RLock()
	roomList := lo.Values(s.rooms)
	s.mu.RUnlock()

	return lo.Map(roomList, func(room *domain.Room, _ int) domain.RoomCopy {
		return room.Copy()
	})
}
