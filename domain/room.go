package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/errors"
)

// DeletedByAuthor and DeletedByAdmin tell clients how to phrase the
// deletion notice.
const (
	DeletedByAuthor = "author"
	DeletedByAdmin  = "admin"
)

// Room owns its member set and ordered message log behind a single
// mutex, so operations on different rooms never contend. All mutation
// of messages and reactions goes through Room methods; callers never
// hold a reference they can change independently.
type Room struct {
	mu sync.Mutex

	ID           string
	Name         string
	Creator      string
	CreatedAt    time.Time
	PasswordHash string // empty means the room is open

	members  map[string]struct{}
	messages []*Message
}

// NewRoom creates an empty room. A non-empty passwordHash gates the
// first join of every non-member.
func NewRoom(id, name, creator, passwordHash string) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		Creator:      creator,
		CreatedAt:    time.Now().UTC(),
		PasswordHash: passwordHash,
		members:      make(map[string]struct{}),
	}
}

func (r *Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// IsMember reports whether username already joined at least once.
// Membership is monotonic: it survives leaving and reconnecting.
func (r *Room) IsMember(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[username]
	return ok
}

// AddMember records membership. Safe to call repeatedly.
func (r *Room) AddMember(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[username] = struct{}{}
}

// Members returns a copy of the member usernames.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members))
	for username := range r.members {
		out = append(out, username)
	}
	return out
}

// Append adds a message to the end of the log and returns a copy for
// broadcasting.
func (r *Room) Append(msg *Message) Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return copyMessage(msg)
}

// AppendNotice appends a system notice and returns a copy of it.
func (r *Room) AppendNotice(text string) Message {
	return r.Append(NewSystemNotice(r.ID, text))
}

// History returns a point-in-time copy of the full log. The in-memory
// log is never truncated during a live session; only the persisted
// snapshot is capped.
func (r *Room) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, copyMessage(m))
	}
	return out
}

// Delete hard-removes a message. Allowed for the author or an admin;
// system notices have no author, so only an admin can remove them.
// The returned value says which role performed the deletion.
func (r *Room) Delete(messageID uuid.UUID, requester Identity) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m.ID != messageID {
			continue
		}
		switch {
		case !m.System && m.Author == requester.Username:
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return DeletedByAuthor, nil
		case requester.IsAdmin:
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return DeletedByAdmin, nil
		default:
			return "", errors.ErrForbidden
		}
	}
	return "", errors.ErrNotFound
}

// AddReaction appends username under emoji on the target message and
// returns the full updated reaction map. Re-adding an existing
// reaction is a no-op that still returns the current state.
func (r *Room) AddReaction(messageID uuid.UUID, emoji, username string) (ReactionMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, err := r.find(messageID)
	if err != nil {
		return nil, err
	}
	msg.Reactions.Add(emoji, username)
	return msg.Reactions.Copy(), nil
}

// RemoveReaction drops username from the emoji's set, erasing the key
// when the set empties, and returns the full updated reaction map.
func (r *Room) RemoveReaction(messageID uuid.UUID, emoji, username string) (ReactionMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, err := r.find(messageID)
	if err != nil {
		return nil, err
	}
	msg.Reactions.Remove(emoji, username)
	return msg.Reactions.Copy(), nil
}

func (r *Room) find(messageID uuid.UUID) (*Message, error) {
	for _, m := range r.messages {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, errors.ErrNotFound
}

// RoomCopy is a consistent point-in-time copy of a room, taken under
// the room lock. The snapshot worker serializes these off the
// foreground path.
type RoomCopy struct {
	ID           string
	Name         string
	Creator      string
	CreatedAt    time.Time
	PasswordHash string
	Members      []string
	Messages     []Message
}

// Copy captures the room state. Holding the lock only for the duration
// of the copy keeps persistence from blocking message handling.
func (r *Room) Copy() RoomCopy {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]string, 0, len(r.members))
	for username := range r.members {
		members = append(members, username)
	}
	messages := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		messages = append(messages, copyMessage(m))
	}
	return RoomCopy{
		ID:           r.ID,
		Name:         r.Name,
		Creator:      r.Creator,
		CreatedAt:    r.CreatedAt,
		PasswordHash: r.PasswordHash,
		Members:      members,
		Messages:     messages,
	}
}

// Restore rebuilds a room from a persisted copy.
func Restore(c RoomCopy) *Room {
	room := NewRoom(c.ID, c.Name, c.Creator, c.PasswordHash)
	room.CreatedAt = c.CreatedAt
	for _, username := range c.Members {
		room.members[username] = struct{}{}
	}
	for _, m := range c.Messages {
		msg := m
		if msg.Reactions == nil {
			msg.Reactions = ReactionMap{}
		}
		room.messages = append(room.messages, &msg)
	}
	return room
}

func copyMessage(m *Message) Message {
	out := *m
	out.Reactions = m.Reactions.Copy()
	return out
}
