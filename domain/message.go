package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of a room's ordered log. Regular messages carry
// an author; system notices (join/leave/create/delete announcements)
// have System set, no author, and are never author-deletable.
type Message struct {
	ID          uuid.UUID
	Author      string
	DisplayName string
	Text        string
	ImageURL    string
	RoomID      string
	IsAdmin     bool // author's admin flag, snapshotted at send time
	System      bool
	CreatedAt   time.Time
	Reactions   ReactionMap
}

// NewMessage builds a regular message with a fresh id and server timestamp.
func NewMessage(roomID string, author Identity, text, imageURL string) *Message {
	return &Message{
		ID:          uuid.New(),
		Author:      author.Username,
		DisplayName: author.DisplayName,
		Text:        text,
		ImageURL:    imageURL,
		RoomID:      roomID,
		IsAdmin:     author.IsAdmin,
		CreatedAt:   time.Now().UTC(),
		Reactions:   ReactionMap{},
	}
}

// NewSystemNotice builds an informational log entry owned by the room itself.
func NewSystemNotice(roomID, text string) *Message {
	return &Message{
		ID:        uuid.New(),
		Text:      text,
		RoomID:    roomID,
		System:    true,
		CreatedAt: time.Now().UTC(),
		Reactions: ReactionMap{},
	}
}

// ReactionMap maps an emoji to the usernames that reacted with it.
// Invariant: no key ever maps to an empty set.
type ReactionMap map[string][]string

// Add inserts username under emoji. Returns false if the user already
// reacted with that emoji (idempotent, no state change).
func (r ReactionMap) Add(emoji, username string) bool {
	for _, u := range r[emoji] {
		if u == username {
			return false
		}
	}
	r[emoji] = append(r[emoji], username)
	return true
}

// Remove takes username out of the emoji's set, dropping the key
// entirely when the set empties. Returns false if nothing changed.
func (r ReactionMap) Remove(emoji, username string) bool {
	users, ok := r[emoji]
	if !ok {
		return false
	}
	for i, u := range users {
		if u == username {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = users
			}
			return true
		}
	}
	return false
}

// Copy returns a deep copy safe to hand to other goroutines.
func (r ReactionMap) Copy() ReactionMap {
	out := make(ReactionMap, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}
