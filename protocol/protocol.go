// Package protocol defines the JSON event envelope exchanged over a
// connection and every payload the server accepts or emits.
// Transport, domain, and runtime packages all speak in these types.
package protocol

import (
	"encoding/json"
	"time"
)

// Client-to-server event types.
const (
	TypeRegister          = "register"
	TypeLogin             = "login"
	TypeCreateRoom        = "create_room"
	TypeDeleteRoom        = "delete_room"
	TypeJoinRoom          = "join_room"
	TypeJoinProtectedRoom = "join_protected_room"
	TypeChatMessage       = "chat_message"
	TypeDeleteMessage     = "delete_message"
	TypeAddReaction       = "add_reaction"
	TypeRemoveReaction    = "remove_reaction"
	TypeUpdateAvatar      = "update_avatar"
	TypePromoteAdmin      = "promote_admin"
)

// Server-to-client event types.
const (
	TypeRegisterResponse      = "register_response"
	TypeLoginResponse         = "login_response"
	TypeRoomCreated           = "room_created"
	TypeRoomDeleted           = "room_deleted"
	TypeRoomMessages          = "room_messages"
	TypeJoinProtectedResponse = "join_protected_room_response"
	TypeMessageDeleted        = "message_deleted"
	TypeReactionsUpdated      = "reactions_updated"
	TypeAvatarUpdateResponse  = "avatar_update_response"
	TypePromoteAdminResponse  = "promote_admin_response"
	TypeRoomList              = "room_list"
	TypeUserList              = "user_list"
	TypeError                 = "error"
)

// Event is the wire envelope. Inbound payloads stay raw until the
// dispatcher knows which struct to decode them into; outbound payloads
// are marshaled from concrete types.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an outbound envelope.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Token re-authenticates a previous session without a password.
	Token string `json:"token,omitempty"`
}

type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type DeleteRoomRequest struct {
	RoomID string `json:"roomId"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type ChatMessageRequest struct {
	Room  string `json:"room"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // data URI
}

type DeleteMessageRequest struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type ReactionRequest struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	RoomID    string `json:"roomId"`
}

type UpdateAvatarRequest struct {
	Avatar string `json:"avatar,omitempty"` // data URI
	Reset  bool   `json:"reset,omitempty"`
}

type PromoteAdminRequest struct {
	Username string `json:"username"`
}

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	User    *UserView `json:"user,omitempty"`
	Token   string    `json:"token,omitempty"`
}

type RoomCreatedResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Room    *RoomView `json:"room,omitempty"`
}

type RoomDeletedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	RoomID  string `json:"roomId"`
}

type RoomMessagesResponse struct {
	RoomID   string        `json:"roomId"`
	Messages []MessageView `json:"messages"`
}

type MessageDeletedBroadcast struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
	DeletedBy string `json:"deletedBy"` // "author" or "admin"
}

type ReactionsUpdatedBroadcast struct {
	MessageID string              `json:"messageId"`
	RoomID    string              `json:"roomId"`
	Reactions map[string][]string `json:"reactions"`
}

type AvatarUpdateResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// RoomView is the public projection of a room. It never carries the
// password hash, only whether one is set.
type RoomView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HasPassword bool      `json:"hasPassword"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
}

type UserView struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type MessageView struct {
	ID          string              `json:"id"`
	Author      string              `json:"author,omitempty"`
	DisplayName string              `json:"displayName,omitempty"`
	Text        string              `json:"text,omitempty"`
	ImageURL    string              `json:"imageUrl,omitempty"`
	RoomID      string              `json:"roomId"`
	IsAdmin     bool                `json:"isAdmin,omitempty"`
	System      bool                `json:"system,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
}
