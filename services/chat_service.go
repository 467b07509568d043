package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"parley/auth"
	"parley/blob"
	"parley/contract"
	"parley/domain"
	"parley/errors"
	"parley/identity"
	"parley/protocol"
	"parley/rooms"
	"parley/runtime"
)

// ChatService is the aggregate behind every protocol operation. It
// owns the identity store, room registry, and session manager, and is
// threaded explicitly through request handling; there are no
// process-wide singletons.
type ChatService struct {
	log      *slog.Logger
	ids      *identity.Store
	rooms    *rooms.Store
	sessions *SessionManager
	registry contract.IRegistry
	router   *runtime.Router
	blobs    contract.IBlobStore
	tokens   *auth.TokenIssuer

	// ordMu guards roomOrder; each entry serializes log-mutating
	// broadcasts against join replays for one room. See withRoomOrder.
	ordMu     sync.Mutex
	roomOrder map[string]*sync.Mutex
}

func NewChatService(log *slog.Logger, ids *identity.Store, roomStore *rooms.Store,
	sessions *SessionManager, registry contract.IRegistry, router *runtime.Router,
	blobs contract.IBlobStore, tokens *auth.TokenIssuer) *ChatService {
	return &ChatService{
		log:       log,
		ids:       ids,
		rooms:     roomStore,
		sessions:  sessions,
		registry:  registry,
		router:    router,
		blobs:     blobs,
		tokens:    tokens,
		roomOrder: make(map[string]*sync.Mutex),
	}
}

// withRoomOrder runs fn holding the room's delivery order. Every
// append-then-broadcast on a room's log and every history-snapshot-
// then-sink-placement of a join goes through here, which gives joiners
// the exactly-once guarantee: a concurrent message lands either in the
// replay snapshot or on the already-placed live sink, never both and
// never neither.
func (s *ChatService) withRoomOrder(roomID string, fn func()) {
	s.ordMu.Lock()
	mu, ok := s.roomOrder[roomID]
	if !ok {
		mu = &sync.Mutex{}
		s.roomOrder[roomID] = mu
	}
	s.ordMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	fn()
}

func (s *ChatService) dropRoomOrder(roomID string) {
	s.ordMu.Lock()
	delete(s.roomOrder, roomID)
	s.ordMu.Unlock()
}

// Connect registers a fresh anonymous session and its event sink.
func (s *ChatService) Connect(connID string, sink contract.EventSink) *Session {
	s.registry.Subscribe(connID, sink)
	sess := s.sessions.Connect(connID)
	s.log.Debug("connection opened", "conn", connID)
	return sess
}

// Disconnect tears the session down. If it was in a room, the room
// gets a leave notice; everyone gets a fresh user list. In-flight
// operations for this session still complete; only its own sink goes
// quiet.
func (s *ChatService) Disconnect(ctx context.Context, sess *Session) {
	username, authErr := sess.Username()
	roomID, wasInRoom := sess.close()
	s.registry.Unsubscribe(sess.ConnID())
	s.sessions.Close(sess.ConnID())

	if wasInRoom && authErr == nil {
		display := username
		if id, err := s.ids.Get(username); err == nil {
			display = id.DisplayName
		}
		if room, err := s.rooms.Get(roomID); err == nil {
			s.withRoomOrder(roomID, func() {
				notice := room.AppendNotice(fmt.Sprintf("%s left the room", display))
				s.router.ToRoom(ctx, roomID, protocol.TypeChatMessage, toMessageView(notice))
			})
		}
	}
	if authErr == nil {
		s.broadcastUserList(ctx)
	}
	s.log.Debug("connection closed", "conn", sess.ConnID())
}

// Register creates an account. No session state changes; the client
// logs in afterward.
func (s *ChatService) Register(req protocol.RegisterRequest) error {
	if err := auth.ValidateRegister(req); err != nil {
		return err
	}
	return s.ids.Register(req.Username, req.Password, req.DisplayName)
}

// Login authenticates by password or resume token and binds the
// identity to the session. Failure leaves the session anonymous.
func (s *ChatService) Login(ctx context.Context, sess *Session, req protocol.LoginRequest) (protocol.LoginResponse, error) {
	var id domain.Identity
	var err error

	switch {
	case req.Token != "":
		claims, tokenErr := s.tokens.Validate(req.Token)
		if tokenErr != nil {
			return protocol.LoginResponse{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, tokenErr)
		}
		id, err = s.ids.Get(claims.Username)
	default:
		id, err = s.ids.Authenticate(req.Username, req.Password)
	}
	if err != nil {
		return protocol.LoginResponse{}, err
	}

	sess.bind(id.Username)

	token, err := s.tokens.Issue(id.Username, id.IsAdmin)
	if err != nil {
		return protocol.LoginResponse{}, fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}

	s.broadcastUserList(ctx)
	s.sendRoomList(ctx, sess.ConnID())

	view := toUserView(id)
	return protocol.LoginResponse{Success: true, User: &view, Token: token}, nil
}

// CreateRoom registers a new room with the requester auto-joined and
// pushes the refreshed room list to everyone.
func (s *ChatService) CreateRoom(ctx context.Context, sess *Session, req protocol.CreateRoomRequest) (protocol.RoomView, error) {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return protocol.RoomView{}, err
	}
	if err := auth.ValidateCreateRoom(req); err != nil {
		return protocol.RoomView{}, err
	}

	room, err := s.rooms.Create(req.Name, id.Username, req.Password)
	if err != nil {
		return protocol.RoomView{}, err
	}

	s.router.ToAll(ctx, protocol.TypeRoomList, s.rooms.PublicViews())
	return protocol.RoomView{
		ID:          room.ID,
		Name:        room.Name,
		HasPassword: room.HasPassword(),
		Creator:     room.Creator,
		CreatedAt:   room.CreatedAt,
	}, nil
}

// DeleteRoom removes a room (creator or admin only; never general),
// announces it system-wide, and refreshes the room list.
func (s *ChatService) DeleteRoom(ctx context.Context, sess *Session, roomID string) error {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return err
	}

	room, err := s.rooms.Delete(roomID, id)
	if err != nil {
		return err
	}

	s.dropRoomOrder(roomID)

	// The deletion notice lands in general so it survives the room.
	if general, gerr := s.rooms.Get(rooms.GeneralRoomID); gerr == nil {
		s.withRoomOrder(rooms.GeneralRoomID, func() {
			notice := general.AppendNotice(fmt.Sprintf("Room %q was deleted by %s", room.Name, id.DisplayName))
			s.router.ToAll(ctx, protocol.TypeChatMessage, toMessageView(notice))
		})
	}
	s.router.ToAll(ctx, protocol.TypeRoomDeleted, protocol.RoomDeletedResponse{Success: true, RoomID: roomID})
	s.router.ToAll(ctx, protocol.TypeRoomList, s.rooms.PublicViews())
	return nil
}

// JoinRoom moves the session into a room, leaving the previous one
// first. The history snapshot and the sink's room placement happen
// under the room's delivery order, and the join notice is appended
// only after placement, so the joiner receives it live and exactly
// once, never duplicated into the replay.
func (s *ChatService) JoinRoom(ctx context.Context, sess *Session, req protocol.JoinRoomRequest) (protocol.RoomMessagesResponse, error) {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return protocol.RoomMessagesResponse{}, err
	}

	if err := s.rooms.Join(req.RoomID, id, req.Password); err != nil {
		return protocol.RoomMessagesResponse{}, err
	}

	if previous := sess.enterRoom(req.RoomID); previous != "" && previous != req.RoomID {
		if prevRoom, perr := s.rooms.Get(previous); perr == nil {
			s.withRoomOrder(previous, func() {
				leaveNotice := prevRoom.AppendNotice(fmt.Sprintf("%s left the room", id.DisplayName))
				s.router.ToRoom(ctx, previous, protocol.TypeChatMessage, toMessageView(leaveNotice))
			})
		}
	}

	var history []domain.Message
	var joinErr error
	s.withRoomOrder(req.RoomID, func() {
		room, gerr := s.rooms.Get(req.RoomID)
		if gerr != nil {
			// Deleted between the gate check and placement.
			joinErr = gerr
			return
		}
		history = room.History()
		s.registry.EnterRoom(sess.ConnID(), req.RoomID)
		notice := room.AppendNotice(fmt.Sprintf("%s joined the room", id.DisplayName))
		s.router.ToRoom(ctx, req.RoomID, protocol.TypeChatMessage, toMessageView(notice))
	})
	if joinErr != nil {
		return protocol.RoomMessagesResponse{}, joinErr
	}

	return protocol.RoomMessagesResponse{
		RoomID:   req.RoomID,
		Messages: toMessageViews(history),
	}, nil
}

// SendMessage appends to the session's current room and broadcasts the
// stored message. An image payload goes through the blob store first;
// the message then carries only the URL.
func (s *ChatService) SendMessage(ctx context.Context, sess *Session, req protocol.ChatMessageRequest) error {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return err
	}
	if err := auth.ValidateChatMessage(req); err != nil {
		return err
	}
	roomID, inRoom := sess.Room()
	if !inRoom {
		return errors.ErrForbidden
	}
	if req.Room != "" && req.Room != roomID {
		return errors.ErrForbidden
	}

	var imageURL string
	if req.Image != "" {
		ext, data, err := blob.ParseChatImage(req.Image)
		if err != nil {
			return err
		}
		imageURL, err = s.blobs.StoreChatImage(ctx, data, ext)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
		}
	}

	var appendErr error
	s.withRoomOrder(roomID, func() {
		msg, err := s.rooms.AppendMessage(roomID, id, req.Text, imageURL)
		if err != nil {
			appendErr = err
			return
		}
		s.router.ToRoom(ctx, roomID, protocol.TypeChatMessage, toMessageView(msg))
	})
	return appendErr
}

// DeleteMessage hard-removes a message for its author or an admin and
// broadcasts who deleted it. Authorization failures go back to the
// requester only.
func (s *ChatService) DeleteMessage(ctx context.Context, sess *Session, req protocol.DeleteMessageRequest) error {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return err
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return fmt.Errorf("%w: bad message id", errors.ErrInvalidInput)
	}

	var deleteErr error
	s.withRoomOrder(req.RoomID, func() {
		deletedBy, err := s.rooms.DeleteMessage(req.RoomID, messageID, id)
		if err != nil {
			deleteErr = err
			return
		}
		s.router.ToRoom(ctx, req.RoomID, protocol.TypeMessageDeleted, protocol.MessageDeletedBroadcast{
			MessageID: req.MessageID,
			RoomID:    req.RoomID,
			DeletedBy: deletedBy,
		})
	})
	return deleteErr
}

// AddReaction and RemoveReaction toggle a reaction and broadcast the
// message's full updated reaction map, never a delta.
func (s *ChatService) AddReaction(ctx context.Context, sess *Session, req protocol.ReactionRequest) error {
	return s.react(ctx, sess, req, true)
}

func (s *ChatService) RemoveReaction(ctx context.Context, sess *Session, req protocol.ReactionRequest) error {
	return s.react(ctx, sess, req, false)
}

func (s *ChatService) react(ctx context.Context, sess *Session, req protocol.ReactionRequest, add bool) error {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return err
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return fmt.Errorf("%w: bad message id", errors.ErrInvalidInput)
	}

	var toggleErr error
	s.withRoomOrder(req.RoomID, func() {
		var reactions domain.ReactionMap
		var err error
		if add {
			reactions, err = s.rooms.AddReaction(req.RoomID, messageID, req.Emoji, id.Username)
		} else {
			reactions, err = s.rooms.RemoveReaction(req.RoomID, messageID, req.Emoji, id.Username)
		}
		if err != nil {
			toggleErr = err
			return
		}
		s.router.ToRoom(ctx, req.RoomID, protocol.TypeReactionsUpdated, protocol.ReactionsUpdatedBroadcast{
			MessageID: req.MessageID,
			RoomID:    req.RoomID,
			Reactions: reactions,
		})
	})
	return toggleErr
}

// UpdateAvatar stores a new avatar image (or resets to default) and
// refreshes the user list everywhere.
func (s *ChatService) UpdateAvatar(ctx context.Context, sess *Session, req protocol.UpdateAvatarRequest) (protocol.AvatarUpdateResponse, error) {
	id, err := s.requireIdentity(sess)
	if err != nil {
		return protocol.AvatarUpdateResponse{}, err
	}

	var url string
	if !req.Reset {
		ext, data, err := blob.ParseAvatar(req.Avatar)
		if err != nil {
			return protocol.AvatarUpdateResponse{}, err
		}
		url, err = s.blobs.StoreAvatar(ctx, id.Username, data, ext)
		if err != nil {
			return protocol.AvatarUpdateResponse{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
		}
	}

	if _, err := s.ids.SetAvatar(id.Username, url); err != nil {
		return protocol.AvatarUpdateResponse{}, err
	}
	s.broadcastUserList(ctx)
	return protocol.AvatarUpdateResponse{Success: true, AvatarURL: url}, nil
}

// PromoteAdmin grants the admin role; only an admin may grant it.
func (s *ChatService) PromoteAdmin(ctx context.Context, sess *Session, target string) error {
	username, err := sess.Username()
	if err != nil {
		return err
	}
	if _, err := s.ids.PromoteByAdmin(username, target); err != nil {
		return err
	}
	s.broadcastUserList(ctx)
	return nil
}

// RoomList returns the public projection for the requesting client.
func (s *ChatService) RoomList() []protocol.RoomView {
	return s.rooms.PublicViews()
}

func (s *ChatService) requireIdentity(sess *Session) (domain.Identity, error) {
	username, err := sess.Username()
	if err != nil {
		return domain.Identity{}, err
	}
	// Fetched fresh each time so a mid-session admin grant applies
	// immediately.
	return s.ids.Get(username)
}

func (s *ChatService) broadcastUserList(ctx context.Context) {
	active := s.sessions.ActiveUsernames()
	views := make([]protocol.UserView, 0, len(active))
	for _, username := range active {
		if id, err := s.ids.Get(username); err == nil {
			views = append(views, toUserView(id))
		}
	}
	s.router.ToAll(ctx, protocol.TypeUserList, views)
}

// sendRoomList pushes the current room list straight to one
// connection's sink, bypassing the broadcast path.
func (s *ChatService) sendRoomList(ctx context.Context, connID string) {
	sink, ok := s.registry.Sink(connID)
	if !ok {
		return
	}
	event, err := protocol.NewEvent(protocol.TypeRoomList, s.rooms.PublicViews())
	if err != nil {
		s.log.Error("encoding room list", "error", err)
		return
	}
	if err := sink.Consume(ctx, event); err != nil {
		s.log.Debug("room list dropped", "conn", connID, "error", err)
	}
}

func toUserView(id domain.Identity) protocol.UserView {
	return protocol.UserView{
		Username:    id.Username,
		DisplayName: id.DisplayName,
		IsAdmin:     id.IsAdmin,
		AvatarURL:   id.AvatarURL,
	}
}

func toMessageView(m domain.Message) protocol.MessageView {
	return protocol.MessageView{
		ID:          m.ID.String(),
		Author:      m.Author,
		DisplayName: m.DisplayName,
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		RoomID:      m.RoomID,
		IsAdmin:     m.IsAdmin,
		System:      m.System,
		Timestamp:   m.CreatedAt,
		Reactions:   m.Reactions,
	}
}

func toMessageViews(messages []domain.Message) []protocol.MessageView {
	return lo.Map(messages, func(m domain.Message, _ int) protocol.MessageView {
		return toMessageView(m)
	})
}
