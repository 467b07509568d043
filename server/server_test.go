package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"parley/auth"
	"parley/identity"
	"parley/mocks"
	"parley/protocol"
	"parley/repositories"
	"parley/rooms"
	"parley/runtime"
	"parley/services"
)

// nopRepo swallows identity writes, which happen asynchronously and
// may land after the test function returns.
type nopRepo struct{}

func (nopRepo) SaveIdentity(repositories.IdentityRecord) error         { return nil }
func (nopRepo) LoadIdentities() ([]repositories.IdentityRecord, error) { return nil, nil }
func (nopRepo) SaveRooms([]repositories.RoomRecord) error              { return nil }
func (nopRepo) LoadRooms() ([]repositories.RoomRecord, error)          { return nil, nil }

// newTestServer wires a full service stack behind a real websocket
// endpoint, persistence and blob storage mocked out.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := runtime.NewRegistry()
	svc := services.NewChatService(
		log,
		identity.NewStore(log, nopRepo{}, ""),
		rooms.NewStore(log),
		services.NewSessionManager(),
		registry,
		runtime.NewRouter(log, registry),
		mocks.NewMockIBlobStore(ctrl),
		auth.NewTokenIssuer("test-secret", time.Hour),
	)

	srv := New(log, svc, 64)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.Handler(context.Background()))
	mux.HandleFunc("/healthz", Healthz)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	event, err := protocol.NewEvent(eventType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(event))
}

// awaitEvent reads frames until one of the wanted type arrives,
// skipping interleaved broadcasts like user_list refreshes.
func awaitEvent(t *testing.T, conn *websocket.Conn, eventType string) protocol.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var event protocol.Event
		require.NoError(t, conn.ReadJSON(&event))
		if event.Type == eventType {
			return event
		}
	}
}

func TestWebsocket_FullExchange(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, protocol.TypeRegister, protocol.RegisterRequest{
		Username: "alice", Password: "secretsecret", DisplayName: "Alice",
	})
	var ack protocol.Ack
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeRegisterResponse).Payload, &ack))
	req.True(ack.Success)

	send(t, conn, protocol.TypeLogin, protocol.LoginRequest{Username: "alice", Password: "secretsecret"})

	// Login pushes the room list before replying.
	var roomList []protocol.RoomView
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeRoomList).Payload, &roomList))
	req.NotEmpty(roomList)
	req.Equal(rooms.GeneralRoomID, roomList[0].ID)

	var login protocol.LoginResponse
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeLoginResponse).Payload, &login))
	req.True(login.Success)
	req.NotEmpty(login.Token)

	send(t, conn, protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: rooms.GeneralRoomID})
	var history protocol.RoomMessagesResponse
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeRoomMessages).Payload, &history))
	req.Equal(rooms.GeneralRoomID, history.RoomID)

	send(t, conn, protocol.TypeChatMessage, protocol.ChatMessageRequest{Room: rooms.GeneralRoomID, Text: "hello over the wire"})
	for {
		var view protocol.MessageView
		event := awaitEvent(t, conn, protocol.TypeChatMessage)
		req.NoError(json.Unmarshal(event.Payload, &view))
		if view.System {
			continue // join notice
		}
		req.Equal("hello over the wire", view.Text)
		req.Equal("alice", view.Author)
		break
	}
}

func TestWebsocket_TwoClients_Broadcast(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	register := func(conn *websocket.Conn, username string) {
		send(t, conn, protocol.TypeRegister, protocol.RegisterRequest{
			Username: username, Password: "secretsecret", DisplayName: username,
		})
		awaitEvent(t, conn, protocol.TypeRegisterResponse)
		send(t, conn, protocol.TypeLogin, protocol.LoginRequest{Username: username, Password: "secretsecret"})
		awaitEvent(t, conn, protocol.TypeLoginResponse)
		send(t, conn, protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: rooms.GeneralRoomID})
		awaitEvent(t, conn, protocol.TypeRoomMessages)
	}

	alice := dial(t, ts)
	bob := dial(t, ts)
	register(alice, "alice")
	register(bob, "bob")

	send(t, alice, protocol.TypeChatMessage, protocol.ChatMessageRequest{Room: rooms.GeneralRoomID, Text: "hi bob"})

	for {
		var view protocol.MessageView
		req.NoError(json.Unmarshal(awaitEvent(t, bob, protocol.TypeChatMessage).Payload, &view))
		if view.System {
			continue
		}
		req.Equal("hi bob", view.Text)
		req.Equal("alice", view.Author)
		return
	}
}

func TestWebsocket_UnknownType_And_BadPayload(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := dial(t, ts)

	send(t, conn, "warp_drive", nil)
	var errPayload protocol.ErrorPayload
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeError).Payload, &errPayload))
	req.Contains(errPayload.Message, "warp_drive")

	require.NoError(t, conn.WriteJSON(protocol.Event{Type: protocol.TypeLogin, Payload: json.RawMessage(`"not an object"`)}))
	req.NoError(json.Unmarshal(awaitEvent(t, conn, protocol.TypeError).Payload, &errPayload))
	req.NotEmpty(errPayload.Message)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
