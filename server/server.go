package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/services"
)

// Server upgrades HTTP requests to websocket connections and starts
// the per-client pumps.
type Server struct {
	log        *slog.Logger
	svc        *services.ChatService
	upgrader   websocket.Upgrader
	sendBuffer int
}

func New(log *slog.Logger, svc *services.ChatService, sendBuffer int) *Server {
	return &Server{
		log: log,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from anywhere; auth happens
			// inside the protocol, not at the HTTP layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

// Handler returns the websocket endpoint. The request context is not
// reused: a client outlives its upgrade request, so pumps run on the
// server's base context.
func (s *Server) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := newClient(uuid.NewString(), conn, s.log, s.svc, s.sendBuffer)
		client.sess = s.svc.Connect(client.id, client)

		go client.writePump(ctx)
		go client.readPump(ctx)
	}
}

// Healthz is a trivial liveness endpoint.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
