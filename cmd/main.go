package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"parley/auth"
	"parley/blob"
	"parley/domain"
	"parley/identity"
	"parley/repositories"
	"parley/rooms"
	"parley/runtime"
	"parley/runtime/workers"
	"parley/server"
	"parley/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes every component, manages the server lifecycle, and
// centralizes error reporting, so defers (database close, final
// snapshot) always execute before the process exits.
func run() error {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	level, err := logLevel(config.LogLevel)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Stores
	repo := repositories.NewSnapshotRepository(db, log, config.HistoryLimit)

	identityStore := identity.NewStore(log, repo, config.LegacyMasterKey)
	if err := identityStore.Load(); err != nil {
		return err
	}
	if config.LegacyMasterKey != "" {
		log.Warn("legacy master key is ENABLED; any username supplying it gains admin")
	}
	if err := identityStore.Bootstrap(config.BootstrapAdminUsername, config.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	roomStore := rooms.NewStore(log)
	records, err := repo.LoadRooms()
	if err != nil {
		return fmt.Errorf("loading rooms: %w", err)
	}
	roomStore.Restore(lo.Map(records, func(rec repositories.RoomRecord, _ int) domain.RoomCopy {
		return workers.FromRoomRecord(rec)
	}))

	blobStore, err := blob.NewStore(log, blob.Options{
		Endpoint:      config.S3Endpoint,
		AccessKey:     config.S3AccessKey,
		SecretKey:     config.S3SecretKey,
		Bucket:        config.S3Bucket,
		Region:        config.S3Region,
		UseSSL:        config.S3UseSSL,
		PublicBaseURL: config.S3PublicURL,
	})
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	// 4. Live-connection plumbing & service aggregate
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry)
	sessions := services.NewSessionManager()
	tokens := auth.NewTokenIssuer(config.TokenSecret, config.TokenDuration)
	svc := services.NewChatService(log, identityStore, roomStore, sessions, registry, router, blobStore, tokens)

	// 5. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewSnapshotWorker(log, roomStore, identityStore, repo, config.SnapshotInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP server with the websocket endpoint
	ws := server.New(log, svc, config.ConnectionBufferSize)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.Handler(ctx))
	mux.HandleFunc("/healthz", server.Healthz)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final cleanup: stop accepting, flush the last snapshot
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
