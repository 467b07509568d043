package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	SnapshotInterval     time.Duration `env:"SNAPSHOT_INTERVAL,default=5m"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`

	TokenSecret   string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h"`

	// BootstrapAdminUsername seeds one admin account on first boot so
	// admin grants have a grantor.
	BootstrapAdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`

	// LegacyMasterKey re-enables the old any-username admin passphrase.
	// Leave empty unless migrating clients that depend on it.
	LegacyMasterKey string `env:"LEGACY_MASTER_KEY"`

	S3Endpoint  string `env:"S3_ENDPOINT,default=localhost:9000"`
	S3AccessKey string `env:"S3_ACCESS_KEY,default=minioadmin"`
	S3SecretKey string `env:"S3_SECRET_KEY,default=minioadmin"`
	S3Bucket    string `env:"S3_BUCKET,default=parley-files"`
	S3Region    string `env:"S3_REGION,default=us-east-1"`
	S3UseSSL    bool   `env:"S3_USE_SSL,default=false"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`
}

func logLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
