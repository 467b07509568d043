// Command housekeeper is the scheduled cleanup job for the blob store.
// It deletes chat-image objects older than the retention window that no
// persisted message references anymore, and avatar objects whose owner
// reset or replaced them. Run it from cron or a systemd timer; the
// server itself never touches old blobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"parley/repositories"
)

type Config struct {
	BadgerFilepath string        `envconfig:"BADGER_FILEPATH" required:"true"`
	Retention      time.Duration `envconfig:"BLOB_RETENTION" default:"168h"`
	DryRun         bool          `envconfig:"DRY_RUN" default:"false"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:"localhost:9000"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"parley-files"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	referenced, err := referencedKeys(config)
	if err != nil {
		return err
	}
	log.Info("snapshot scanned", "referenced_blobs", len(referenced))

	client, err := minio.New(config.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.S3AccessKey, config.S3SecretKey, ""),
		Secure: config.S3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("creating S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-config.Retention)
	var removed, kept int
	for object := range client.ListObjects(ctx, config.S3Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return fmt.Errorf("listing objects: %w", object.Err)
		}
		if _, ok := referenced[object.Key]; ok || object.LastModified.After(cutoff) {
			kept++
			continue
		}
		if config.DryRun {
			log.Info("would remove", "key", object.Key, "age", time.Since(object.LastModified).Round(time.Hour))
			continue
		}
		if err := client.RemoveObject(ctx, config.S3Bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Warn("remove failed", "key", object.Key, "error", err)
			continue
		}
		removed++
	}

	log.Info("housekeeping done", "removed", removed, "kept", kept)
	return nil
}

// referencedKeys collects every blob object key still reachable from
// the persisted snapshot: image URLs in room histories and the avatar
// URL of every identity.
func referencedKeys(config Config) (map[string]struct{}, error) {
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	defer db.Close()

	repo := repositories.NewSnapshotRepository(db, slog.Default(), 0)
	keys := make(map[string]struct{})

	roomRecords, err := repo.LoadRooms()
	if err != nil {
		return nil, err
	}
	for _, room := range roomRecords {
		for _, msg := range room.Messages {
			if key := objectKey(msg.ImageURL, config.S3Bucket); key != "" {
				keys[key] = struct{}{}
			}
		}
	}

	identities, err := repo.LoadIdentities()
	if err != nil {
		return nil, err
	}
	for _, id := range identities {
		if key := objectKey(id.AvatarURL, config.S3Bucket); key != "" {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

// objectKey extracts "<prefix>/<file>" from a public blob URL of the
// form <base>/<bucket>/<prefix>/<file>.
func objectKey(url, bucket string) string {
	if url == "" {
		return ""
	}
	marker := "/" + bucket + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return ""
	}
	return url[idx+len(marker):]
}
