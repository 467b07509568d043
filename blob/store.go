package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options configures the S3-compatible backend.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicBaseURL prefixes returned object URLs, e.g. a CDN host.
	// Empty falls back to the endpoint.
	PublicBaseURL string
}

// Store uploads image bytes to object storage. Objects are keyed
// avatars/<username> (one per user, overwritten on change) and
// images/<uuid>.<ext> for chat images.
type Store struct {
	client  *minio.Client
	log     *slog.Logger
	bucket  string
	region  string
	baseURL string
}

func NewStore(log *slog.Logger, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}

	baseURL := opts.PublicBaseURL
	if baseURL == "" {
		protocol := "http"
		if opts.UseSSL {
			protocol = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", protocol, opts.Endpoint)
	}

	s := &Store{
		client:  client,
		log:     log,
		bucket:  opts.Bucket,
		region:  opts.Region,
		baseURL: baseURL,
	}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("ensuring bucket: %w", err)
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	}
	return nil
}

// StoreAvatar uploads a user's avatar, replacing any previous one.
func (s *Store) StoreAvatar(ctx context.Context, username string, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("avatars/%s.%s", username, ext)
	return s.put(ctx, key, data, ext)
}

// StoreChatImage uploads a chat image under a fresh unique key.
func (s *Store) StoreChatImage(ctx context.Context, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("images/%s.%s", uuid.NewString(), ext)
	return s.put(ctx, key, data, ext)
}

func (s *Store) put(ctx context.Context, key string, data []byte, ext string) (string, error) {
	contentType := "image/" + ext
	if ext == "jpg" {
		contentType = "image/jpeg"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	url := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
	s.log.Debug("blob stored", "key", key, "bytes", len(data))
	return url, nil
}
