package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
)

// ArtifactStore is the content-addressable blob store for deck uploads and
// every generated artifact. Failures surface as ErrStorageUnavailable and are
// treated as a collaborator failure by the owning stage.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// MinioStore is the production ArtifactStore.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.Config) (*MinioStore, error) {
	mc := cfg.MinIO
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio init failed: %w", err)
	}
	log.Info().Str("endpoint", mc.Endpoint).Str("bucket", mc.Bucket).Msg("minio connected")
	return &MinioStore{client: client, bucket: mc.Bucket}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket check: %v", ErrStorageUnavailable, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: bucket create: %v", ErrStorageUnavailable, err)
		}
		log.Info().Str("bucket", s.bucket).Msg("bucket created")
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = contentTypeFor(key)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", ErrStorageUnavailable, key, err)
	}

	expiry := 72 * time.Hour
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", ErrStorageUnavailable, key, err)
	}
	log.Debug().Str("key", key).Msg("artifact uploaded")
	return presigned.String(), nil
}

func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, key, err)
	}
	return data, nil
}

// contentTypeFor picks a content type from the key's extension.
func contentTypeFor(key string) string {
	switch filepath.Ext(key) {
	case ".pdf":
		return "application/pdf"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".srt":
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}

// MemArtifactStore keeps blobs in memory for stub mode and tests.
type MemArtifactStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemArtifactStore() *MemArtifactStore {
	return &MemArtifactStore{blobs: make(map[string][]byte)}
}

func (s *MemArtifactStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return "mem://" + key, nil
}

func (s *MemArtifactStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
