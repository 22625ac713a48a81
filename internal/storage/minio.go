package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/emotion/internal/config"
)

const (
	framePrefix       = "frames/"
	latestFrameName   = "latest.jpg"
	capturedAtMetaKey = "Captured-At"
)

// MinIOStore persists the latest frame of each device as a single object
// (frames/<device_id>/latest.jpg). Each write replaces the previous object.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func frameKey(deviceID string) string {
	return framePrefix + deviceID + "/" + latestFrameName
}

// PutFrame overwrites the device's persisted frame.
func (s *MinIOStore) PutFrame(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) error {
	key := frameKey(deviceID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "image/jpeg",
		UserMetadata: map[string]string{capturedAtMetaKey: capturedAt.UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// GetFrame returns the persisted frame and its capture time.
func (s *MinIOStore) GetFrame(ctx context.Context, deviceID string) ([]byte, time.Time, error) {
	key := frameKey(deviceID)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat object %s: %w", key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read object %s: %w", key, err)
	}

	capturedAt := info.LastModified
	if v := info.UserMetadata[capturedAtMetaKey]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			capturedAt = t
		}
	}
	return data, capturedAt.UTC(), nil
}

// ListFrameDevices returns the device IDs that have a persisted frame.
func (s *MinIOStore) ListFrameDevices(ctx context.Context) ([]string, error) {
	var devices []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    framePrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", framePrefix, obj.Err)
		}
		rest := strings.TrimPrefix(obj.Key, framePrefix)
		deviceID, name, ok := strings.Cut(rest, "/")
		if !ok || name != latestFrameName || deviceID == "" {
			continue
		}
		devices = append(devices, deviceID)
	}
	return devices, nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("bucket does not exist")
	}
	return nil
}
