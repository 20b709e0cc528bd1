package cards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/krshsl/skillcards/backend/models"
)

// MappingFileName is the per-interview index written next to the card images
const MappingFileName = "card_mapping.json"

// ArtifactStore persists card images and the per-interview mapping index.
// Returned refs are what clients use to fetch the artifact.
type ArtifactStore interface {
	WriteArtifact(ctx context.Context, interviewID uint, name string, data []byte, contentType string) (string, error)
	WriteIndex(ctx context.Context, interviewID uint, mapping *models.CardMapping) (string, error)
}

func interviewPrefix(interviewID uint) string {
	return fmt.Sprintf("interview_%d", interviewID)
}

// LocalStore writes artifacts under a directory on disk
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) WriteArtifact(ctx context.Context, interviewID uint, name string, data []byte, contentType string) (string, error) {
	dir := filepath.Join(s.dir, interviewPrefix(interviewID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create card directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write card image: %w", err)
	}
	return path, nil
}

func (s *LocalStore) WriteIndex(ctx context.Context, interviewID uint, mapping *models.CardMapping) (string, error) {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode card mapping: %w", err)
	}

	dir := filepath.Join(s.dir, interviewPrefix(interviewID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create card directory: %w", err)
	}

	// Write then rename so readers never see a partial index
	path := filepath.Join(dir, MappingFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write card mapping: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to write card mapping: %w", err)
	}
	return path, nil
}

// GCSStore writes artifacts to a Cloud Storage bucket
type GCSStore struct {
	storageClient *storage.Client
	bucket        string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{storageClient: client, bucket: bucket}
}

// ObjectKey returns the bucket key for an interview artifact
func (s *GCSStore) ObjectKey(interviewID uint, name string) string {
	return "cards/" + interviewPrefix(interviewID) + "/" + name
}

// PublicURL returns the public address of an object key
func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *GCSStore) WriteArtifact(ctx context.Context, interviewID uint, name string, data []byte, contentType string) (string, error) {
	key := s.ObjectKey(interviewID, name)
	if err := s.upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *GCSStore) WriteIndex(ctx context.Context, interviewID uint, mapping *models.CardMapping) (string, error) {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode card mapping: %w", err)
	}

	key := s.ObjectKey(interviewID, MappingFileName)
	if err := s.upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *GCSStore) upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.storageClient.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	slog.Info("Uploaded card artifact", "bucket", s.bucket, "key", key)
	return nil
}
