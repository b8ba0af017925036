package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidKey indicates the bucket or key would escape the store root.
	ErrInvalidKey = errors.New("storage: invalid bucket or key")
)

// DiskStore is an object store backed by the local filesystem. Objects live
// under root/bucket/key and are served from publicBaseURL.
type DiskStore struct {
	root          string
	publicBaseURL string
}

// NewDiskStore ensures the root directory exists and returns the store.
func NewDiskStore(root, publicBaseURL string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &DiskStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Upload writes the object bytes under bucket/key, creating the bucket
// directory on first use.
func (s *DiskStore) Upload(bucket, key string, data []byte) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: create bucket dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write object: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object is served from.
func (s *DiskStore) PublicURL(bucket, key string) string {
	return s.publicBaseURL + "/storage/" + bucket + "/" + key
}

// Root exposes the directory objects are written under, for static serving.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", ErrInvalidKey
	}
	cleaned := filepath.Join(s.root, bucket, key)
	if !strings.HasPrefix(cleaned, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
