package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
)

// FilesystemStore keeps proof-of-payment blobs on local disk, one file per
// key plus a sidecar .meta.json with the upload metadata. Keys are relative
// slash paths; anything escaping the root is rejected.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) Store(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}

	if len(metadata) > 0 {
		meta, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal blob metadata: %w", err)
		}
		if err := os.WriteFile(path+".meta.json", meta, 0o640); err != nil {
			return fmt.Errorf("failed to write blob metadata: %w", err)
		}
	}
	return nil
}

func (s *FilesystemStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domainErrors.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := os.Remove(path + ".meta.json"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob metadata: %w", err)
	}
	return nil
}

func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", domainErrors.NewValidationError("storage_key", "invalid key")
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
