package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"kes/apperr"
)

// Store keeps attachment blobs under a base directory, one file per key.
// Keys are random UUIDs; the first two characters shard the directory.
type Store struct {
	basePath string
	fs       afs.Service
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage base path cannot be empty")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path %s: %w", basePath, err)
	}

	fs := afs.New()
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, abs)
	if !exists {
		if err := fs.Create(ctx, abs, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return &Store{basePath: filepath.ToSlash(abs), fs: fs}, nil
}

// Put stores data and returns its new key.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	key := uuid.NewString()
	if err := s.fs.Upload(ctx, s.blobPath(key), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store blob %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	p := s.blobPath(key)
	exists, err := s.fs.Exists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("check blob %s: %w", key, err)
	}
	if !exists {
		return nil, apperr.NotFound("Fichier introuvable")
	}
	data, err := s.fs.DownloadWithURL(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	p := s.blobPath(key)
	exists, err := s.fs.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("check blob %s: %w", key, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, p); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (s *Store) blobPath(key string) string {
	return path.Join(s.basePath, key[:2], key)
}

func checkKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return apperr.NotFound("Fichier introuvable")
	}
	return nil
}
