package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// BlobStore persists uploaded file bytes and returns a stable reference.
type BlobStore interface {
	Store(ctx context.Context, ext string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// FSBlobStore writes blobs to an afero filesystem under Root.
type FSBlobStore struct {
	fs      afero.Fs
	root    string
	baseURL string
}

// NewOSBlobStore stores files on the local disk.
func NewOSBlobStore(root, baseURL string) (*FSBlobStore, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSBlobStore{fs: fs, root: root, baseURL: baseURL}, nil
}

// NewMemBlobStore keeps files in memory.
func NewMemBlobStore(baseURL string) *FSBlobStore {
	return &FSBlobStore{fs: afero.NewMemMapFs(), root: "/", baseURL: baseURL}
}

func (s *FSBlobStore) Fs() afero.Fs {
	return s.fs
}

// HTTPFileSystem serves stored blobs by name.
func (s *FSBlobStore) HTTPFileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs).Dir(s.root)
}

// BaseURL is the prefix every reference starts with.
func (s *FSBlobStore) BaseURL() string {
	return s.baseURL
}

// BasePath is the path component of BaseURL, where the files are served.
func (s *FSBlobStore) BasePath() string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL
	}
	return u.Path
}

func (s *FSBlobStore) Store(ctx context.Context, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	full := filepath.Join(s.root, name)

	f, err := s.fs.Create(full)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(full)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(full)
		return "", fmt.Errorf("close blob: %w", err)
	}
	ref, err := url.JoinPath(s.baseURL, name)
	if err != nil {
		_ = s.fs.Remove(full)
		return "", fmt.Errorf("build blob reference: %w", err)
	}
	return ref, nil
}

// Remove deletes the blob behind ref. Missing blobs are ignored.
func (s *FSBlobStore) Remove(_ context.Context, ref string) error {
	full := filepath.Join(s.root, path.Base(ref))
	exists, err := afero.Exists(s.fs, full)
	if err != nil || !exists {
		return err
	}
	return s.fs.Remove(full)
}
