package imagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save saves a file and returns the path/filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error
}

// LocalStorage keeps uploaded invoice images on the local filesystem and
// resolves file:// references against the same directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := l.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	path, err := l.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Resolve reads a file://name reference from the storage directory
func (l *LocalStorage) Resolve(_ context.Context, ref Ref) (*Image, error) {
	name := strings.TrimPrefix(ref.URL, "file://")
	data, err := l.Get(name)
	if err != nil {
		return nil, &FetchError{URL: ref.URL, Err: err}
	}
	if len(data) == 0 {
		return nil, &FetchError{URL: ref.URL, Err: fmt.Errorf("empty file")}
	}

	mimeType := normalizeMime(ref.MimeType)
	if mimeType == "" {
		mimeType = normalizeMime(mimetype.Detect(data).String())
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}

// path maps a name into the storage directory, refusing anything that escapes it
func (l *LocalStorage) path(name string) (string, error) {
	clean := strings.TrimPrefix(filepath.Clean("/"+name), "/")
	if clean == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.basePath, clean), nil
}
