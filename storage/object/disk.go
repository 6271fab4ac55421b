// Package object stores attachment binaries on the local filesystem under a
// configured root directory.
package object

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidPath    = errors.New("invalid object path")
)

type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &DiskStore{root: root}, nil
}

// resolve maps an object path to a location under the root and rejects
// anything that would escape it.
func (s *DiskStore) resolve(path string) (string, error) {
	if path == "" || strings.Contains(path, "..") || filepath.IsAbs(path) {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

func (s *DiskStore) Put(_ context.Context, path string, r io.Reader, _ string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(err, "creating object directory")
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrObjectExists
		}
		return errors.Wrap(err, "creating object")
	}

	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return errors.Wrap(err, "writing object")
	}
	return errors.Wrap(f.Close(), "closing object")
}

func (s *DiskStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, "reading object")
	}
	return data, nil
}

func (s *DiskStore) Remove(_ context.Context, paths ...string) error {
	for _, path := range paths {
		full, err := s.resolve(path)
		if err != nil {
			return err
		}
		if err = os.Remove(full); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing object")
		}
	}
	return nil
}
