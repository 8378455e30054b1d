package securestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File persists one snapshot blob. With a passphrase the blob is sealed;
// without one it is written as is.
type File struct {
	Path       string
	Passphrase string
}

func NewFile(path, passphrase string) *File {
	return &File{Path: strings.TrimSpace(path), Passphrase: strings.TrimSpace(passphrase)}
}

// Encrypted reports whether the file is sealed on disk.
func (f *File) Encrypted() bool {
	return f.Passphrase != ""
}

// Load returns the stored blob, or nil when the file does not exist yet.
func (f *File) Load() ([]byte, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !f.Encrypted() {
		if IsSealed(raw) {
			return nil, fmt.Errorf("%s: %w", f.Path, ErrAuthFailed)
		}
		return raw, nil
	}
	if !IsSealed(raw) {
		return nil, fmt.Errorf("%s: %w", f.Path, ErrPlaintext)
	}
	return Open(f.Passphrase, raw)
}

// Save replaces the stored blob. The new content becomes visible through a
// rename so readers never see a partial file.
func (f *File) Save(data []byte) error {
	out := data
	if f.Encrypted() {
		sealed, err := Seal(f.Passphrase, data)
		if err != nil {
			return err
		}
		out = sealed
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		cleanup()
		return err
	}
	return nil
}
