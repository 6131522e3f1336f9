package storage

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, DirPermissions)
}

// MoveDir renames src to dst. Rename is atomic at the filesystem level, so
// a reader sees either the old tree or the new one, never a mix.
func MoveDir(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	return nil
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// HashFile returns the hex-encoded sha256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile compares a file's sha256 against an expected hex digest,
// case-insensitively.
func VerifyFile(path, expectedHash string) (bool, error) {
	hash, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(hash, expectedHash), nil
}

// Unzip extracts an archive into destDir. Entries escaping destDir are
// rejected.
func Unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := EnsureDir(destDir); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal entry path %q", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := EnsureDir(target); err != nil {
				return err
			}
			continue
		}

		if err := EnsureDir(filepath.Dir(target)); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePermissions)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
