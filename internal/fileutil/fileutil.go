// Package fileutil provides the file relocation primitive and the write
// helpers the meta store and ingest adapters share.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const maxCollisionAttempts = 10000

// collisionName returns the attempt-th candidate for name in dir. Attempt 0
// is name itself; later attempts insert " (n)" before the extension.
func collisionName(dir, name string, attempt int) string {
	if attempt == 0 {
		return filepath.Join(dir, name)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, attempt, ext))
}

// CreateUnique creates a new file in dir named after name, adding " (n)"
// before the extension while names are taken. The file is opened with O_EXCL
// so concurrent writers never share a name.
func CreateUnique(dir, name string, mode os.FileMode) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		file, err := os.OpenFile(collisionName(dir, name, attempt), os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free name for %q in %s", name, dir)
}

// linkFile is swapped in tests to force the copy fallback.
var linkFile = os.Link

// Relocate moves src into dstDir, keeping its basename unless taken, and
// returns the final path. An existing file is never replaced: each candidate
// name is claimed with link(2), which fails on an existing name, and the
// source is unlinked afterwards. On EXDEV, EPERM or ENOTSUP the file is copied
// into an O_EXCL destination, verified, and the source removed. Neither path
// is crash atomic: a crash before the source removal leaves both files.
func Relocate(src, dstDir string) (string, error) {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("create target directory: %w", err)
	}
	name := filepath.Base(src)
	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		candidate := collisionName(dstDir, name, attempt)
		err := place(src, candidate)
		if err == nil {
			if err := os.Remove(src); err != nil {
				return candidate, fmt.Errorf("remove source after move: %w", err)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %q in %s", name, dstDir)
}

// MoveTo moves src to exactly dst, failing with os.ErrExist when dst is taken.
// It shares the link-then-copy strategy of Relocate.
func MoveTo(src, dst string) error {
	if err := place(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after move: %w", err)
	}
	return nil
}

// place makes dst a copy of src without touching an existing dst. The source
// is left in place.
func place(src, dst string) error {
	err := linkFile(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return os.ErrExist
	}
	if !needsCopyFallback(err) {
		return fmt.Errorf("move file: %w", err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return os.ErrExist
		}
		return fmt.Errorf("copy file across devices: %w", err)
	}
	return nil
}

func needsCopyFallback(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, unix.EXDEV) ||
		errors.Is(linkErr.Err, unix.EPERM) ||
		errors.Is(linkErr.Err, unix.ENOTSUP)
}

// CopyFileVerified streams src into a new file at dst and verifies size and
// SHA-256. dst must not exist. A mismatching copy is removed.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
