package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/storage"
)

// Storage keeps artifacts as plain files in a single directory on the local
// filesystem.
type Storage struct {
	baseDir string
}

// NewStorage creates a Storage rooted at baseDir. The directory is created on
// first write.
func NewStorage(baseDir string) *Storage {
	return &Storage{baseDir: filepath.Clean(baseDir)}
}

// BaseDir returns the directory artifacts are written to.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Write stores data as <role>-<filename>.png, replacing any previous artifact
// with the same name, and confirms the write with a stat.
func (s *Storage) Write(ctx context.Context, role model.Role, filename string, data []byte) (model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return model.Artifact{}, err
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to create directory %s: %w", s.baseDir, err)
	}

	name := storage.ArtifactName(role, filename)
	dstPath := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to stat file %s: %w", dstPath, err)
	}

	return model.Artifact{
		Role:    role,
		Name:    name,
		Format:  model.FormatPNG,
		Path:    dstPath,
		Locator: storage.Locator(filepath.ToSlash(filepath.Base(s.baseDir)), name),
		Size:    info.Size(),
	}, nil
}

// ReadAndRetain returns the artifact referenced by locator and leaves it in place.
func (s *Storage) ReadAndRetain(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	return readFile(path)
}

// ReadAndDelete returns the artifact referenced by locator and removes it from
// disk. The file is removed even when reading it fails.
func (s *Storage) ReadAndDelete(ctx context.Context, locator string) (data []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = fmt.Errorf("failed to delete file %s: %w", path, rmErr)
		}
	}()

	return readFile(path)
}

// Delete removes the artifact referenced by locator. Missing artifacts are not
// an error.
func (s *Storage) Delete(_ context.Context, locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return nil
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}

	return nil
}

// resolve maps a locator to a path inside baseDir and checks that it exists.
func (s *Storage) resolve(locator string) (string, error) {
	name, err := storage.ResolveName(locator)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.baseDir, name)

	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == "." {
		return "", fmt.Errorf("%w: %q", storage.ErrNotFound, locator)
	}

	info, err := os.Stat(path)
	if err != nil {
		if isMissing(err) {
			return "", fmt.Errorf("%w: %q", storage.ErrNotFound, name)
		}

		return "", fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}

	return path, nil
}

// isMissing reports whether a stat error means no artifact can exist under
// that name, including names the OS refuses outright.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.ENAMETOOLONG)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, filepath.Base(path))
		}

		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return data, nil
}
