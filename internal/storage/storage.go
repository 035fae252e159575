// Package storage holds what the artifact store backends share: naming,
// locators and the not-found error.
package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/aliskhannn/image-converter/internal/model"
)

// DownloadPath is the route a locator points at.
const DownloadPath = "/download"

// ErrNotFound is returned when a locator does not resolve to a stored artifact.
var ErrNotFound = errors.New("artifact not found")

// ArtifactName returns the stored name for a role and an uploaded filename.
// Artifacts are always PNG, whatever the upload was.
func ArtifactName(role model.Role, filename string) string {
	return fmt.Sprintf("%s-%s.%s", role, filepath.Base(filename), model.FormatPNG)
}

// Locator builds the client-facing reference for an artifact stored under dir,
// e.g. /download?imageUrl=upload%2Fprocessed-abc.png.
func Locator(dir, name string) string {
	return DownloadPath + "?imageUrl=" + url.QueryEscape(path.Join(dir, name))
}

// ResolveName extracts the artifact name from a locator: the locator is
// URL-decoded once more and its trailing path segment is taken. Both the full
// locator and a bare "<dir>/<name>" path are accepted.
//
// Names that could step outside the artifact directory are reported as
// ErrNotFound.
func ResolveName(locator string) (string, error) {
	decoded, err := url.PathUnescape(locator)
	if err != nil {
		decoded = locator
	}

	name := decoded
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrNotFound, locator)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrNotFound, locator)
	}

	return name, nil
}
