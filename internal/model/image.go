package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMissingInput is returned when a request carries no image bytes.
var ErrMissingInput = errors.New("no image uploaded")

// Role tags an artifact with its lifetime and resize bound.
type Role string

const (
	RolePreview   Role = "preview"   // small, deleted right after it is streamed
	RoleProcessed Role = "processed" // large, kept on disk for later download
)

// SourceImage is an uploaded image held in memory for the duration of a request.
type SourceImage struct {
	Filename string // name assigned by the upload step
	Original string // client-side filename, informational only
	Data     []byte
}

// NewSourceImage wraps uploaded bytes and assigns them a random filename.
func NewSourceImage(original string, data []byte) SourceImage {
	return SourceImage{
		Filename: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Original: original,
		Data:     data,
	}
}

// Empty reports whether there is no image data to work with.
func (s SourceImage) Empty() bool {
	return len(s.Data) == 0
}

// Artifact is a generated raster persisted by an artifact store.
type Artifact struct {
	Role    Role   `json:"role"`
	Name    string `json:"name"`    // <role>-<filename>.png
	Format  Format `json:"format"`  // encoding of the payload
	Path    string `json:"path"`    // backend-specific location (file path or object key)
	Locator string `json:"locator"` // client-facing reference
	Size    int64  `json:"size"`
}

// ArtifactEvent is published whenever a persisted artifact is produced.
type ArtifactEvent struct {
	Type        string      `json:"type"` // artifact.processed
	Artifact    Artifact    `json:"artifact"`
	Adjustments Adjustments `json:"adjustments"`
	CreatedAt   time.Time   `json:"created_at"`
}
