package image

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
)

// EventProcessed is the type of the event published for every persisted artifact.
const EventProcessed = "artifact.processed"

// processor defines the image transform engine used by the service.
type processor interface {
	GeneratePreview(ctx context.Context, src []byte, adj model.Adjustments) ([]byte, error)
	GenerateProcessed(ctx context.Context, src []byte, adj model.Adjustments) ([]byte, error)
	Reencode(ctx context.Context, src []byte, format model.Format) ([]byte, error)
}

// artifactStore defines where generated artifacts are kept (local filesystem or S3).
type artifactStore interface {
	Write(ctx context.Context, role model.Role, filename string, data []byte) (model.Artifact, error)
	ReadAndRetain(ctx context.Context, locator string) ([]byte, error)
	ReadAndDelete(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// publisher defines the interface for announcing artifacts to a message broker (e.g., Kafka).
type publisher interface {
	Publish(ctx context.Context, event model.ArtifactEvent) error
}

// Service provides business logic for image operations.
// It runs uploads through the processor, keeps the results in the artifact
// store and serves them back in the requested format.
type Service struct {
	processor processor
	store     artifactStore
	publisher publisher
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher makes the service announce every persisted artifact through pub.
func WithPublisher(pub publisher) Option {
	return func(s *Service) {
		s.publisher = pub
	}
}

// NewService creates a new Service with the given processor and artifact store.
func NewService(p processor, s artifactStore, opts ...Option) *Service {
	svc := &Service{processor: p, store: s}
	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Preview renders a small PNG preview of src with adj applied.
// The preview goes through the artifact store like any other artifact but is
// removed before Preview returns, whatever the outcome.
func (s *Service) Preview(ctx context.Context, src model.SourceImage, adj model.Adjustments) ([]byte, error) {
	if src.Empty() {
		return nil, model.ErrMissingInput
	}

	data, err := s.processor.GeneratePreview(ctx, src.Data, adj)
	if err != nil {
		return nil, fmt.Errorf("preview: failed to generate: %w", err)
	}

	artifact, err := s.store.Write(ctx, model.RolePreview, src.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("preview: failed to write artifact: %w", err)
	}

	out, err := s.store.ReadAndDelete(ctx, artifact.Locator)
	if err != nil {
		// ReadAndDelete removes the artifact even when reading fails; this is
		// for stores that could not get that far.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), artifact.Locator); delErr != nil {
			zlog.Logger.Warn().Err(delErr).Str("artifact", artifact.Name).Msg("failed to remove preview")
		}
		return nil, fmt.Errorf("preview: failed to read artifact: %w", err)
	}

	return out, nil
}

// Process renders the full-size PNG of src with adj applied, persists it and
// returns the locator the client later passes to Download.
func (s *Service) Process(ctx context.Context, src model.SourceImage, adj model.Adjustments) (string, error) {
	if src.Empty() {
		return "", model.ErrMissingInput
	}

	data, err := s.processor.GenerateProcessed(ctx, src.Data, adj)
	if err != nil {
		return "", fmt.Errorf("upload: failed to generate: %w", err)
	}

	artifact, err := s.store.Write(ctx, model.RoleProcessed, src.Filename, data)
	if err != nil {
		return "", fmt.Errorf("upload: failed to write artifact: %w", err)
	}

	zlog.Logger.Info().
		Str("artifact", artifact.Name).
		Str("original", src.Original).
		Int64("size", artifact.Size).
		Msg("processed image saved")

	s.publish(ctx, artifact, adj)

	return artifact.Locator, nil
}

// Download loads the persisted artifact behind req.Locator and re-encodes it
// into req.Format, falling back to PNG for unknown formats.
func (s *Service) Download(ctx context.Context, req model.DownloadRequest) (model.Download, error) {
	format := model.ParseFormat(req.Format)

	data, err := s.store.ReadAndRetain(ctx, req.Locator)
	if err != nil {
		return model.Download{}, fmt.Errorf("download: %w", err)
	}

	out, err := s.processor.Reencode(ctx, data, format)
	if err != nil {
		return model.Download{}, fmt.Errorf("download: failed to convert to %s: %w", format, err)
	}

	return model.Download{Data: out, Format: format}, nil
}

// publish announces a persisted artifact. Failures are logged and never
// reach the caller.
func (s *Service) publish(ctx context.Context, artifact model.Artifact, adj model.Adjustments) {
	if s.publisher == nil {
		return
	}

	event := model.ArtifactEvent{
		Type:        EventProcessed,
		Artifact:    artifact,
		Adjustments: adj,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		zlog.Logger.Err(err).Str("artifact", artifact.Name).Msg("failed to publish artifact event")
	}
}
