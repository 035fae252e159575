package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aliskhannn/image-converter/internal/model"
)

const (
	DefaultPreviewBound   = 200
	DefaultProcessedBound = 800

	// DefaultMaxInputPixels caps width*height of a decoded input, 0x3FFF squared.
	DefaultMaxInputPixels = 0x3FFF * 0x3FFF

	tracerName = "github.com/aliskhannn/image-converter/internal/processor"
)

var (
	ErrDecode = errors.New("failed to decode image")
	ErrEncode = errors.New("failed to encode image")
)

// observer receives the duration of every processor operation.
type observer interface {
	ObservePipeline(op string, seconds float64, err error)
}

// Processor applies adjustments to uploaded images and converts between
// container formats. It keeps no per-request state and is safe for concurrent use.
type Processor struct {
	previewBound   int
	processedBound int
	maxPixels      int64
	tracer         trace.Tracer
	observer       observer
}

// Option configures a Processor.
type Option func(*Processor)

// WithBounds overrides the major-dimension bounds for previews and processed images.
func WithBounds(preview, processed int) Option {
	return func(p *Processor) {
		if preview > 0 {
			p.previewBound = preview
		}
		if processed > 0 {
			p.processedBound = processed
		}
	}
}

// WithMaxInputPixels limits the pixel count of images accepted for decoding.
// Non-positive values keep the default.
func WithMaxInputPixels(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxPixels = n
		}
	}
}

// WithObserver reports operation durations to o.
func WithObserver(o observer) Option {
	return func(p *Processor) {
		p.observer = o
	}
}

// New creates a Processor with the default 200px/800px bounds.
func New(opts ...Option) *Processor {
	p := &Processor{
		previewBound:   DefaultPreviewBound,
		processedBound: DefaultProcessedBound,
		maxPixels:      DefaultMaxInputPixels,
		tracer:         otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// GeneratePreview renders a small PNG preview of src with adj applied.
func (p *Processor) GeneratePreview(ctx context.Context, src []byte, adj model.Adjustments) ([]byte, error) {
	return p.render(ctx, "preview", src, p.previewBound, adj)
}

// GenerateProcessed renders the full-size PNG result of src with adj applied.
func (p *Processor) GenerateProcessed(ctx context.Context, src []byte, adj model.Adjustments) ([]byte, error) {
	return p.render(ctx, "processed", src, p.processedBound, adj)
}

// Reencode converts src to format without resizing or any tonal change.
func (p *Processor) Reencode(ctx context.Context, src []byte, format model.Format) (out []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "processor.reencode", trace.WithAttributes(
		attribute.String("image.format", string(format)),
		attribute.Int("image.input_bytes", len(src)),
	))
	defer p.finish(span, "reencode", time.Now(), &err)

	img, err := p.decode(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err = encode(img, format)
	if err != nil {
		return nil, err
	}

	setOutputAttributes(span, img, out)

	return out, nil
}

// render runs resize, modulate, linear contrast and rotation, in that order,
// and encodes the result as PNG. Rotation comes last so that the padding it
// adds is never tone-adjusted.
func (p *Processor) render(ctx context.Context, op string, src []byte, bound int, adj model.Adjustments) (out []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "processor."+op, trace.WithAttributes(
		attribute.Int("image.bound", bound),
		attribute.Int("image.input_bytes", len(src)),
		attribute.Float64("adjust.brightness", adj.Brightness),
		attribute.Float64("adjust.contrast", adj.Contrast),
		attribute.Float64("adjust.saturation", adj.Saturation),
		attribute.Float64("adjust.rotation", adj.Rotation),
	))
	defer p.finish(span, op, time.Now(), &err)

	img, err := p.decode(src)
	if err != nil {
		return nil, err
	}

	steps := []func(image.Image) image.Image{
		func(img image.Image) image.Image { return resizeToBound(img, bound) },
	}
	if adj.Modulates() {
		steps = append(steps, func(img image.Image) image.Image {
			return modulate(img, adj.Brightness, adj.Saturation)
		})
	}
	if adj.Contrast != 1 {
		steps = append(steps, func(img image.Image) image.Image {
			return linear(img, adj.Contrast)
		})
	}
	if adj.Rotates() {
		steps = append(steps, func(img image.Image) image.Image {
			return rotate(img, adj.Rotation)
		})
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img = step(img)
	}

	out, err = encode(img, model.FormatPNG)
	if err != nil {
		return nil, err
	}

	setOutputAttributes(span, img, out)

	return out, nil
}

func (p *Processor) finish(span trace.Span, op string, start time.Time, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()

	if p.observer != nil {
		p.observer.ObservePipeline(op, time.Since(start).Seconds(), *err)
	}
}

func setOutputAttributes(span trace.Span, img image.Image, out []byte) {
	b := img.Bounds()
	span.SetAttributes(
		attribute.Int("image.width", b.Dx()),
		attribute.Int("image.height", b.Dy()),
		attribute.Int("image.output_bytes", len(out)),
	)
}

// decode reads any registered format. Empty input is reported as missing
// rather than corrupt. The header is checked against the pixel limit before
// any pixel buffer is allocated.
func (p *Processor) decode(src []byte) (image.Image, error) {
	if len(src) == 0 {
		return nil, model.ErrMissingInput
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %dx%d image", ErrDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return img, nil
}
