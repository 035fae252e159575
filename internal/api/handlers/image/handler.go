package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/api/respond"
	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/storage"
)

// DefaultMaxUploadBytes limits the request body when no other limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// service defines the interface for image-related operations.
type service interface {
	Preview(ctx context.Context, src model.SourceImage, adj model.Adjustments) ([]byte, error)
	Process(ctx context.Context, src model.SourceImage, adj model.Adjustments) (string, error)
	Download(ctx context.Context, req model.DownloadRequest) (model.Download, error)
}

// Handler provides HTTP handlers for image-related endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service        service
	maxUploadBytes int64
}

// NewHandler creates a new Handler with the given service. A non-positive
// maxUploadBytes falls back to DefaultMaxUploadBytes.
func NewHandler(s service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	return &Handler{service: s, maxUploadBytes: maxUploadBytes}
}

// Preview handles the HTTP request for a live preview.
// It applies the form adjustments to the uploaded image and responds with a
// small PNG. Nothing is kept on the server afterwards.
func (h *Handler) Preview(c *ginext.Context) {
	src, ok := h.readUpload(c)
	if !ok {
		return
	}

	adj := model.AdjustmentsFromForm(c.GetPostForm)

	data, err := h.service.Preview(c.Request.Context(), src, adj)
	if err != nil {
		h.fail(c, "preview", err)
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.Image(c, http.StatusOK, model.FormatPNG.ContentType(), data)
}

// Upload handles the HTTP request for processing an image.
// It applies the form adjustments, persists the full-size result and
// responds with the URL it can be downloaded from.
func (h *Handler) Upload(c *ginext.Context) {
	src, ok := h.readUpload(c)
	if !ok {
		return
	}

	adj := model.AdjustmentsFromForm(c.GetPostForm)

	locator, err := h.service.Process(c.Request.Context(), src, adj)
	if err != nil {
		h.fail(c, "upload", err)
		return
	}

	respond.OK(c, map[string]string{"imageUrl": locator})
}

// Download serves a previously processed image converted to the requested format.
func (h *Handler) Download(c *ginext.Context) {
	req := model.DownloadRequest{
		Format:  c.Query("format"),
		Locator: c.Query("imageUrl"),
	}

	dl, err := h.service.Download(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			zlog.Logger.Warn().Str("imageUrl", req.Locator).Msg("image not found")
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("image not found"))
			return
		}

		h.fail(c, "download", err)
		return
	}

	respond.Attachment(c, dl.ContentType(), dl.Filename(), dl.Data)
}

// Healthz reports that the process is up.
func (h *Handler) Healthz(c *ginext.Context) {
	respond.OK(c, map[string]string{"status": "ok"})
}

// readUpload extracts the "image" file from the multipart form. It writes the
// error response itself and reports false when the request cannot proceed.
func (h *Handler) readUpload(c *ginext.Context) (model.SourceImage, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			zlog.Logger.Warn().Int64("limit", tooLarge.Limit).Msg("upload too large")
			respond.Fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("image exceeds %d bytes", tooLarge.Limit))
			return model.SourceImage{}, false
		}

		zlog.Logger.Warn().Err(err).Msg("no image in request")
		respond.Fail(c, http.StatusBadRequest, model.ErrMissingInput)
		return model.SourceImage{}, false
	}

	file, err := header.Open()
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to open the uploaded file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read the image"))
		return model.SourceImage{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read the uploaded file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read the image"))
		return model.SourceImage{}, false
	}

	if len(data) == 0 {
		respond.Fail(c, http.StatusBadRequest, model.ErrMissingInput)
		return model.SourceImage{}, false
	}

	zlog.Logger.Debug().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Msg("image uploaded")

	return model.NewSourceImage(header.Filename, data), true
}

// fail maps service errors to HTTP responses.
func (h *Handler) fail(c *ginext.Context, op string, err error) {
	if errors.Is(err, model.ErrMissingInput) {
		respond.Fail(c, http.StatusBadRequest, model.ErrMissingInput)
		return
	}

	zlog.Logger.Err(err).Str("op", op).Msg("image operation failed")
	respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to process the image"))
}
