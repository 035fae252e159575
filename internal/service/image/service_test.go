package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
	imgproc "github.com/aliskhannn/image-converter/internal/processor"
	"github.com/aliskhannn/image-converter/internal/storage"
	"github.com/aliskhannn/image-converter/internal/storage/file"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type spyProcessor struct {
	calls int
}

func (s *spyProcessor) GeneratePreview(context.Context, []byte, model.Adjustments) ([]byte, error) {
	s.calls++
	return nil, errors.New("unexpected call")
}

func (s *spyProcessor) GenerateProcessed(context.Context, []byte, model.Adjustments) ([]byte, error) {
	s.calls++
	return nil, errors.New("unexpected call")
}

func (s *spyProcessor) Reencode(context.Context, []byte, model.Format) ([]byte, error) {
	s.calls++
	return nil, errors.New("unexpected call")
}

type fakePublisher struct {
	events []model.ArtifactEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event model.ArtifactEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "upload")
	return NewService(imgproc.New(), file.NewStorage(dir), opts...), dir
}

func TestService_MissingInputNeverReachesProcessor(t *testing.T) {
	spy := &spyProcessor{}
	svc := NewService(spy, file.NewStorage(t.TempDir()))
	empty := model.SourceImage{Filename: "abc"}

	_, err := svc.Preview(context.Background(), empty, model.DefaultAdjustments())
	assert.ErrorIs(t, err, model.ErrMissingInput)

	_, err = svc.Process(context.Background(), empty, model.DefaultAdjustments())
	assert.ErrorIs(t, err, model.ErrMissingInput)

	assert.Zero(t, spy.calls)
}

func TestService_PreviewLeavesNoArtifact(t *testing.T) {
	svc, dir := newService(t)
	src := model.NewSourceImage("cat.png", pngBytes(t, 400, 100))

	out, err := svc.Preview(context.Background(), src, model.DefaultAdjustments())
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_PreviewDecodeFailure(t *testing.T) {
	svc, _ := newService(t)
	src := model.NewSourceImage("junk.bin", []byte("not an image"))

	_, err := svc.Preview(context.Background(), src, model.DefaultAdjustments())
	assert.ErrorIs(t, err, imgproc.ErrDecode)
}

func TestService_ProcessThenDownload(t *testing.T) {
	pub := &fakePublisher{}
	svc, dir := newService(t, WithPublisher(pub))
	src := model.NewSourceImage("cat.png", pngBytes(t, 1000, 1000))
	adj := model.Adjustments{Brightness: 1.5, Contrast: 1.2, Saturation: 0.8, Rotation: 90}

	locator, err := svc.Process(context.Background(), src, adj)
	require.NoError(t, err)
	assert.Equal(t, storage.Locator("upload", "processed-"+src.Filename+".png"), locator)
	assert.FileExists(t, filepath.Join(dir, "processed-"+src.Filename+".png"))

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventProcessed, pub.events[0].Type)
	assert.Equal(t, adj, pub.events[0].Adjustments)
	assert.Equal(t, locator, pub.events[0].Artifact.Locator)

	dl, err := svc.Download(context.Background(), model.DownloadRequest{Format: "xyz", Locator: locator})
	require.NoError(t, err)
	assert.Equal(t, model.FormatPNG, dl.Format)
	assert.Equal(t, "image.png", dl.Filename())

	cfg, format, err := image.DecodeConfig(bytes.NewReader(dl.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 800, cfg.Height)

	// Downloads retain the artifact.
	_, err = svc.Download(context.Background(), model.DownloadRequest{Format: "jpeg", Locator: locator})
	require.NoError(t, err)
}

func TestService_DownloadJPEG(t *testing.T) {
	svc, _ := newService(t)
	src := model.NewSourceImage("cat.png", pngBytes(t, 300, 150))

	locator, err := svc.Process(context.Background(), src, model.DefaultAdjustments())
	require.NoError(t, err)

	dl, err := svc.Download(context.Background(), model.DownloadRequest{Format: "JPG", Locator: locator})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", dl.ContentType())
	assert.Equal(t, "image.jpg", dl.Filename())

	_, format, err := image.DecodeConfig(bytes.NewReader(dl.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestService_DownloadNotFoundBeforeDecode(t *testing.T) {
	spy := &spyProcessor{}
	svc := NewService(spy, file.NewStorage(t.TempDir()))

	_, err := svc.Download(context.Background(), model.DownloadRequest{
		Format:  "png",
		Locator: storage.Locator("upload", "processed-missing.png"),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, spy.calls)
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newService(t, WithPublisher(pub))
	src := model.NewSourceImage("cat.png", pngBytes(t, 64, 64))

	locator, err := svc.Process(context.Background(), src, model.DefaultAdjustments())
	require.NoError(t, err)
	assert.NotEmpty(t, locator)
	assert.Len(t, pub.events, 1)
}
