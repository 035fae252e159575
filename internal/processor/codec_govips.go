//go:build govips && cgo

package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/aliskhannn/image-converter/internal/model"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initialises libvips once per process.
func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   64 * 1024 * 1024,
			MaxCacheSize:  50,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})

	return nil
}

// Shutdown stops libvips if it was started.
func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()

	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// encodeExtended hands the image to libvips through a lossless PNG buffer and
// exports it in the requested format.
func encodeExtended(w io.Writer, img image.Image, format model.Format) error {
	if err := Startup(); err != nil {
		return err
	}

	var staged bytes.Buffer
	if err := png.Encode(&staged, img); err != nil {
		return fmt.Errorf("stage png: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return fmt.Errorf("load into vips: %w", err)
	}
	defer ref.Close()

	var data []byte
	switch format {
	case model.FormatWebP:
		data, _, err = ref.ExportWebp(vips.NewWebpExportParams())
	case model.FormatAVIF:
		data, _, err = ref.ExportAvif(vips.NewAvifExportParams())
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}

	_, err = w.Write(data)
	return err
}
