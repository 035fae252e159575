//go:build !govips || !cgo

package processor

import (
	"fmt"
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gen2brain/avif"

	"github.com/aliskhannn/image-converter/internal/model"
)

// Startup prepares the codec runtime. The pure Go build has nothing to start.
func Startup() error {
	return nil
}

// Shutdown releases the codec runtime.
func Shutdown() {}

// encodeExtended handles formats imaging cannot write. WebP output is lossless.
func encodeExtended(w io.Writer, img image.Image, format model.Format) error {
	switch format {
	case model.FormatWebP:
		return nativewebp.Encode(w, img, nil)
	case model.FormatAVIF:
		return avif.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
