package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Decoders beyond the ones imaging registers (png, jpeg, gif, tiff, bmp).
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/aliskhannn/image-converter/internal/model"
)

const jpegQuality = 90

// imagingFormats are encoded by imaging directly; the rest go through the
// build-specific encodeExtended.
var imagingFormats = map[model.Format]imaging.Format{
	model.FormatPNG:  imaging.PNG,
	model.FormatJPEG: imaging.JPEG,
	model.FormatGIF:  imaging.GIF,
	model.FormatTIFF: imaging.TIFF,
}

// encode writes img in the requested format. Unsupported formats are encoded
// as PNG, mirroring model.ParseFormat.
func encode(img image.Image, format model.Format) ([]byte, error) {
	format = model.ParseFormat(string(format)).Canonical()

	buf := new(bytes.Buffer)

	if f, ok := imagingFormats[format]; ok {
		if err := imaging.Encode(buf, img, f, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("%w as %s: %v", ErrEncode, format, err)
		}

		return buf.Bytes(), nil
	}

	if err := encodeExtended(buf, img, format); err != nil {
		return nil, fmt.Errorf("%w as %s: %v", ErrEncode, format, err)
	}

	return buf.Bytes(), nil
}
