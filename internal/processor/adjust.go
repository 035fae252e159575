package processor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Rec. 601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// resizeToBound scales img so that its larger side equals bound, keeping the
// aspect ratio. Smaller images are enlarged.
func resizeToBound(img image.Image, bound int) image.Image {
	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, bound, 0, imaging.Lanczos)
	}

	return imaging.Resize(img, 0, bound, imaging.Lanczos)
}

// modulate multiplies luma by brightness and chroma by saturation.
func modulate(img image.Image, brightness, saturation float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		y := lumaR*r + lumaG*g + lumaB*b
		ny := y * brightness

		return color.NRGBA{
			R: clamp8(ny + (r-y)*saturation),
			G: clamp8(ny + (g-y)*saturation),
			B: clamp8(ny + (b-y)*saturation),
			A: c.A,
		}
	})
}

// linear applies out = slope*in to every colour channel, leaving alpha alone.
func linear(img image.Image, slope float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(float64(c.R) * slope),
			G: clamp8(float64(c.G) * slope),
			B: clamp8(float64(c.B) * slope),
			A: c.A,
		}
	})
}

// rotate turns img clockwise by degrees. The canvas grows to fit the rotated
// image and uncovered corners are transparent. Right angles are exact.
func rotate(img image.Image, degrees float64) image.Image {
	// imaging rotates counter-clockwise.
	return imaging.Rotate(img, -degrees, color.Transparent)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
