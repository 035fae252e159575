package model

import "strings"

// Format is an image container format accepted for download.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatJPG  Format = "jpg"
	FormatWebP Format = "webp"
	FormatTIFF Format = "tiff"
	FormatGIF  Format = "gif"
	FormatAVIF Format = "avif"
)

// DefaultFormat is used whenever the requested format is unknown.
const DefaultFormat = FormatPNG

var supportedFormats = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatJPG:  "image/jpeg",
	FormatWebP: "image/webp",
	FormatTIFF: "image/tiff",
	FormatGIF:  "image/gif",
	FormatAVIF: "image/avif",
}

// ParseFormat returns the requested format if it is supported and
// DefaultFormat otherwise. Unknown formats are never an error.
func ParseFormat(s string) Format {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := supportedFormats[f]; !ok {
		return DefaultFormat
	}

	return f
}

// Supported reports whether f is one of the download formats.
func (f Format) Supported() bool {
	_, ok := supportedFormats[f]
	return ok
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if ct, ok := supportedFormats[f]; ok {
		return ct
	}

	return supportedFormats[DefaultFormat]
}

// Extension returns the file extension to advertise for f, without a dot.
// "jpg" and "jpeg" keep the spelling the client asked for.
func (f Format) Extension() string {
	if !f.Supported() {
		return string(DefaultFormat)
	}

	return string(f)
}

// Canonical folds aliases onto a single encoder name.
func (f Format) Canonical() Format {
	if f == FormatJPG {
		return FormatJPEG
	}

	return f
}
