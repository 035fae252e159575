package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Form keys carrying the adjustment parameters.
const (
	KeyBrightness = "brightness"
	KeyContrast   = "contrast"
	KeySaturation = "saturation"
	KeyRotation   = "rotation"
)

// AdjustmentKeys lists every recognised parameter key.
var AdjustmentKeys = []string{KeyBrightness, KeyContrast, KeySaturation, KeyRotation}

// Adjustments is the canonical transform descriptor shared by preview and
// processed generation. Brightness and Saturation are multipliers (1 keeps the
// image unchanged), Contrast is the slope of a zero-intercept linear transform
// and Rotation is a clockwise angle in degrees. Values outside the nominal
// ranges are kept as-is.
type Adjustments struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Rotation   float64 `json:"rotation"`
}

// DefaultAdjustments returns the identity descriptor.
func DefaultAdjustments() Adjustments {
	return Adjustments{Brightness: 1, Contrast: 1, Saturation: 1, Rotation: 0}
}

// IsIdentity reports whether applying a leaves the image untouched.
func (a Adjustments) IsIdentity() bool {
	return !a.Modulates() && a.Contrast == 1 && !a.Rotates()
}

// Modulates reports whether brightness or saturation differ from identity.
func (a Adjustments) Modulates() bool {
	return a.Brightness != 1 || a.Saturation != 1
}

// Rotates reports whether the rotation is not a whole number of turns.
func (a Adjustments) Rotates() bool {
	return math.Mod(a.Rotation, 360) != 0
}

// ParseAdjustments builds Adjustments from loosely typed input such as form
// values or decoded JSON. Absent keys and values that do not parse as a finite
// number fall back to the identity value for that field; it never fails.
func ParseAdjustments(raw map[string]any) Adjustments {
	def := DefaultAdjustments()

	return Adjustments{
		Brightness: floatOr(raw[KeyBrightness], def.Brightness),
		Contrast:   floatOr(raw[KeyContrast], def.Contrast),
		Saturation: floatOr(raw[KeySaturation], def.Saturation),
		Rotation:   floatOr(raw[KeyRotation], def.Rotation),
	}
}

// AdjustmentsFromForm reads the parameter keys through lookup, which reports
// whether a key was sent at all.
func AdjustmentsFromForm(lookup func(key string) (string, bool)) Adjustments {
	raw := make(map[string]any, len(AdjustmentKeys))
	for _, key := range AdjustmentKeys {
		if v, ok := lookup(key); ok {
			raw[key] = v
		}
	}

	return ParseAdjustments(raw)
}

func floatOr(v any, fallback float64) float64 {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return fallback
		}
		f = parsed
	case string:
		parsed, ok := parseFloatPrefix(t)
		if !ok {
			return fallback
		}
		f = parsed
	case []string:
		// Repeated form fields: the first one wins.
		if len(t) == 0 {
			return fallback
		}
		return floatOr(t[0], fallback)
	default:
		return fallback
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}

	return f
}

// parseFloatPrefix parses the longest leading decimal number of s, so that
// "1.5px" yields 1.5. Surrounding whitespace is ignored.
func parseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}

	end := numericPrefixLen(s)
	if end == 0 {
		return 0, false
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

func numericPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}

	// The exponent is only consumed when it has at least one digit.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}

	return i
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
