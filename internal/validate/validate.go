package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gruppe-adler/meh-heightmap/internal/settings"
)

// MaxResolution is the largest output edge accepted
const MaxResolution = 16384

// MaxPixels is the largest working buffer accepted, in cells
const MaxPixels = 1 << 29

var (
	// ErrInvalid is wrapped by every configuration error
	ErrInvalid = errors.New("invalid settings")
	// ErrTooLarge is returned for outputs that would exceed the memory limits
	ErrTooLarge = errors.New("output too large")
)

// Error is a configuration error naming the offending field
type Error struct {
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...), Err: ErrInvalid}
}

// Settings validates s for a generation at the given resolution and returns
// the first problem found
func Settings(s settings.Settings, resolution int) error {
	if s.Lng < -180 || s.Lng > 180 {
		return invalid("lng", "%f is out of range", s.Lng)
	}
	if s.Lat < -85.05112878 || s.Lat > 85.05112878 {
		return invalid("lat", "%f is out of range", s.Lat)
	}
	if s.Size <= 0 {
		return invalid("size", "must be positive")
	}

	spec, err := s.Spec()
	if err != nil {
		return invalid("gridInfo", "%s", err)
	}

	if resolution <= spec.Correction+1 {
		return invalid("resolution", "%d is too small", resolution)
	}
	if err := Resolution(resolution); err != nil {
		return err
	}

	if s.ElevationScale <= 0 {
		return invalid("elevationScale", "must be positive")
	}
	if s.VertScale <= 0 {
		return invalid("vertScale", "must be positive")
	}

	switch s.Type {
	case "", "manual", "limit", "maximize":
	default:
		return invalid("type", "unknown mode %q", s.Type)
	}

	switch s.LittArray {
	case "", "linear", "sine", "cubic", "quint":
	default:
		return invalid("littArray", "unknown slope profile %q", s.LittArray)
	}

	switch s.Interpolation {
	case "", "bilinear", "bicubic", "catmullrom":
	default:
		return invalid("interpolation", "unknown kernel %q", s.Interpolation)
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"depth", s.Depth},
		{"streamDepth", s.StreamDepth},
		{"streamWidth", s.StreamWidth},
		{"littoral", s.Littoral},
		{"riparian", s.Riparian},
		{"smoothing", s.Smoothing},
		{"smoothRadius", s.SmoothRadius},
		{"sharpen", s.Sharpen},
		{"sharpenRadius", s.SharpenRadius},
		{"noise", s.Noise},
	} {
		if f.v < 0 {
			return invalid(f.name, "must not be negative")
		}
	}
	if s.Noise > 0 && s.NoiseGrid <= 0 {
		return invalid("noiseGrid", "must be positive when noise is enabled")
	}

	return Token(s)
}

// Resolution rejects output sizes the pipeline can not allocate
func Resolution(resolution int) error {
	if resolution > MaxResolution {
		return &Error{Field: "resolution", Reason: fmt.Sprintf("%d exceeds %d", resolution, MaxResolution), Err: ErrTooLarge}
	}

	// the working buffer carries 100px of padding on each side
	w := resolution + 200
	if w*w > MaxPixels {
		return &Error{Field: "resolution", Reason: fmt.Sprintf("%d cells exceed %d", w*w, MaxPixels), Err: ErrTooLarge}
	}

	return nil
}

// Token checks that the selected provider has an access token
func Token(s settings.Settings) error {
	switch s.Provider {
	case "", "mapbox":
		if strings.TrimSpace(s.AccessToken) == "" {
			return invalid("accessToken", "a mapbox access token is required")
		}
	case "maptiler":
		if strings.TrimSpace(s.AccessTokenMT) == "" {
			return invalid("accessTokenMT", "a maptiler api key is required")
		}
	default:
		return invalid("provider", "unknown provider %q", s.Provider)
	}

	// ocean depth is only served by maptiler
	if s.ActualSeafloor && strings.TrimSpace(s.AccessTokenMT) == "" {
		return invalid("accessTokenMT", "a maptiler api key is required for the actual seafloor")
	}
	return nil
}
