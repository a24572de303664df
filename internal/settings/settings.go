package settings

import (
	"encoding/json"
	"fmt"
	"os"
)

// GridInfo names a target map format
type GridInfo string

// Supported target formats
const (
	GridCS1     GridInfo = "cs1"
	GridCS2     GridInfo = "cs2"
	GridCS2Play GridInfo = "cs2play"
	GridUnity   GridInfo = "unity"
	GridUE      GridInfo = "ue"
)

// MapSpec describes the output geometry of a target format
type MapSpec struct {
	// Pixels is the native resolution
	Pixels int
	// SizeKm is the native map size
	SizeKm float64
	// Correction is 1 for vertex based grids, whose outermost vertices sit on
	// the map border, and 0 for cell based grids
	Correction int
	// ExtentOffset shrinks the sampled extent on each side, see
	// coords.GetExtent
	ExtentOffset float64
	// LegacyUnitScale quantizes in 1/64m units instead of
	// elevationScale/65535
	LegacyUnitScale bool
}

// MapSpecs lists the supported formats
var MapSpecs = map[GridInfo]MapSpec{
	GridCS1:     {Pixels: 1081, SizeKm: 17.28, Correction: 1, LegacyUnitScale: true},
	GridCS2:     {Pixels: 4096, SizeKm: 57.344},
	GridCS2Play: {Pixels: 4096, SizeKm: 57.344, ExtentOffset: 0.375},
	GridUnity:   {Pixels: 1025, SizeKm: 17.28, Correction: 1},
	GridUE:      {Pixels: 1009, SizeKm: 17.28, Correction: 1},
}

// Settings of one heightmap generation. The json names are the ones of the
// settings export of the web application.
type Settings struct {
	Lng        float64 `json:"lng"`
	Lat        float64 `json:"lat"`
	Size       float64 `json:"size"`
	Resolution int     `json:"resolution"`
	Angle      float64 `json:"angle"`

	SeaLevel  float64 `json:"seaLevel"`
	AdjLevel  bool    `json:"adjLevel"`
	VertScale float64 `json:"vertScale"`
	Type      string  `json:"type"`

	Depth       float64 `json:"depth"`
	Waterside   int     `json:"waterside"`
	StreamDepth float64 `json:"streamDepth"`
	StreamWidth float64 `json:"streamWidth"`
	Littoral    float64 `json:"littoral"`
	Riparian    float64 `json:"riparian"`
	LittArray   string  `json:"littArray"`

	Smoothing     float64 `json:"smoothing"`
	SmthThres     float64 `json:"smthThres"`
	SmthFade      float64 `json:"smthFade"`
	SmoothRadius  float64 `json:"smoothRadius"`
	Sharpen       float64 `json:"sharpen"`
	ShrpThres     float64 `json:"shrpThres"`
	ShrpFade      float64 `json:"shrpFade"`
	SharpenRadius float64 `json:"sharpenRadius"`

	Noise      float64 `json:"noise"`
	NoiseGrid  float64 `json:"noiseGrid"`
	NoiseThres float64 `json:"noiseThres"`
	NoiseSeed  int64   `json:"noiseSeed"`

	GridInfo       GridInfo `json:"gridInfo"`
	ElevationScale float64  `json:"elevationScale"`
	Interpolation  string   `json:"interpolation"`
	ActualSeafloor bool     `json:"actualSeafloor"`

	Provider      string `json:"provider"`
	AccessToken   string `json:"accessToken"`
	AccessTokenMT string `json:"accessTokenMT"`
}

// Default returns the settings of a fresh installation: Central Park in
// the cs1 format
func Default() Settings {
	return Settings{
		Lng:            -73.9653,
		Lat:            40.7828,
		Size:           17.28,
		Resolution:     1081,
		VertScale:      1,
		Type:           "manual",
		Depth:          40,
		Waterside:      1,
		StreamWidth:    8,
		Littoral:       160,
		LittArray:      "sine",
		NoiseGrid:      10,
		GridInfo:       GridCS1,
		ElevationScale: 4096,
		Interpolation:  "bicubic",
		Provider:       "mapbox",
	}
}

// Read loads a settings file. Fields missing in the file keep their
// defaults.
func Read(settingsPath string) (Settings, error) {
	val := Default()

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return val, err
	}

	if err := json.Unmarshal(data, &val); err != nil {
		return val, fmt.Errorf("parsing %s: %w", settingsPath, err)
	}

	return val, nil
}

// Spec returns the MapSpec of the configured format
func (s Settings) Spec() (MapSpec, error) {
	spec, ok := MapSpecs[s.GridInfo]
	if !ok {
		return MapSpec{}, fmt.Errorf("unknown grid type %q", s.GridInfo)
	}
	return spec, nil
}

// UnitScale is the height in meters of one 16 bit output unit
func (s Settings) UnitScale() float64 {
	if spec, err := s.Spec(); err == nil && spec.LegacyUnitScale {
		return 1.0 / 64
	}
	return s.ElevationScale / 65535
}

// Token returns the access token of the configured provider
func (s Settings) Token() string {
	if s.Provider == "maptiler" {
		return s.AccessTokenMT
	}
	return s.AccessToken
}
