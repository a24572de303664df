package fetch

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// Format is the encoding of a tile payload
type Format int

const (
	// FormatPNG is a Terrain-RGB png tile
	FormatPNG Format = iota
	// FormatWebP is a Terrain-RGB webp tile
	FormatWebP
	// FormatMVT is a mapbox vector tile
	FormatMVT
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatMVT:
		return "mvt"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Provider is a tile endpoint addressed by {z}/{x}/{y}
type Provider struct {
	Name string
	// URL is a template containing {z}, {x}, {y} and optionally {token}
	URL           string
	Format        Format
	PixelsPerTile int
	MaxZoom       uint32
	Token         string
}

// URLFor expands the provider's url template for the given tile
func (p Provider) URLFor(t maptile.Tile) string {
	r := strings.NewReplacer(
		"{z}", fmt.Sprintf("%d", t.Z),
		"{x}", fmt.Sprintf("%d", t.X),
		"{y}", fmt.Sprintf("%d", t.Y),
		"{token}", p.Token,
	)
	return r.Replace(p.URL)
}

// Key identifies a tile of this provider in caches
func (p Provider) Key(t maptile.Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d", p.Name, t.Z, t.X, t.Y)
}

// MapboxTerrain is the Mapbox terrain-dem v1 raster source (512px pngraw)
func MapboxTerrain(token string) Provider {
	return Provider{
		Name:          "mapbox-terrain-dem-v1",
		URL:           "https://api.mapbox.com/v4/mapbox.mapbox-terrain-dem-v1/{z}/{x}/{y}@2x.pngraw?access_token={token}",
		Format:        FormatPNG,
		PixelsPerTile: 512,
		MaxZoom:       14,
		Token:         token,
	}
}

// MapTilerTerrain is the MapTiler terrain-rgb v2 raster source (512px webp)
func MapTilerTerrain(token string) Provider {
	return Provider{
		Name:          "maptiler-terrain-rgb-v2",
		URL:           "https://api.maptiler.com/tiles/terrain-rgb-v2/{z}/{x}/{y}.webp?key={token}",
		Format:        FormatWebP,
		PixelsPerTile: 512,
		MaxZoom:       14,
		Token:         token,
	}
}

// MapTilerOcean is the MapTiler ocean depth raster source (512px webp). Land
// is encoded as 0m.
func MapTilerOcean(token string) Provider {
	return Provider{
		Name:          "maptiler-ocean-rgb",
		URL:           "https://api.maptiler.com/tiles/ocean-rgb/{z}/{x}/{y}.webp?key={token}",
		Format:        FormatWebP,
		PixelsPerTile: 512,
		MaxZoom:       7,
		Token:         token,
	}
}

// MapboxStreets is the Mapbox streets v8 vector source carrying the water and
// waterway layers
func MapboxStreets(token string) Provider {
	return Provider{
		Name:          "mapbox-streets-v8",
		URL:           "https://api.mapbox.com/v4/mapbox.mapbox-streets-v8/{z}/{x}/{y}.vector.pbf?access_token={token}",
		Format:        FormatMVT,
		PixelsPerTile: 4096,
		MaxZoom:       14,
		Token:         token,
	}
}

// MapTilerVector is the MapTiler v3 vector source carrying the water and
// waterway layers
func MapTilerVector(token string) Provider {
	return Provider{
		Name:          "maptiler-v3",
		URL:           "https://api.maptiler.com/tiles/v3/{z}/{x}/{y}.pbf?key={token}",
		Format:        FormatMVT,
		PixelsPerTile: 4096,
		MaxZoom:       14,
		Token:         token,
	}
}
