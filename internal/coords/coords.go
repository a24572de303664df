package coords

import (
	"errors"
	"math"
)

/**
 *      World pixel coordinates are web mercator pixel coordinates at zoom level 0, where
 *      the whole world is covered by a single tile of pixelsPerTile pixels.
 *
 *      Original Formulas (https://en.m.wikipedia.org/wiki/Web_Mercator_projection#Formulas):
 *          x = (256 / 2π) * 2^z * (longitude + π)
 *          y = (256 / 2π) * 2^z * (π - ln[ tan(π/4 + latitude/2) ])
 *
 *      Modifications:
 *          - zoom level 0
 *          - instead of 256 we use pixelsPerTile (512 for raster tiles, 4096 for vector tiles)
 *          - ln[ tan(π/4 + φ/2) ] is written as atanh(sin φ) and the origin is moved to the
 *            northern clipping latitude of the projection
 *
 *      So we end up with:
 *          x = (ppt / 2) * (longitude / 180 + 1)
 *          y = (ppt / 2π) * (atanh(sin φmax) - atanh(sin φ))
 *
 *      and the inverse:
 *          longitude = 180 * (2x / ppt - 1)
 *          latitude  = asin(tanh(atanh(sin φmax) - 2πy / ppt))
 */

// MaxLatitude is the northern / southern clipping latitude of web mercator
const MaxLatitude = 85.05112878

var errPixelsPerTile = errors.New("pixelsPerTile must be larger than 0")

var atanhMaxLat = math.Atanh(math.Sin(deg2rad(MaxLatitude)))

func rad2deg(rad float64) float64 { return (rad * (180.0 / math.Pi)) }
func deg2rad(deg float64) float64 { return (deg * (math.Pi / 180.0)) }

// LatLng holds latitude and longitude
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// WorldXY is a position in world pixel space
type WorldXY struct {
	X float64
	Y float64
}

// Lng2Pixel converts a longitude to a world pixel x coordinate
func Lng2Pixel(lng, pixelsPerTile float64) float64 {
	return pixelsPerTile / 2 * (lng/180 + 1)
}

// Lat2Pixel converts a latitude to a world pixel y coordinate. Latitudes
// beyond MaxLatitude are clipped.
func Lat2Pixel(lat, pixelsPerTile float64) float64 {
	lat = math.Max(math.Min(lat, MaxLatitude), -MaxLatitude)
	return pixelsPerTile / (2 * math.Pi) * (atanhMaxLat - math.Atanh(math.Sin(deg2rad(lat))))
}

// Pixel2Lng converts a world pixel x coordinate to a longitude
func Pixel2Lng(x, pixelsPerTile float64) float64 {
	return 180 * (2*x/pixelsPerTile - 1)
}

// Pixel2Lat converts a world pixel y coordinate to a latitude
func Pixel2Lat(y, pixelsPerTile float64) float64 {
	return rad2deg(math.Asin(math.Tanh(atanhMaxLat - 2*math.Pi*y/pixelsPerTile)))
}

// LatLng2World converts latitude longitude to world pixel coordinates
func LatLng2World(pixelsPerTile float64, latLng LatLng) (WorldXY, error) {
	if pixelsPerTile <= 0 {
		return WorldXY{}, errPixelsPerTile
	}

	return WorldXY{
		X: Lng2Pixel(latLng.Longitude, pixelsPerTile),
		Y: Lat2Pixel(latLng.Latitude, pixelsPerTile),
	}, nil
}

// World2LatLng converts world pixel coordinates to latitude longitude
func World2LatLng(pixelsPerTile float64, pos WorldXY) (LatLng, error) {
	if pixelsPerTile <= 0 {
		return LatLng{}, errPixelsPerTile
	}

	return LatLng{
		Latitude:  Pixel2Lat(pos.Y, pixelsPerTile),
		Longitude: Pixel2Lng(pos.X, pixelsPerTile),
	}, nil
}
