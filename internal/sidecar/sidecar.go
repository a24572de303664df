// Package sidecar writes the heightmap.json metadata file next to a
// generated heightmap.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
	"github.com/gruppe-adler/meh-heightmap/internal/settings"
)

// FileName of the sidecar inside the output directory
const FileName = "heightmap.json"

// Version of the sidecar format
const Version = "1.0.0"

// Sidecar describes one generated heightmap
type Sidecar struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Resolution int     `json:"resolution"`
	Min        float32 `json:"min"`
	Max        float32 `json:"max"`
	// Base is the height in meters encoded as 0
	Base float32 `json:"base"`
	// UnitScale is the height in meters of one 16 bit unit
	UnitScale float64 `json:"unitScale"`

	Zoom      uint32 `json:"zoom"`
	TileCount int    `json:"tileCount"`

	Files    []string          `json:"files"`
	Settings settings.Settings `json:"settings"`
}

// New describes res generated from s. Access tokens are not carried over.
func New(s settings.Settings, resolution int, res pipeline.Result, files []string) Sidecar {
	s.AccessToken = ""
	s.AccessTokenMT = ""

	var base float32
	if s.AdjLevel {
		base = res.Stats.Min
	}

	return Sidecar{
		Version:     Version,
		Name:        fmt.Sprintf("%s heightmap %.4f,%.4f", s.GridInfo, s.Lat, s.Lng),
		Description: fmt.Sprintf("%dpx %s heightmap of %.3fkm around %.5f,%.5f", resolution, s.GridInfo, s.Size, s.Lat, s.Lng),
		Resolution:  resolution,
		Min:         res.Stats.Min,
		Max:         res.Stats.Max,
		Base:        base,
		UnitScale:   s.UnitScale(),
		Zoom:        res.Zoom,
		TileCount:   res.TileCount,
		Files:       files,
		Settings:    s,
	}
}

// Write a heightmap.json
func Write(outputDirectory string, obj Sidecar) error {
	f, err := os.Create(path.Join(outputDirectory, FileName))
	if err != nil {
		return err
	}

	bytes, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		f.Close()
		return err
	}

	if _, err := f.Write(bytes); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Read loads a heightmap.json
func Read(outputDirectory string) (Sidecar, error) {
	var obj Sidecar

	data, err := os.ReadFile(path.Join(outputDirectory, FileName))
	if err != nil {
		return obj, err
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return obj, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	return obj, nil
}
