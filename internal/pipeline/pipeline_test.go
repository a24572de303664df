package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/settings"
	"github.com/gruppe-adler/meh-heightmap/internal/terrainrgb"
	"github.com/gruppe-adler/meh-heightmap/internal/validate"
)

const testPixelsPerTile = 64

func encodeTile(t *testing.T, height float32) []byte {
	t.Helper()

	heights := make([]float32, testPixelsPerTile*testPixelsPerTile)
	for i := range heights {
		heights[i] = height
	}

	buf := bytes.Buffer{}
	if err := png.Encode(&buf, terrainrgb.EncodeImage(heights, testPixelsPerTile, testPixelsPerTile)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// tileServer serves constant terrain and ocean tiles, terrain rising 1m per
// pixel eastwards and empty vector tiles. A terrainStatus other than 200
// fails every terrain request, with flaky the first request of every path
// answers 503.
type tileServer struct {
	*httptest.Server
	requests int32
	terrain  string

	mu   sync.Mutex
	seen map[string]bool
}

func newTileServer(t *testing.T, terrainStatus int, flaky bool) *tileServer {
	t.Helper()

	terrain := encodeTile(t, 100)
	ocean := encodeTile(t, -50)

	ts := &tileServer{terrain: "terrain", seen: map[string]bool{}}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ts.requests, 1)

		if flaky {
			ts.mu.Lock()
			first := !ts.seen[r.URL.Path]
			ts.seen[r.URL.Path] = true
			ts.mu.Unlock()
			if first {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}

		switch {
		case strings.HasPrefix(r.URL.Path, "/terrain/"):
			if terrainStatus != http.StatusOK {
				w.WriteHeader(terrainStatus)
				return
			}
			w.Write(terrain)
		case strings.HasPrefix(r.URL.Path, "/gradient/"):
			var z, x, y int
			if _, err := fmt.Sscanf(r.URL.Path, "/gradient/%d/%d/%d.png", &z, &x, &y); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write(encodeGradientTile(t, x))
		case strings.HasPrefix(r.URL.Path, "/ocean/"):
			w.Write(ocean)
		case strings.HasPrefix(r.URL.Path, "/vector/"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

// encodeGradientTile encodes tile column x of a terrain rising 1m per world
// pixel eastwards
func encodeGradientTile(t *testing.T, x int) []byte {
	heights := make([]float32, testPixelsPerTile*testPixelsPerTile)
	for py := 0; py < testPixelsPerTile; py++ {
		for px := 0; px < testPixelsPerTile; px++ {
			heights[py*testPixelsPerTile+px] = float32((x-4800)*testPixelsPerTile + px)
		}
	}

	buf := bytes.Buffer{}
	if err := png.Encode(&buf, terrainrgb.EncodeImage(heights, testPixelsPerTile, testPixelsPerTile)); err != nil {
		t.Error(err)
	}
	return buf.Bytes()
}

func (ts *tileServer) providers(s settings.Settings) Providers {
	raster := func(name string) fetch.Provider {
		return fetch.Provider{
			Name:          name,
			URL:           ts.URL + "/" + name + "/{z}/{x}/{y}.png?access_token={token}",
			Format:        fetch.FormatPNG,
			PixelsPerTile: testPixelsPerTile,
			MaxZoom:       14,
			Token:         s.Token(),
		}
	}

	return Providers{
		Terrain: raster(ts.terrain),
		Ocean:   raster("ocean"),
		Vector: fetch.Provider{
			Name:          "vector",
			URL:           ts.URL + "/vector/{z}/{x}/{y}.pbf?access_token={token}",
			Format:        fetch.FormatMVT,
			PixelsPerTile: 4096,
			MaxZoom:       14,
			Token:         s.Token(),
		},
	}
}

func testSettings() settings.Settings {
	s := settings.Default()
	s.Size = 1
	s.Resolution = 61
	s.AccessToken = "token"
	return s
}

func testGenerator(ts *tileServer) *Generator {
	return New(Config{
		Workers:       2,
		RetryInterval: time.Millisecond,
		Providers:     ts.providers,
	})
}

func TestRunPreview(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, false)
	g := testGenerator(ts)
	defer g.Close()

	tests := []struct {
		name     string
		seafloor bool
		want     float32
	}{
		{"terrain", false, 140},
		{"seafloor", true, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.ActualSeafloor = tt.seafloor
			s.AccessTokenMT = "mt"

			res, err := g.Run(context.Background(), s, Options{Mode: ModePreview}, nil)
			if err != nil {
				t.Fatal(err)
			}

			if res.Heightmap.Size != 61 {
				t.Fatalf("heightmap size = %d, want 61", res.Heightmap.Size)
			}
			for i, v := range res.Heightmap.Data {
				if math.Abs(float64(v-tt.want)) > 1e-3 {
					t.Fatalf("height[%d] = %f, want %f", i, v, tt.want)
				}
			}
			if math.Abs(float64(res.Stats.Min-tt.want)) > 1e-3 || math.Abs(float64(res.Stats.Max-tt.want)) > 1e-3 {
				t.Errorf("stats = %+v, want %f", res.Stats, tt.want)
			}
			if res.PNG != nil {
				t.Error("preview must not encode")
			}
			if res.Zoom != 14 {
				t.Errorf("zoom = %d, want 14", res.Zoom)
			}
			if res.TileCount == 0 {
				t.Error("expected tiles")
			}
		})
	}
}

func TestRunDownload(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, false)
	g := testGenerator(ts)
	defer g.Close()

	res, err := g.Run(context.Background(), testSettings(), Options{Mode: ModeDownload, Debug: true}, nil)
	if err != nil {
		t.Fatal(err)
	}

	img, err := png.Decode(bytes.NewReader(res.PNG))
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("decoded %T, want *image.Gray16", img)
	}
	if b := gray.Bounds(); b.Dx() != 61 || b.Dy() != 61 {
		t.Fatalf("bounds = %v", b)
	}

	// 140m in 1/64m units
	if v := gray.Gray16At(30, 30).Y; v != 8960 {
		t.Errorf("center = %d, want 8960", v)
	}
	if res.WaterImage == nil || res.WaterwayImage == nil {
		t.Error("expected debug images")
	}
	if res.WorldMapPNG != nil {
		t.Error("only cs2 downloads have a world map")
	}
}

func TestRunEvents(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, false)
	g := testGenerator(ts)
	defer g.Close()

	events := make(chan Event)
	done := make(chan []Event)
	go func() {
		var got []Event
		for ev := range events {
			got = append(got, ev)
		}
		done <- got
	}()

	if _, err := g.Run(context.Background(), testSettings(), Options{}, events); err != nil {
		t.Fatal(err)
	}
	got := <-done

	total, progress := 0, 0
	for _, ev := range got {
		switch ev := ev.(type) {
		case TotalEvent:
			total += ev.N
		case ProgressEvent:
			progress++
		}
	}
	if total == 0 || total != progress {
		t.Errorf("total = %d, progress = %d", total, progress)
	}

	last, ok := got[len(got)-1].(PhaseEvent)
	if !ok || last.Label != "Completed" {
		t.Errorf("last event = %#v", got[len(got)-1])
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		ts := newTileServer(t, http.StatusUnauthorized, false)
		g := testGenerator(ts)
		defer g.Close()

		_, err := g.Run(context.Background(), testSettings(), Options{}, nil)
		var ue *fetch.UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("err = %v, want *fetch.UpstreamError", err)
		}
		if ue.Status != http.StatusUnauthorized {
			t.Errorf("status = %d", ue.Status)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		ts := newTileServer(t, http.StatusOK, false)
		g := testGenerator(ts)
		defer g.Close()

		s := testSettings()
		s.AccessToken = ""

		_, err := g.Run(context.Background(), s, Options{}, nil)
		if !errors.Is(err, validate.ErrInvalid) {
			t.Fatalf("err = %v, want ErrInvalid", err)
		}
		if n := atomic.LoadInt32(&ts.requests); n != 0 {
			t.Errorf("%d requests before validation failed", n)
		}
	})

	t.Run("too large", func(t *testing.T) {
		ts := newTileServer(t, http.StatusOK, false)
		g := testGenerator(ts)
		defer g.Close()

		_, err := g.Run(context.Background(), testSettings(), Options{Resolution: validate.MaxResolution + 1}, nil)
		if !errors.Is(err, validate.ErrTooLarge) {
			t.Fatalf("err = %v, want ErrTooLarge", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ts := newTileServer(t, http.StatusOK, false)
		g := testGenerator(ts)
		defer g.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.Run(ctx, testSettings(), Options{}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestEffectParamsScaleRadii(t *testing.T) {
	s := testSettings()
	s.SmoothRadius = 2
	s.SharpenRadius = 3
	s.Smoothing = 50

	r := &run{settings: s, resolution: 122}

	p := r.effectParams(0.5, 2)
	if p.SmoothRadius != 2 || p.SharpenRadius != 3 {
		t.Errorf("radii = %f, %f", p.SmoothRadius, p.SharpenRadius)
	}
	if p.Smoothing != 0.5 {
		t.Errorf("smoothing = %f", p.Smoothing)
	}
	if p.Noise.PixelDistance != 500 {
		t.Errorf("pixel distance = %f", p.Noise.PixelDistance)
	}
}

func TestPlan(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, false)
	g := testGenerator(ts)
	defer g.Close()

	p, err := g.Plan(testSettings(), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if p.Zoom != 14 || p.Divisions != 1 || p.Resolution != 61 {
		t.Errorf("plan = %+v", p)
	}
	if p.TerrainTiles == 0 || p.VectorTiles == 0 || p.OceanTiles != 0 {
		t.Errorf("tiles = %d %d %d", p.TerrainTiles, p.VectorTiles, p.OceanTiles)
	}
	if math.Abs(p.UnitSize-1000.0/60) > 1e-9 {
		t.Errorf("unit size = %f", p.UnitSize)
	}
	if n := atomic.LoadInt32(&ts.requests); n != 0 {
		t.Errorf("%d requests", n)
	}
}

func TestRunRetriesFlakyTiles(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, true)
	g := testGenerator(ts)
	defer g.Close()

	res, err := g.Run(context.Background(), testSettings(), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range res.Heightmap.Data {
		if math.Abs(float64(v-140)) > 1e-3 {
			t.Fatalf("height[%d] = %f, want 140", i, v)
		}
	}
}

func TestRunRotated(t *testing.T) {
	ts := newTileServer(t, http.StatusOK, false)
	ts.terrain = "gradient"
	g := testGenerator(ts)
	defer g.Close()

	run := func(angle float64) Result {
		s := testSettings()
		s.Angle = angle
		res, err := g.Run(context.Background(), s, Options{}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Heightmap.Size != 61 {
			t.Fatalf("angle %f: size = %d, want 61", angle, res.Heightmap.Size)
		}
		return res
	}

	const eps = 0.05
	near := func(a, b float32) bool { return math.Abs(float64(a-b)) < eps }

	// unrotated the terrain only rises eastwards
	flat := run(0).Heightmap
	tl, tr, bl, br := flat.At(0, 0), flat.At(60, 0), flat.At(0, 60), flat.At(60, 60)
	if !near(tl, bl) || !near(tr, br) || tr-tl < 1 {
		t.Errorf("angle 0: corners %f %f %f %f", tl, tr, bl, br)
	}

	// rotated by 45 degrees one diagonal is level and the other two corners
	// lie symmetric around it
	rotated := run(45).Heightmap
	tl, tr, bl, br = rotated.At(0, 0), rotated.At(60, 0), rotated.At(0, 60), rotated.At(60, 60)
	if !near(tl, br) {
		t.Errorf("angle 45: diagonal %f != %f", tl, br)
	}
	if math.Abs(float64(tr-tl)) < 1 || !near(tr-tl, tl-bl) {
		t.Errorf("angle 45: corners %f %f %f %f", tl, tr, bl, br)
	}
	if near(rotated.At(30, 30), 0) || !near(rotated.At(30, 30), flat.At(30, 30)) {
		t.Errorf("center moved: %f vs %f", rotated.At(30, 30), flat.At(30, 30))
	}
}
