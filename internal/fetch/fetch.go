package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/karlseguin/ccache/v3"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// UpstreamError is returned when a tile provider answers with a non-success
// status. It is terminal for a generation request.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d %s for %s", e.Status, http.StatusText(e.Status), e.URL)
}

// Config holds the dependencies of a Fetcher. Zero values are replaced by defaults.
type Config struct {
	Client *http.Client
	Logger *zap.Logger

	// CacheSize is the number of tiles kept in memory
	CacheSize int64
	CacheTTL  time.Duration

	// Concurrency limits the number of requests in flight per FetchAll
	Concurrency int

	// MaxRetries bounds the retries of a tile after 429 and 5xx answers.
	// 0 selects DefaultMaxRetries.
	MaxRetries      uint64
	InitialInterval time.Duration
}

// DefaultMaxRetries is the number of retries per tile unless configured
const DefaultMaxRetries = 3

// Fetcher downloads tiles with retry, caching and request deduplication
type Fetcher struct {
	client *http.Client
	log    *zap.Logger
	cache  *ccache.Cache[[]byte]
	group  singleflight.Group

	ttl             time.Duration
	concurrency     int
	maxRetries      uint64
	initialInterval time.Duration
}

// Result is the settled outcome of one tile request
type Result struct {
	Tile maptile.Tile
	Data []byte
	Err  error
}

// New creates a Fetcher
func New(cfg Config) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}

	return &Fetcher{
		client:          cfg.Client,
		log:             cfg.Logger,
		cache:           ccache.New(ccache.Configure[[]byte]().MaxSize(cfg.CacheSize).ItemsToPrune(uint32(cfg.CacheSize/10 + 1))),
		ttl:             cfg.CacheTTL,
		concurrency:     cfg.Concurrency,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
	}
}

// Close stops the cache's background worker
func (f *Fetcher) Close() {
	f.cache.Stop()
}

// Fetch downloads a single tile. Concurrent requests for the same tile share
// one download and successful downloads are cached. The shared download is
// not bound to any single caller, a caller whose ctx is done stops waiting
// without failing the others.
func (f *Fetcher) Fetch(ctx context.Context, p Provider, t maptile.Tile) ([]byte, error) {
	key := p.Key(t)

	if item := f.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		data, err := f.download(context.WithoutCancel(ctx), p.URLFor(t))
		if err != nil {
			return nil, err
		}
		f.cache.Set(key, data, f.ttl)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(backoff.WithInitialInterval(f.initialInterval)), f.maxRetries),
		ctx,
	)

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		res, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode > 299 {
			io.Copy(io.Discard, res.Body)
			upstream := &UpstreamError{Status: res.StatusCode, URL: redact(rawURL)}
			if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
				return nil, upstream
			}
			return nil, backoff.Permanent(upstream)
		}

		return io.ReadAll(res.Body)
	}

	notify := func(err error, wait time.Duration) {
		f.log.Debug("retrying tile", zap.String("url", redact(rawURL)), zap.Duration("wait", wait), zap.Error(err))
	}

	return backoff.RetryNotifyWithData(op, b, notify)
}

// FetchAll requests every tile and waits until all requests settled. A failing
// tile is recorded in its Result and does not stop the batch. The first
// UpstreamError is returned once all requests settled. onSettled, if not nil,
// is called once per tile from the requesting goroutine.
func (f *Fetcher) FetchAll(ctx context.Context, p Provider, tiles []maptile.Tile, onSettled func(i int)) ([]Result, error) {
	results := make([]Result, len(tiles))

	g := errgroup.Group{}
	g.SetLimit(f.concurrency)

	for i, t := range tiles {
		if ctx.Err() != nil {
			break
		}

		i, t := i, t
		g.Go(func() error {
			data, err := f.Fetch(ctx, p, t)
			results[i] = Result{Tile: t, Data: data, Err: err}
			if onSettled != nil {
				onSettled(i)
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	var upstream error
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failed++

		var ue *UpstreamError
		if upstream == nil && errors.As(r.Err, &ue) {
			upstream = ue
		}
		f.log.Debug("tile failed", zap.String("provider", p.Name), zap.Uint32("z", uint32(r.Tile.Z)), zap.Uint32("x", r.Tile.X), zap.Uint32("y", r.Tile.Y), zap.Error(r.Err))
	}

	if failed > 0 {
		f.log.Warn("tiles failed", zap.String("provider", p.Name), zap.Int("failed", failed), zap.Int("total", len(tiles)))
	}

	return results, upstream
}

// redact removes access tokens from a url so it can be logged
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	for _, k := range []string{"access_token", "key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
