package probe

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	probeRedis "github.com/sharetube/cowatch/internal/repository/probe/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEstimator struct {
	duration float64
	calls    atomic.Int32
	lastKey  string
}

func (e *stubEstimator) Estimate(_ context.Context, key, _ string, _ int64) (float64, bool) {
	e.calls.Add(1)
	e.lastKey = key
	return e.duration, e.duration > 0
}

func newTestService(t *testing.T, estimator iEstimator) (*service, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	cfg := &Config{AllowedHosts: []string{"cdn.example.com"}}
	return NewService(estimator, probeRedis.NewRepo(rc, time.Hour), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestEstimateDurationCaches(t *testing.T) {
	estimator := &stubEstimator{duration: 100}
	s, _ := newTestService(t, estimator)
	ctx := context.Background()
	params := &EstimateDurationParams{Key: "media-1", URL: "https://cdn.example.com/a.ts", Size: 1 << 30}

	resp, err := s.EstimateDuration(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, EstimateDurationResponse{Known: true, Duration: 100}, resp)

	resp, err = s.EstimateDuration(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, EstimateDurationResponse{Known: true, Duration: 100, Cached: true}, resp)
	assert.Equal(t, int32(1), estimator.calls.Load())

	// a different object size invalidates the cached value
	resp, err = s.EstimateDuration(ctx, &EstimateDurationParams{Key: "media-1", URL: params.URL, Size: 1 << 20})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, int32(2), estimator.calls.Load())
}

func TestEstimateDurationUnknownNotCached(t *testing.T) {
	estimator := &stubEstimator{}
	s, _ := newTestService(t, estimator)
	ctx := context.Background()
	params := &EstimateDurationParams{URL: "https://cdn.example.com/b.ts", Size: 1 << 20}

	for i := 0; i < 2; i++ {
		resp, err := s.EstimateDuration(ctx, params)
		require.NoError(t, err)
		assert.False(t, resp.Known)
	}
	assert.Equal(t, int32(2), estimator.calls.Load())
	assert.Equal(t, params.URL, estimator.lastKey, "url is the key when none is given")
}

func TestEstimateDurationCacheDown(t *testing.T) {
	estimator := &stubEstimator{duration: 42}
	s, m := newTestService(t, estimator)
	m.Close()

	resp, err := s.EstimateDuration(context.Background(), &EstimateDurationParams{Key: "k", URL: "https://cdn.example.com/c.ts", Size: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, EstimateDurationResponse{Known: true, Duration: 42}, resp)
}

func TestEstimateDurationAllowedHosts(t *testing.T) {
	estimator := &stubEstimator{duration: 42}
	s, _ := newTestService(t, estimator)
	s.allowedHosts = []string{"cdn.example.com", "*.media.example.org"}
	ctx := context.Background()

	for _, u := range []string{
		"http://169.254.169.254/latest/meta-data",
		"http://localhost:6379/",
		"https://cdn.example.com.evil.net/a.ts",
		"https://media.example.org/a.ts",
		"not a url",
	} {
		_, err := s.EstimateDuration(ctx, &EstimateDurationParams{URL: u, Size: 1 << 20})
		assert.ErrorIs(t, err, ErrHostNotAllowed, u)
	}
	assert.Equal(t, int32(0), estimator.calls.Load(), "rejected urls are never fetched")

	for _, u := range []string{
		"https://CDN.example.com/a.ts",
		"https://eu.media.example.org/a.ts",
	} {
		resp, err := s.EstimateDuration(ctx, &EstimateDurationParams{URL: u, Size: 1 << 20})
		require.NoError(t, err, u)
		assert.True(t, resp.Known)
	}
}

func TestEstimateDurationNoAllowedHosts(t *testing.T) {
	estimator := &stubEstimator{duration: 42}
	s := NewService(estimator, nil, &Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.EstimateDuration(context.Background(), &EstimateDurationParams{URL: "https://cdn.example.com/a.ts", Size: 1 << 20})
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Equal(t, int32(0), estimator.calls.Load())
}
