package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/cowatch/internal/repository/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rc.Close()
	r := NewRepo(rc, time.Hour)
	ctx := context.Background()

	_, err := r.GetDuration(ctx, "media-1")
	assert.ErrorIs(t, err, probe.ErrNotFound)

	require.NoError(t, r.SetDuration(ctx, &probe.SetDurationParams{
		Key:      "media-1",
		Duration: 1432.56,
		Size:     734_003_200,
		ProbedAt: 1_700_000_000_000,
	}))

	got, err := r.GetDuration(ctx, "media-1")
	require.NoError(t, err)
	assert.Equal(t, probe.Duration{
		Duration: 1432.56,
		Size:     734_003_200,
		ProbedAt: 1_700_000_000_000,
	}, got)

	assert.Equal(t, time.Hour, s.TTL("probe:media-1:duration"))

	s.FastForward(2 * time.Hour)
	_, err = r.GetDuration(ctx, "media-1")
	assert.ErrorIs(t, err, probe.ErrNotFound)
}
