package client

import (
	"context"
	"testing"
	"time"

	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type nopEmitter struct{}

func (nopEmitter) EmitSync(context.Context, reconcile.Update) error {
	return nil
}

func TestVirtualPlayerClock(t *testing.T) {
	c := newClock()
	p := NewVirtualPlayer(c.now)
	require.NoError(t, p.Load(&domain.Media{Id: "m", Duration: 100}))

	require.NoError(t, p.Play())
	c.advance(2 * time.Second)
	assert.InDelta(t, 2, p.Position(), 1e-9)

	p.SetPlaybackRate(2)
	c.advance(time.Second)
	assert.InDelta(t, 4, p.Position(), 1e-9)

	p.Pause()
	c.advance(5 * time.Second)
	assert.InDelta(t, 4, p.Position(), 1e-9)
	assert.True(t, p.Paused())

	require.NoError(t, p.Seek(50))
	require.NoError(t, p.Play())
	c.advance(time.Minute)
	assert.InDelta(t, 100, p.Position(), 1e-9, "position stops at the duration")
}

func TestVirtualPlayerNotLoaded(t *testing.T) {
	p := NewVirtualPlayer(nil)

	assert.ErrorIs(t, p.Play(), ErrNotLoaded)
	assert.ErrorIs(t, p.Seek(1), ErrNotLoaded)
	assert.ErrorIs(t, p.ReopenAt(188, 1), ErrNotLoaded)
	assert.Equal(t, int64(-1), p.ReopenOffset())
}

func TestVirtualPlayerLoadResets(t *testing.T) {
	c := newClock()
	p := NewVirtualPlayer(c.now)
	require.NoError(t, p.Load(&domain.Media{Id: "a", Duration: 60}))
	require.NoError(t, p.Play())
	p.SetPlaybackRate(1.5)
	c.advance(10 * time.Second)

	require.NoError(t, p.Load(&domain.Media{Id: "b"}))
	assert.Zero(t, p.Position())
	assert.True(t, p.Paused())
	assert.Equal(t, 1.0, p.PlaybackRate())
	assert.Equal(t, "b", p.Media().Id)
}

func TestVirtualPlayerMutedAutoplayRetry(t *testing.T) {
	c := newClock()
	p := NewVirtualPlayer(c.now)
	p.SetBlockUnmuted(true)

	blocked := false
	engine := reconcile.NewEngine(p, nopEmitter{}, reconcile.Config{
		Now:       c.now,
		OnBlocked: func() { blocked = true },
	})

	media := &domain.Media{Id: "m", Duration: 100}
	engine.SetMedia(media)
	require.NoError(t, p.Load(media))
	engine.PlayerReady()

	engine.ApplySnapshot(reconcile.Snapshot{
		Playing:      true,
		CurrentTime:  10,
		PlaybackRate: 1,
		Reason:       "play",
		ServerTime:   c.now().UnixMilli(),
		MediaId:      "m",
	}, false)

	assert.False(t, p.Paused())
	assert.True(t, p.Muted())
	assert.False(t, blocked)
	assert.False(t, engine.AutoplayBlocked())
	assert.InDelta(t, 10, p.Position(), 1e-9)
}
