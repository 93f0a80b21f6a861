package client

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/sharetube/cowatch/internal/domain"
)

var (
	ErrNotLoaded       = errors.New("no media loaded")
	ErrAutoplayBlocked = errors.New("unmuted playback not allowed")
	ErrInvalidPosition = errors.New("invalid position")
)

// VirtualPlayer is a clock-driven player without a decoder. Its position
// advances with the clock while playing, which is all the reconciliation
// engine observes of a real player.
type VirtualPlayer struct {
	mu  sync.Mutex
	now func() time.Time

	media    *domain.Media
	position float64
	anchor   time.Time
	rate     float64
	paused   bool
	muted    bool
	// blockUnmuted rejects Play while unmuted, like a browser autoplay policy.
	blockUnmuted bool
	reopenOffset int64
}

func NewVirtualPlayer(now func() time.Time) *VirtualPlayer {
	if now == nil {
		now = time.Now
	}

	return &VirtualPlayer{
		now:          now,
		rate:         1,
		paused:       true,
		reopenOffset: -1,
	}
}

// SetBlockUnmuted toggles the autoplay policy.
func (p *VirtualPlayer) SetBlockUnmuted(block bool) {
	p.mu.Lock()
	p.blockUnmuted = block
	p.mu.Unlock()
}

// Load replaces the source and rewinds to a paused start.
func (p *VirtualPlayer) Load(media *domain.Media) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if media == nil {
		p.media = nil
	} else {
		m := *media
		p.media = &m
	}
	p.position = 0
	p.anchor = p.now()
	p.paused = true
	p.rate = 1
	p.reopenOffset = -1

	return nil
}

func (p *VirtualPlayer) Media() *domain.Media {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return nil
	}
	m := *p.media

	return &m
}

// must be called with p.mu held
func (p *VirtualPlayer) current() float64 {
	position := p.position
	if !p.paused {
		position += p.now().Sub(p.anchor).Seconds() * p.rate
	}

	if p.media != nil && p.media.Duration > 0 && position > p.media.Duration {
		return p.media.Duration
	}

	return position
}

// must be called with p.mu held
func (p *VirtualPlayer) rebase() {
	p.position = p.current()
	p.anchor = p.now()
}

func (p *VirtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current()
}

func (p *VirtualPlayer) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rate
}

func (p *VirtualPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.paused
}

func (p *VirtualPlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return 0
	}

	return p.media.Duration
}

func (p *VirtualPlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.muted
}

func (p *VirtualPlayer) Seek(position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return ErrNotLoaded
	}
	if position < 0 || math.IsNaN(position) || math.IsInf(position, 0) {
		return ErrInvalidPosition
	}

	p.position = position
	p.anchor = p.now()

	return nil
}

func (p *VirtualPlayer) SetPlaybackRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !(rate > 0) {
		return
	}
	p.rebase()
	p.rate = rate
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return ErrNotLoaded
	}
	if p.blockUnmuted && !p.muted {
		return ErrAutoplayBlocked
	}

	if p.paused {
		p.anchor = p.now()
		p.paused = false
	}

	return nil
}

func (p *VirtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return
	}
	p.rebase()
	p.paused = true
}

func (p *VirtualPlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

// ReopenAt restarts the source at a byte offset and resumes the clock at
// position.
func (p *VirtualPlayer) ReopenAt(offset int64, position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return ErrNotLoaded
	}

	p.reopenOffset = offset
	p.position = position
	p.anchor = p.now()

	return nil
}

// ReopenOffset is the last byte offset passed to ReopenAt, or -1.
func (p *VirtualPlayer) ReopenOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reopenOffset
}
