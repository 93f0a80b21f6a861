package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/mpegts"
)

var ErrNoFallback = errors.New("player cannot reopen at a byte offset")

// Player is the local playback surface. Implementations must not call back
// into the Engine synchronously; player events are delivered through
// Engine.LocalEvent from the caller's own event loop.
type Player interface {
	Position() float64
	PlaybackRate() float64
	Paused() bool
	// Duration is the natively reported duration, zero or NaN when unknown.
	Duration() float64
	Muted() bool

	Seek(position float64) error
	SetPlaybackRate(rate float64)
	Play() error
	Pause()
	SetMuted(muted bool)
}

// Reopener is implemented by players that can restart their source at a
// byte offset when a native seek fails.
type Reopener interface {
	ReopenAt(offset int64, position float64) error
}

type Update struct {
	Playing      bool    `json:"playing"`
	CurrentTime  float64 `json:"current_time"`
	PlaybackRate float64 `json:"playback_rate"`
	Reason       string  `json:"reason"`
}

type Emitter interface {
	EmitSync(ctx context.Context, update Update) error
}

type State int

const (
	StateIdle State = iota
	StatePendingSync
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingSync:
		return "pending_sync"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

type Config struct {
	DriftThreshold      float64
	SuppressWindow      time.Duration
	BlockedSeekInterval time.Duration
	HeartbeatInterval   time.Duration
	// OnBlocked is called when playback stays blocked after a muted retry.
	OnBlocked func()
	Now       func() time.Time
	Logger    *slog.Logger
}

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	player  Player
	emitter Emitter

	state           State
	media           *domain.Media
	ready           bool
	pending         *Snapshot
	lastApplied     *Snapshot
	controller      bool
	suppressUntil   time.Time
	autoplayBlocked bool
	blockedSeekAt   time.Time
	lockedDuration  float64
}

func NewEngine(player Player, emitter Emitter, cfg Config) *Engine {
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = DefaultDriftThreshold
	}
	if cfg.SuppressWindow <= 0 {
		cfg.SuppressWindow = DefaultSuppressWindow
	}
	if cfg.BlockedSeekInterval <= 0 {
		cfg.BlockedSeekInterval = DefaultBlockedSeekInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		cfg:     cfg,
		player:  player,
		emitter: emitter,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) AutoplayBlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.autoplayBlocked
}

func (e *Engine) SetDriftThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	e.mu.Lock()
	e.cfg.DriftThreshold = threshold
	e.mu.Unlock()
}

func (e *Engine) SetController(controller bool) {
	e.mu.Lock()
	e.controller = controller
	e.mu.Unlock()
}

// SetMedia switches to new media. The duration lock and any buffered or
// applied snapshot belong to the previous media and are dropped. The player
// must signal PlayerReady before snapshots are applied again.
func (e *Engine) SetMedia(media *domain.Media) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = nil
	e.lastApplied = nil
	e.lockedDuration = 0
	e.ready = false
	if media == nil {
		e.media = nil
		e.state = StateIdle
		return
	}

	m := *media
	e.media = &m
	e.state = StatePendingSync
}

// PlayerReady marks the player as able to seek. A buffered snapshot is
// applied with a forced seek.
func (e *Engine) PlayerReady() Actions {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.media == nil {
		return Actions{}
	}

	e.ready = true
	e.state = StateSynced
	if e.pending == nil {
		return Actions{}
	}

	snapshot := *e.pending
	e.pending = nil
	if !e.currentMedia(snapshot) {
		return Actions{}
	}

	return e.apply(snapshot, true)
}

// must be called with e.mu held and e.media set
func (e *Engine) currentMedia(snapshot Snapshot) bool {
	return snapshot.MediaId == "" || snapshot.MediaId == e.media.Id
}

// ApplySnapshot reconciles the player against a remote snapshot. Before the
// player is ready the snapshot is buffered, newest wins. Snapshots without
// media or for other media are ignored, as is an exact repeat of the last
// applied snapshot.
func (e *Engine) ApplySnapshot(snapshot Snapshot, force bool) Actions {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.media == nil {
		return Actions{}
	}

	if !e.currentMedia(snapshot) {
		e.cfg.Logger.Debug("snapshot for other media ignored", "media_id", snapshot.MediaId)
		return Actions{}
	}

	if !e.ready {
		e.pending = &snapshot
		return Actions{}
	}

	if !force && e.lastApplied != nil && *e.lastApplied == snapshot {
		return Actions{}
	}

	return e.apply(snapshot, force)
}

// must be called with e.mu held
func (e *Engine) apply(snapshot Snapshot, force bool) Actions {
	now := e.cfg.Now()
	actions := Reconcile(LocalState{
		Position:        e.player.Position(),
		PlaybackRate:    e.player.PlaybackRate(),
		Paused:          e.player.Paused(),
		AutoplayBlocked: e.autoplayBlocked,
		LastBlockedSeek: e.blockedSeekAt,
	}, snapshot, now, Options{
		Force:               force,
		DriftThreshold:      e.cfg.DriftThreshold,
		BlockedSeekInterval: e.cfg.BlockedSeekInterval,
		Duration:            e.playableDuration(),
	})
	e.lastApplied = &snapshot

	e.suppressUntil = now.Add(e.cfg.SuppressWindow)
	if actions.SetRate {
		e.player.SetPlaybackRate(actions.Rate)
	}

	if actions.Seek {
		if err := e.seek(actions.SeekTo); err != nil {
			e.cfg.Logger.Warn("corrective seek failed", "target", actions.SeekTo, "error", err)
		}
		if actions.MarkBlockedSeek {
			e.blockedSeekAt = now
		}
	}

	if actions.Play {
		e.requestPlay()
	} else if actions.Pause {
		e.player.Pause()
	}

	return actions
}

// must be called with e.mu held
func (e *Engine) seek(position float64) error {
	err := e.player.Seek(position)
	if err == nil {
		return nil
	}

	reopener, ok := e.player.(Reopener)
	if !ok {
		return errors.Join(err, ErrNoFallback)
	}

	offset, ok := mpegts.SeekOffset(position, e.playableDuration(), e.media.ContentLength)
	if !ok {
		return errors.Join(err, ErrNoFallback)
	}

	return reopener.ReopenAt(offset, position)
}

// must be called with e.mu held
func (e *Engine) requestPlay() {
	if err := e.player.Play(); err == nil {
		e.autoplayBlocked = false
		return
	}

	if !e.player.Muted() {
		e.player.SetMuted(true)
		if err := e.player.Play(); err == nil {
			e.autoplayBlocked = false
			return
		}
	}

	e.autoplayBlocked = true
	if e.cfg.OnBlocked != nil {
		e.cfg.OnBlocked()
	}
}

// UserPlay is a user-initiated play, which clears the blocked state when it
// succeeds.
func (e *Engine) UserPlay() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.player.Play(); err != nil {
		return err
	}
	e.autoplayBlocked = false

	return nil
}

// LocalEvent reports a locally observed player event. The controller emits
// it as a sync update unless it falls inside a suppression window opened by
// a corrective action.
func (e *Engine) LocalEvent(ctx context.Context, reason string) (bool, error) {
	update, ok := e.localUpdate(reason)
	if !ok {
		return false, nil
	}

	if err := e.emitter.EmitSync(ctx, update); err != nil {
		return false, err
	}

	return true, nil
}

func (e *Engine) localUpdate(reason string) (Update, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.controller || e.media == nil {
		return Update{}, false
	}

	if e.cfg.Now().Before(e.suppressUntil) {
		return Update{}, false
	}

	return Update{
		Playing:      !e.player.Paused(),
		CurrentTime:  e.player.Position(),
		PlaybackRate: e.player.PlaybackRate(),
		Reason:       reason,
	}, true
}

// Heartbeat emits a heartbeat update when this client controls a playing
// player.
func (e *Engine) Heartbeat(ctx context.Context) (bool, error) {
	e.mu.Lock()
	playing := !e.player.Paused()
	e.mu.Unlock()

	if !playing {
		return false, nil
	}

	return e.LocalEvent(ctx, ReasonHeartbeat)
}

func (e *Engine) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Heartbeat(ctx); err != nil {
				e.cfg.Logger.WarnContext(ctx, "failed to emit heartbeat", "error", err)
			}
		}
	}
}

// LockDuration pins the duration for the current media. An existing lock is
// only replaced when force is set.
func (e *Engine) LockDuration(seconds float64, force bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lockDuration(seconds, force)
}

// must be called with e.mu held
func (e *Engine) lockDuration(seconds float64, force bool) bool {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return false
	}

	if !force && e.lockedDuration > 0 {
		return false
	}

	e.lockedDuration = seconds
	if e.media != nil {
		e.media.Duration = seconds
	}

	return true
}

// ApplyProbeResult locks a probed duration if mediaId is still the current
// media. Results for media that has since been replaced are dropped.
func (e *Engine) ApplyProbeResult(mediaId string, seconds float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.media == nil || e.media.Id != mediaId {
		return false
	}

	return e.lockDuration(seconds, false)
}

func (e *Engine) PlayableDuration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.playableDuration()
}

// must be called with e.mu held
func (e *Engine) playableDuration() float64 {
	if e.lockedDuration > 0 {
		return e.lockedDuration
	}

	if native := e.player.Duration(); native > 0 && !math.IsInf(native, 0) {
		return native
	}

	if e.media != nil && e.media.Duration > 0 {
		return e.media.Duration
	}

	return 0
}
