// Package reconcile converges a local player onto a controller's snapshots.
package reconcile

import (
	"math"
	"time"
)

const (
	DefaultDriftThreshold      = 0.4
	RateTolerance              = 0.01
	DefaultSuppressWindow      = 420 * time.Millisecond
	DefaultBlockedSeekInterval = 1800 * time.Millisecond
	DefaultHeartbeatInterval   = time.Second

	ReasonSeek      = "seek"
	ReasonHeartbeat = "heartbeat"
)

// Snapshot mirrors the SYNC_STATE payload.
type Snapshot struct {
	Playing      bool    `json:"playing"`
	CurrentTime  float64 `json:"current_time"`
	PlaybackRate float64 `json:"playback_rate"`
	Reason       string  `json:"reason"`
	ServerTime   int64   `json:"server_time"`
	MediaId      string  `json:"media_id"`
	FromId       string  `json:"from_id"`
}

func (s Snapshot) rate() float64 {
	if s.PlaybackRate > 0 && !math.IsInf(s.PlaybackRate, 0) {
		return s.PlaybackRate
	}

	return 1
}

type LocalState struct {
	Position        float64
	PlaybackRate    float64
	Paused          bool
	AutoplayBlocked bool
	// LastBlockedSeek is when a seek last landed on a blocked, paused player.
	LastBlockedSeek time.Time
}

type Options struct {
	Force               bool
	DriftThreshold      float64
	BlockedSeekInterval time.Duration
	// Duration caps seek targets when positive.
	Duration float64
}

type Actions struct {
	Target float64
	Drift  float64

	SetRate bool
	Rate    float64

	Seek   bool
	SeekTo float64
	// Throttled is set when a seek was due but skipped for a blocked player.
	Throttled bool
	// MarkBlockedSeek asks the caller to record now as LastBlockedSeek.
	MarkBlockedSeek bool

	Play  bool
	Pause bool
}

func (a Actions) Empty() bool {
	return !a.SetRate && !a.Seek && !a.Play && !a.Pause
}

// Target extrapolates the snapshot's position to now using the sender's
// wall clock; no skew correction is attempted.
func Target(s Snapshot, now time.Time) float64 {
	if !s.Playing {
		return s.CurrentTime
	}

	elapsed := 0.0
	if s.ServerTime > 0 {
		elapsed = max(0, float64(now.UnixMilli()-s.ServerTime)/1000)
	}

	return s.CurrentTime + elapsed*s.rate()
}

// Reconcile decides the corrective actions for one snapshot. It is pure;
// executing the actions and echo suppression are the caller's job.
func Reconcile(local LocalState, s Snapshot, now time.Time, opts Options) Actions {
	threshold := opts.DriftThreshold
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	interval := opts.BlockedSeekInterval
	if interval <= 0 {
		interval = DefaultBlockedSeekInterval
	}

	target := Target(s, now)
	actions := Actions{
		Target: target,
		Drift:  math.Abs(local.Position - target),
	}

	if rate := s.rate(); math.Abs(local.PlaybackRate-rate) > RateTolerance {
		actions.SetRate = true
		actions.Rate = rate
	}

	wantSeek := opts.Force || actions.Drift > threshold || s.Reason == ReasonSeek
	blocked := s.Playing && local.AutoplayBlocked && local.Paused
	throttled := blocked && !opts.Force && s.Reason != ReasonSeek &&
		!local.LastBlockedSeek.IsZero() && now.Sub(local.LastBlockedSeek) < interval

	switch {
	case wantSeek && throttled:
		actions.Throttled = true
	case wantSeek:
		seekTo := max(0, target)
		if opts.Duration > 0 {
			seekTo = min(seekTo, opts.Duration)
		}
		actions.Seek = true
		actions.SeekTo = seekTo
		actions.MarkBlockedSeek = blocked
	}

	if s.Playing && local.Paused {
		actions.Play = true
	} else if !s.Playing && !local.Paused {
		actions.Pause = true
	}

	return actions
}
