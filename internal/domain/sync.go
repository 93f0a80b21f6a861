package domain

const (
	ReasonPlay        = "play"
	ReasonPause       = "pause"
	ReasonSeek        = "seek"
	ReasonRateChange  = "ratechange"
	ReasonHeartbeat   = "heartbeat"
	ReasonMediaChange = "media-change"
	ReasonInit        = "init"
	ReasonSync        = "sync"
)

// SyncSnapshot is the controller's last reported playback state. ServerTime
// is epoch milliseconds; consumers extrapolate from it while Playing.
type SyncSnapshot struct {
	Playing      bool    `json:"playing"`
	CurrentTime  float64 `json:"current_time"`
	PlaybackRate float64 `json:"playback_rate"`
	Reason       string  `json:"reason"`
	ServerTime   int64   `json:"server_time"`
}

func NewSyncSnapshot(reason string, now int64) SyncSnapshot {
	return SyncSnapshot{
		Playing:      false,
		CurrentTime:  0,
		PlaybackRate: 1,
		Reason:       reason,
		ServerTime:   now,
	}
}
