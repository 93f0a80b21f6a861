package room

import (
	"context"

	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/pkg/clamp"
)

type SyncUpdateParams struct {
	ConnId       string
	Playing      bool
	CurrentTime  float64
	PlaybackRate float64
	Reason       string
}

type SyncUpdateResponse struct {
	SyncState SyncState
	// Conns excludes the sender.
	Conns []*connection.Conn
}

func (s *service) SyncUpdate(ctx context.Context, params *SyncUpdateParams) (SyncUpdateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.getRoomByConnId(params.ConnId)
	if err != nil {
		return SyncUpdateResponse{}, err
	}

	if !room.IsController(params.ConnId) {
		return SyncUpdateResponse{}, ErrNotController
	}

	if room.Media == nil {
		return SyncUpdateResponse{}, ErrNoMedia
	}

	room.UpdateSync(domain.SyncSnapshot{
		Playing:      params.Playing,
		CurrentTime:  clamp.Float(params.CurrentTime, 0, maxCurrentTime, 0),
		PlaybackRate: clamp.Float(params.PlaybackRate, minPlaybackRate, maxPlaybackRate, defaultPlayRate),
		Reason:       cleanTextOr(params.Reason, reasonMaxLen, domain.ReasonSync),
		ServerTime:   s.nowMs(),
	})

	return SyncUpdateResponse{
		SyncState: s.syncState(room, params.ConnId),
		Conns:     s.getConnsByRoom(ctx, room, params.ConnId),
	}, nil
}
