package room

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/pkg/clamp"
)

type ChangeMediaParams struct {
	ConnId        string
	Id            string
	Name          string
	SourceRef     string
	Duration      float64
	ContentLength int64
}

type ChangeMediaResponse struct {
	MediaUpdate MediaUpdate
	Conns       []*connection.Conn
}

// ChangeMedia replaces the room's media and resets playback. Recipients
// include the caller.
func (s *service) ChangeMedia(ctx context.Context, params *ChangeMediaParams) (ChangeMediaResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.getRoomByConnId(params.ConnId)
	if err != nil {
		return ChangeMediaResponse{}, err
	}

	if room.ControllerId != "" && room.ControllerId != params.ConnId {
		return ChangeMediaResponse{}, ErrNotController
	}

	sourceRef := cleanText(params.SourceRef, sourceRefMaxLen)
	if sourceRef == "" {
		return ChangeMediaResponse{}, ErrMissingSource
	}

	member, _, err := room.Members.GetById(params.ConnId)
	if err != nil {
		return ChangeMediaResponse{}, err
	}

	now := s.nowMs()
	media := domain.Media{
		Id:            cleanTextOr(params.Id, mediaIdMaxLen, ulid.Make().String()),
		Name:          cleanText(params.Name, mediaNameMaxLen),
		SourceRef:     sourceRef,
		Duration:      clamp.Float(params.Duration, 0, maxMediaDuration, 0),
		ContentLength: max(params.ContentLength, 0),
		ChangedBy:     member.Nickname,
		ChangedAt:     now,
	}
	room.SetMedia(media, now)
	s.logger.InfoContext(ctx, "media changed", "room_id", room.Id, "media_id", media.Id)

	return ChangeMediaResponse{
		MediaUpdate: MediaUpdate{
			Media:     media,
			SyncState: s.syncState(room, params.ConnId),
		},
		Conns: s.getConnsByRoom(ctx, room, ""),
	}, nil
}
