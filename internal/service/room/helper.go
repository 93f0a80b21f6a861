package room

import (
	"context"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/pkg/metrics"
)

const defaultColor = "#ffffff"

// cleanText trims and truncates to maxLen runes.
func cleanText(value string, maxLen int) string {
	text := strings.TrimSpace(value)
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	return string([]rune(text)[:maxLen])
}

func cleanTextOr(value string, maxLen int, fallback string) string {
	if text := cleanText(value, maxLen); text != "" {
		return text
	}

	return fallback
}

func sanitizeColor(value string) string {
	color := strings.TrimSpace(value)
	if err := validation.Validate(color, ColorRule...); err != nil {
		return defaultColor
	}

	return color
}

// must be called with s.mu held
func (s *service) getRoomByConnId(connId string) (*domain.Room, error) {
	roomId, ok := s.memberRooms[connId]
	if !ok {
		return nil, ErrNotInRoom
	}

	room, ok := s.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

// must be called with s.mu held
func (s *service) getConnsByRoom(ctx context.Context, room *domain.Room, exceptId string) []*connection.Conn {
	memberIds := room.Members.Ids()
	conns := make([]*connection.Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		if memberId == exceptId {
			continue
		}

		conn, err := s.connRepo.GetConn(memberId)
		if err != nil {
			s.logger.DebugContext(ctx, "failed to get conn", "member_id", memberId, "error", err)
			continue
		}

		conns = append(conns, conn)
	}

	return conns
}

// must be called with s.mu held
func (s *service) syncState(room *domain.Room, fromId string) SyncState {
	state := SyncState{
		SyncSnapshot: room.Sync,
		FromId:       fromId,
	}
	if room.Media != nil {
		state.MediaId = room.Media.Id
	}

	return state
}

// must be called with s.mu held
func (s *service) membersUpdate(room *domain.Room) MembersUpdate {
	return MembersUpdate{
		RoomId:       room.Id,
		ControllerId: room.ControllerId,
		Members:      room.Members.AsList(),
	}
}

// must be called with s.mu held
func (s *service) updateGauges() {
	metrics.RoomsActive.Set(float64(len(s.rooms)))
	metrics.MembersActive.Set(float64(len(s.memberRooms)))
}
