package room

import (
	"cmp"
	"context"
	"slices"

	"github.com/sharetube/cowatch/internal/repository/connection"
)

type GetLobbyRoomsResponse struct {
	Rooms []LobbyRoom
	// Conns holds every open connection, joined or not.
	Conns []*connection.Conn
}

// GetLobbyRooms lists live rooms, busiest first and most recently updated
// first among equals.
func (s *service) GetLobbyRooms(ctx context.Context) GetLobbyRoomsResponse {
	s.mu.Lock()
	rooms := make([]LobbyRoom, 0, len(s.rooms))
	for _, room := range s.rooms {
		lobbyRoom := LobbyRoom{
			RoomId:       room.Id,
			OnlineCount:  room.Members.Length(),
			ControllerId: room.ControllerId,
			HasMedia:     room.Media != nil,
			UpdatedAt:    room.UpdatedAt,
		}
		if room.Media != nil {
			lobbyRoom.MediaName = room.Media.Name
		}
		rooms = append(rooms, lobbyRoom)
	}
	s.mu.Unlock()

	slices.SortFunc(rooms, func(a, b LobbyRoom) int {
		return cmp.Or(
			cmp.Compare(b.OnlineCount, a.OnlineCount),
			cmp.Compare(b.UpdatedAt, a.UpdatedAt),
			cmp.Compare(a.RoomId, b.RoomId),
		)
	})

	return GetLobbyRoomsResponse{
		Rooms: rooms,
		Conns: s.connRepo.All(),
	}
}
