package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/internal/service/room"
)

var errNoConn = errors.New("no connection")

func (c controller) writeToConn(ctx context.Context, conn *connection.Conn, output *Output) error {
	if conn == nil {
		return errNoConn
	}

	if err := conn.WriteJSON(output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output.Type, err)
	}

	return nil
}

// broadcast writes to every connection. A failing peer is logged and skipped;
// its own read loop notices the broken socket and disconnects it.
func (c controller) broadcast(ctx context.Context, conns []*connection.Conn, output *Output) {
	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, output); err != nil {
			c.logger.InfoContext(ctx, "failed to broadcast", "type", output.Type, "error", err)
		}
	}
}

func (c controller) broadcastMembersUpdated(ctx context.Context, conns []*connection.Conn, membersUpdate *room.MembersUpdate) {
	c.broadcast(ctx, conns, &Output{
		Type:    "MEMBER_UPDATED",
		Payload: membersUpdate,
	})
}

// broadcastLeft announces a departure. Responses for connections that were
// not in a room carry no member and are ignored.
func (c controller) broadcastLeft(ctx context.Context, leaveResp *room.LeaveResponse) {
	if leaveResp.Member.Id == "" {
		return
	}

	if !leaveResp.IsRoomDeleted {
		c.broadcastMembersUpdated(ctx, leaveResp.Conns, &leaveResp.MembersUpdate)
	}
	c.broadcastLobby(ctx)
}

type lobbyOutput struct {
	Rooms      []room.LobbyRoom `json:"rooms"`
	ServerTime int64            `json:"server_time"`
}

func (c controller) lobbyUpdate(rooms []room.LobbyRoom) lobbyOutput {
	return lobbyOutput{
		Rooms:      rooms,
		ServerTime: c.now().UnixMilli(),
	}
}

func (c controller) broadcastLobby(ctx context.Context) {
	lobbyResp := c.roomService.GetLobbyRooms(ctx)
	c.broadcast(ctx, lobbyResp.Conns, &Output{
		Type:    "LOBBY_UPDATED",
		Payload: c.lobbyUpdate(lobbyResp.Rooms),
	})
}
