package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/internal/service/room"
	"github.com/sharetube/cowatch/pkg/ctxlogger"
	"github.com/sharetube/cowatch/pkg/metrics"
)

// serveWS upgrades the request and serves the socket until it closes. A
// connection starts outside any room and receives the lobby right away.
func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	conn := connection.New(wsConn)

	connId := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", connId))
	ctx = context.WithValue(ctx, connIdCtxKey, connId)
	ctx = context.WithValue(ctx, connCtxKey, conn)

	if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:   conn,
		ConnId: connId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect member", "error", err)
		conn.Close()
		return
	}
	metrics.WSConnections.Inc()
	defer c.disconnect(ctx, connId)

	if err := c.writeToConn(ctx, conn, &Output{
		Type:    "LOBBY_UPDATED",
		Payload: c.lobbyUpdate(c.roomService.GetLobbyRooms(ctx).Rooms),
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to write lobby", "error", err)
		return
	}

	if err := c.wsmux.ServeConn(ctx, wsConn); err != nil {
		c.logger.InfoContext(ctx, "websocket closed", "error", err)
	}
}

func (c controller) disconnect(ctx context.Context, connId string) {
	metrics.WSConnections.Dec()

	leaveResp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		ConnId: connId,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	c.broadcastLeft(ctx, &leaveResp)
}
