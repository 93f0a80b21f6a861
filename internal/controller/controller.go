package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/cowatch/internal/service/probe"
	"github.com/sharetube/cowatch/internal/service/room"
	"github.com/sharetube/cowatch/pkg/validator"
	"github.com/sharetube/cowatch/pkg/wsrouter"
)

type iRoomService interface {
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.LeaveResponse, error)
	Join(context.Context, *room.JoinParams) (room.JoinResponse, error)
	Leave(context.Context, *room.LeaveParams) (room.LeaveResponse, error)
	ClaimController(context.Context, *room.ClaimControllerParams) (room.ClaimControllerResponse, error)
	ChangeMedia(context.Context, *room.ChangeMediaParams) (room.ChangeMediaResponse, error)
	SyncUpdate(context.Context, *room.SyncUpdateParams) (room.SyncUpdateResponse, error)
	SendChat(context.Context, *room.SendChatParams) (room.SendChatResponse, error)
	SendDanmaku(context.Context, *room.SendDanmakuParams) (room.SendDanmakuResponse, error)
	GetLobbyRooms(context.Context) room.GetLobbyRoomsResponse
}

type iProbeService interface {
	EstimateDuration(context.Context, *probe.EstimateDurationParams) (probe.EstimateDurationResponse, error)
}

type controller struct {
	roomService        iRoomService
	probeService       iProbeService
	upgrader           websocket.Upgrader
	wsmux              *wsrouter.WSRouter
	validate           *validator.Validator
	logger             *slog.Logger
	syncDriftThreshold float64
	now                func() time.Time
}

func NewController(roomService iRoomService, probeService iProbeService, logger *slog.Logger, syncDriftThreshold float64) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:        roomService,
		probeService:       probeService,
		validate:           validator.NewValidator(),
		logger:             logger,
		syncDriftThreshold: syncDriftThreshold,
		now:                time.Now,
	}
	c.wsmux = c.getWSRouter()

	return c
}
