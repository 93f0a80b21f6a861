package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/cowatch/internal/service/room"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type EmptyInput struct{}

func (c controller) handleAlive(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handleGetLobby(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	lobby := c.lobbyUpdate(c.roomService.GetLobbyRooms(ctx).Rooms)
	c.setAckData(ctx, lobby)

	if err := c.writeToConn(ctx, c.getConnFromCtx(ctx), &Output{
		Type:    "LOBBY_UPDATED",
		Payload: lobby,
	}); err != nil {
		return fmt.Errorf("failed to write lobby: %w", err)
	}

	return nil
}

type JoinInput struct {
	RoomId      string `json:"room_id"`
	Nickname    string `json:"nickname"`
	RejoinToken string `json:"rejoin_token"`
}

type welcomeOutput struct {
	room.RoomState
	RejoinToken string `json:"rejoin_token,omitempty"`
}

func (c controller) handleJoin(ctx context.Context, _ *websocket.Conn, input JoinInput) error {
	connId := c.getConnIdFromCtx(ctx)

	joinResp, err := c.roomService.Join(ctx, &room.JoinParams{
		ConnId:      connId,
		RoomId:      input.RoomId,
		Nickname:    input.Nickname,
		RejoinToken: input.RejoinToken,
	})
	if err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	if joinResp.Left != nil && !joinResp.Left.IsRoomDeleted {
		c.broadcastMembersUpdated(ctx, joinResp.Left.Conns, &joinResp.Left.MembersUpdate)
	}

	if err := c.writeToConn(ctx, c.getConnFromCtx(ctx), &Output{
		Type: "WELCOME",
		Payload: welcomeOutput{
			RoomState:   joinResp.Welcome,
			RejoinToken: joinResp.Token,
		},
	}); err != nil {
		return fmt.Errorf("failed to write welcome: %w", err)
	}

	c.broadcastMembersUpdated(ctx, joinResp.Conns, &joinResp.MembersUpdate)
	c.broadcastLobby(ctx)

	c.setAckData(ctx, map[string]any{
		"room_id": joinResp.Welcome.RoomId,
		"self_id": connId,
	})

	return nil
}

func (c controller) handleLeave(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	leaveResp, err := c.roomService.Leave(ctx, &room.LeaveParams{
		ConnId: c.getConnIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}

	c.broadcastLeft(ctx, &leaveResp)

	return nil
}

func (c controller) handleClaimController(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	claimResp, err := c.roomService.ClaimController(ctx, &room.ClaimControllerParams{
		ConnId: c.getConnIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to claim controller: %w", err)
	}

	c.broadcastMembersUpdated(ctx, claimResp.Conns, &claimResp.MembersUpdate)
	c.broadcastLobby(ctx)

	return nil
}

type ChangeMediaInput struct {
	Id            string  `json:"id"`
	Name          string  `json:"name"`
	SourceRef     string  `json:"source_ref"`
	Duration      float64 `json:"duration"`
	ContentLength int64   `json:"content_length"`
}

func (c controller) handleChangeMedia(ctx context.Context, _ *websocket.Conn, input ChangeMediaInput) error {
	changeMediaResp, err := c.roomService.ChangeMedia(ctx, &room.ChangeMediaParams{
		ConnId:        c.getConnIdFromCtx(ctx),
		Id:            input.Id,
		Name:          input.Name,
		SourceRef:     input.SourceRef,
		Duration:      input.Duration,
		ContentLength: input.ContentLength,
	})
	if err != nil {
		return fmt.Errorf("failed to change media: %w", err)
	}

	c.broadcast(ctx, changeMediaResp.Conns, &Output{
		Type:    "MEDIA_CHANGED",
		Payload: changeMediaResp.MediaUpdate,
	})
	c.broadcastLobby(ctx)

	c.setAckData(ctx, map[string]any{
		"media_id": changeMediaResp.MediaUpdate.Media.Id,
	})

	return nil
}

type SyncUpdateInput struct {
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"current_time"`
	// PlaybackRate defaults to 1 when omitted.
	PlaybackRate *float64 `json:"playback_rate"`
	Reason       string   `json:"reason"`
}

func (c controller) handleSyncUpdate(ctx context.Context, _ *websocket.Conn, input SyncUpdateInput) error {
	playbackRate := 1.0
	if input.PlaybackRate != nil {
		playbackRate = *input.PlaybackRate
	}

	syncResp, err := c.roomService.SyncUpdate(ctx, &room.SyncUpdateParams{
		ConnId:       c.getConnIdFromCtx(ctx),
		Playing:      input.Playing,
		CurrentTime:  input.CurrentTime,
		PlaybackRate: playbackRate,
		Reason:       input.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	c.broadcast(ctx, syncResp.Conns, &Output{
		Type:    "SYNC_STATE",
		Payload: syncResp.SyncState,
	})

	c.setAckData(ctx, map[string]any{
		"server_time": syncResp.SyncState.ServerTime,
	})

	return nil
}

type ChatSendInput struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

func (c controller) handleChatSend(ctx context.Context, _ *websocket.Conn, input ChatSendInput) error {
	sendChatResp, err := c.roomService.SendChat(ctx, &room.SendChatParams{
		ConnId: c.getConnIdFromCtx(ctx),
		Text:   input.Text,
		Type:   input.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to send chat: %w", err)
	}

	c.broadcast(ctx, sendChatResp.Conns, &Output{
		Type:    "CHAT_NEW",
		Payload: sendChatResp.Message,
	})

	return nil
}

type DanmakuSendInput struct {
	Text      string  `json:"text"`
	Color     string  `json:"color"`
	VideoTime float64 `json:"video_time"`
}

func (c controller) handleDanmakuSend(ctx context.Context, _ *websocket.Conn, input DanmakuSendInput) error {
	sendDanmakuResp, err := c.roomService.SendDanmaku(ctx, &room.SendDanmakuParams{
		ConnId:    c.getConnIdFromCtx(ctx),
		Text:      input.Text,
		Color:     input.Color,
		VideoTime: input.VideoTime,
	})
	if err != nil {
		return fmt.Errorf("failed to send danmaku: %w", err)
	}

	c.broadcast(ctx, sendDanmakuResp.Conns, &Output{
		Type:    "DANMAKU_NEW",
		Payload: sendDanmakuResp.Danmaku,
	})

	return nil
}
