package room

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/pkg/clamp"
)

type SendChatParams struct {
	ConnId string
	Text   string
	Type   string
}

type SendChatResponse struct {
	Message domain.ChatMessage
	Conns   []*connection.Conn
}

func (s *service) SendChat(ctx context.Context, params *SendChatParams) (SendChatResponse, error) {
	text := cleanText(params.Text, chatMaxLen)
	if text == "" {
		return SendChatResponse{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.getRoomByConnId(params.ConnId)
	if err != nil {
		return SendChatResponse{}, err
	}

	member, _, err := room.Members.GetById(params.ConnId)
	if err != nil {
		return SendChatResponse{}, err
	}

	now := s.nowMs()
	message := domain.ChatMessage{
		Id:        ulid.Make().String(),
		Text:      text,
		Type:      cleanTextOr(params.Type, chatTypeMaxLen, defaultChatType),
		FromId:    params.ConnId,
		Nickname:  member.Nickname,
		CreatedAt: now,
	}
	room.Chat.Add(message)
	room.UpdatedAt = now

	return SendChatResponse{
		Message: message,
		Conns:   s.getConnsByRoom(ctx, room, ""),
	}, nil
}

type SendDanmakuParams struct {
	ConnId    string
	Text      string
	Color     string
	VideoTime float64
}

type SendDanmakuResponse struct {
	Danmaku domain.Danmaku
	Conns   []*connection.Conn
}

func (s *service) SendDanmaku(ctx context.Context, params *SendDanmakuParams) (SendDanmakuResponse, error) {
	text := cleanText(params.Text, danmakuMaxLen)
	if text == "" {
		return SendDanmakuResponse{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.getRoomByConnId(params.ConnId)
	if err != nil {
		return SendDanmakuResponse{}, err
	}

	member, _, err := room.Members.GetById(params.ConnId)
	if err != nil {
		return SendDanmakuResponse{}, err
	}

	now := s.nowMs()
	danmaku := domain.Danmaku{
		Id:        ulid.Make().String(),
		Text:      text,
		Color:     sanitizeColor(params.Color),
		VideoTime: clamp.Float(params.VideoTime, 0, maxMediaDuration, 0),
		FromId:    params.ConnId,
		Nickname:  member.Nickname,
		CreatedAt: now,
	}
	room.Danmaku.Add(danmaku)
	room.UpdatedAt = now

	return SendDanmakuResponse{
		Danmaku: danmaku,
		Conns:   s.getConnsByRoom(ctx, room, ""),
	}, nil
}
