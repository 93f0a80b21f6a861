package room

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
)

type JoinParams struct {
	ConnId   string
	RoomId   string
	Nickname string
	// RejoinToken fills RoomId and Nickname when they are empty.
	RejoinToken string
}

type JoinResponse struct {
	Welcome       RoomState
	Token         string
	MembersUpdate MembersUpdate
	Conns         []*connection.Conn
	// Left is set when the connection was moved out of another room.
	Left *LeaveResponse
}

func (s *service) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	roomId := cleanText(params.RoomId, roomIdMaxLen)
	nickname := cleanText(params.Nickname, nicknameMaxLen)
	if params.RejoinToken != "" && (roomId == "" || nickname == "") {
		claims, err := s.parseJWT(params.RejoinToken)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to parse rejoin token", "error", err)
			return JoinResponse{}, err
		}

		if roomId == "" {
			roomId = claims.RoomId
		}
		if nickname == "" {
			nickname = claims.Nickname
		}
	}

	if err := validation.Validate(roomId, RoomIdRule...); err != nil {
		return JoinResponse{}, fmt.Errorf("room id %w", err)
	}
	if nickname == "" {
		nickname = defaultNickname
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var left *LeaveResponse
	if _, ok := s.memberRooms[params.ConnId]; ok {
		resp, err := s.leave(ctx, params.ConnId)
		if err != nil {
			return JoinResponse{}, fmt.Errorf("failed to leave previous room: %w", err)
		}
		left = &resp
	}

	now := s.nowMs()
	room, ok := s.rooms[roomId]
	if !ok {
		room = domain.NewRoom(roomId, s.chatLimit, s.danmakuLimit, now)
		s.rooms[roomId] = room
		s.logger.InfoContext(ctx, "room created", "room_id", roomId)
	}

	if err := room.AddMember(domain.Member{
		Id:       params.ConnId,
		Nickname: nickname,
		JoinedAt: now,
	}, now); err != nil {
		return JoinResponse{}, fmt.Errorf("failed to add member: %w", err)
	}
	s.memberRooms[params.ConnId] = roomId
	s.updateGauges()

	token, err := s.generateJWT(params.ConnId, roomId, nickname)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to generate rejoin token", "error", err)
	}

	return JoinResponse{
		Welcome: RoomState{
			SelfId:         params.ConnId,
			RoomId:         roomId,
			ControllerId:   room.ControllerId,
			Members:        room.Members.AsList(),
			Media:          room.Media,
			SyncState:      s.syncState(room, ""),
			ChatHistory:    room.Chat.AsList(),
			DanmakuHistory: room.Danmaku.AsList(),
			ServerTime:     now,
		},
		Token:         token,
		MembersUpdate: s.membersUpdate(room),
		Conns:         s.getConnsByRoom(ctx, room, ""),
		Left:          left,
	}, nil
}

type LeaveParams struct {
	ConnId string
}

type LeaveResponse struct {
	Member        domain.Member
	MembersUpdate MembersUpdate
	Conns         []*connection.Conn
	IsRoomDeleted bool
}

func (s *service) Leave(ctx context.Context, params *LeaveParams) (LeaveResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.leave(ctx, params.ConnId)
}

// must be called with s.mu held
func (s *service) leave(ctx context.Context, connId string) (LeaveResponse, error) {
	room, err := s.getRoomByConnId(connId)
	delete(s.memberRooms, connId)
	if err != nil {
		s.updateGauges()
		return LeaveResponse{}, err
	}

	member, err := room.RemoveMember(connId, s.nowMs())
	if err != nil {
		s.updateGauges()
		return LeaveResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	if room.IsEmpty() {
		delete(s.rooms, room.Id)
		s.updateGauges()
		s.logger.InfoContext(ctx, "room deleted", "room_id", room.Id)

		return LeaveResponse{
			Member:        member,
			MembersUpdate: s.membersUpdate(room),
			IsRoomDeleted: true,
		}, nil
	}
	s.updateGauges()

	return LeaveResponse{
		Member:        member,
		MembersUpdate: s.membersUpdate(room),
		Conns:         s.getConnsByRoom(ctx, room, ""),
	}, nil
}

type ClaimControllerParams struct {
	ConnId string
}

type ClaimControllerResponse struct {
	MembersUpdate MembersUpdate
	Conns         []*connection.Conn
}

// ClaimController hands control to the caller unconditionally.
func (s *service) ClaimController(ctx context.Context, params *ClaimControllerParams) (ClaimControllerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.getRoomByConnId(params.ConnId)
	if err != nil {
		return ClaimControllerResponse{}, err
	}

	if err := room.ClaimController(params.ConnId, s.nowMs()); err != nil {
		return ClaimControllerResponse{}, fmt.Errorf("failed to claim controller: %w", err)
	}

	return ClaimControllerResponse{
		MembersUpdate: s.membersUpdate(room),
		Conns:         s.getConnsByRoom(ctx, room, ""),
	}, nil
}
