package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/reconcile"
)

type welcomePayload struct {
	SelfId       string             `json:"self_id"`
	RoomId       string             `json:"room_id"`
	ControllerId string             `json:"controller_id"`
	Media        *domain.Media      `json:"media"`
	SyncState    reconcile.Snapshot `json:"sync_state"`
	RejoinToken  string             `json:"rejoin_token"`
}

type membersPayload struct {
	RoomId       string          `json:"room_id"`
	ControllerId string          `json:"controller_id"`
	Members      []domain.Member `json:"members"`
}

type mediaPayload struct {
	Media     domain.Media       `json:"media"`
	SyncState reconcile.Snapshot `json:"sync_state"`
}

func (s *Session) handle(ctx context.Context, event Event) error {
	var err error
	switch event.Type {
	case "ACK":
		err = s.handleAck(event.Payload)
	case "WELCOME":
		err = s.handleWelcome(ctx, event.Payload)
	case "MEMBER_UPDATED":
		err = s.handleMembersUpdated(event.Payload)
	case "MEDIA_CHANGED":
		err = s.handleMediaChanged(ctx, event.Payload)
	case "SYNC_STATE":
		err = s.handleSyncState(event.Payload)
	}

	if s.onEvent != nil && event.Type != "ACK" {
		s.onEvent(event)
	}

	return err
}

func (s *Session) handleAck(payload json.RawMessage) error {
	var a ack
	if err := json.Unmarshal(payload, &a); err != nil {
		return fmt.Errorf("failed to decode ack: %w", err)
	}

	s.mu.Lock()
	ch, ok := s.pending[a.RequestId]
	s.mu.Unlock()
	if ok {
		ch <- a
	}

	return nil
}

func (s *Session) handleWelcome(ctx context.Context, payload json.RawMessage) error {
	var welcome welcomePayload
	if err := json.Unmarshal(payload, &welcome); err != nil {
		return fmt.Errorf("failed to decode welcome: %w", err)
	}

	s.mu.Lock()
	s.selfId = welcome.SelfId
	s.roomId = welcome.RoomId
	if welcome.RejoinToken != "" {
		s.rejoinToken = welcome.RejoinToken
	}
	s.mu.Unlock()

	s.engine.SetController(welcome.ControllerId == welcome.SelfId)

	return s.loadMedia(ctx, welcome.Media, welcome.SyncState)
}

func (s *Session) handleMembersUpdated(payload json.RawMessage) error {
	var members membersPayload
	if err := json.Unmarshal(payload, &members); err != nil {
		return fmt.Errorf("failed to decode members: %w", err)
	}

	s.engine.SetController(members.ControllerId != "" && members.ControllerId == s.SelfId())

	return nil
}

func (s *Session) handleMediaChanged(ctx context.Context, payload json.RawMessage) error {
	var media mediaPayload
	if err := json.Unmarshal(payload, &media); err != nil {
		return fmt.Errorf("failed to decode media: %w", err)
	}

	return s.loadMedia(ctx, &media.Media, media.SyncState)
}

func (s *Session) handleSyncState(payload json.RawMessage) error {
	var snapshot reconcile.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("failed to decode sync state: %w", err)
	}

	s.engine.ApplySnapshot(snapshot, false)

	return nil
}

// loadMedia switches the player to media and lands it on snapshot with a
// forced seek. When the media has no duration it is probed in the background.
func (s *Session) loadMedia(ctx context.Context, media *domain.Media, snapshot reconcile.Snapshot) error {
	s.engine.SetMedia(media)
	if err := s.player.Load(media); err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}
	if media == nil {
		return nil
	}

	s.engine.ApplySnapshot(snapshot, true)
	s.engine.PlayerReady()

	if s.estimator != nil && media.ContentLength > 0 && !(media.Duration > 0) {
		go s.probe(ctx, *media)
	}

	return nil
}

func (s *Session) probe(ctx context.Context, media domain.Media) {
	seconds, ok := s.estimator.Estimate(ctx, media.Id, media.SourceRef, media.ContentLength)
	if !ok {
		s.logger.DebugContext(ctx, "duration unknown", "media_id", media.Id)
		return
	}

	if s.engine.ApplyProbeResult(media.Id, seconds) {
		s.logger.InfoContext(ctx, "duration locked", "media_id", media.Id, "duration", seconds)
	}
}

type JoinParams struct {
	RoomId   string `json:"room_id"`
	Nickname string `json:"nickname"`
	// RejoinToken defaults to the token of the last welcome.
	RejoinToken string `json:"rejoin_token,omitempty"`
}

// invalidTokenMessage is the server's ACK message for a rejected rejoin token.
const invalidTokenMessage = "invalid rejoin token"

// Join enters a room. The WELCOME that precedes the ACK has been applied by
// the time Join returns. A rejected rejoin token is forgotten, and the join is
// retried without it when params name the room.
func (s *Session) Join(ctx context.Context, params JoinParams) error {
	if params.RejoinToken == "" {
		s.mu.Lock()
		params.RejoinToken = s.rejoinToken
		s.mu.Unlock()
	}

	_, err := s.Request(ctx, "JOIN", params)
	if err == nil || params.RejoinToken == "" || !errors.Is(err, ErrRejected) || !strings.Contains(err.Error(), invalidTokenMessage) {
		return err
	}

	s.mu.Lock()
	if s.rejoinToken == params.RejoinToken {
		s.rejoinToken = ""
	}
	s.mu.Unlock()

	if params.RoomId == "" {
		return err
	}

	s.logger.InfoContext(ctx, "rejoin token rejected, joining without it", "room_id", params.RoomId)
	params.RejoinToken = ""
	_, err = s.Request(ctx, "JOIN", params)
	return err
}

func (s *Session) Leave(ctx context.Context) error {
	if _, err := s.Request(ctx, "LEAVE", nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.roomId = ""
	s.mu.Unlock()
	s.engine.SetController(false)

	return nil
}

func (s *Session) ClaimController(ctx context.Context) error {
	_, err := s.Request(ctx, "CLAIM_CONTROLLER", nil)
	return err
}

type ChangeMediaParams struct {
	Id            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	SourceRef     string  `json:"source_ref"`
	Duration      float64 `json:"duration"`
	ContentLength int64   `json:"content_length,omitempty"`
}

func (s *Session) ChangeMedia(ctx context.Context, params ChangeMediaParams) error {
	_, err := s.Request(ctx, "CHANGE_MEDIA", params)
	return err
}

func (s *Session) SendChat(ctx context.Context, text string) error {
	_, err := s.Request(ctx, "CHAT_SEND", map[string]any{"text": text})
	return err
}

func (s *Session) SendDanmaku(ctx context.Context, text, color string, videoTime float64) error {
	_, err := s.Request(ctx, "DANMAKU_SEND", map[string]any{
		"text":       text,
		"color":      color,
		"video_time": videoTime,
	})
	return err
}

// LocalEvent reports a change the user made to the player, such as a play
// or a seek.
func (s *Session) LocalEvent(ctx context.Context, reason string) (bool, error) {
	return s.engine.LocalEvent(ctx, reason)
}
