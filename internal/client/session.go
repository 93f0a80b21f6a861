package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRejected = errors.New("request rejected")
	ErrClosed   = errors.New("session closed")
)

// MediaPlayer is a reconcile.Player that can switch sources.
type MediaPlayer interface {
	reconcile.Player
	Load(media *domain.Media) error
}

// Estimator probes a media duration; ok is false when it stays unknown.
type Estimator interface {
	Estimate(ctx context.Context, key, url string, size int64) (float64, bool)
}

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Config struct {
	URL            string
	DriftThreshold float64
	// Estimator probes media without a native duration. Optional.
	Estimator Estimator
	// OnEvent sees every server event after the session has handled it.
	OnEvent   func(Event)
	OnBlocked func()
	Logger    *slog.Logger
}

type ack struct {
	RequestId string          `json:"request_id"`
	Ok        bool            `json:"ok"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

type request struct {
	Type      string `json:"type"`
	RequestId string `json:"request_id"`
	Payload   any    `json:"payload"`
}

// Session is one websocket connection to the sync server. Server events are
// fed into a reconcile.Engine driving player; the engine's updates are sent
// back as SYNC_UPDATE requests while this session holds control.
type Session struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	player    MediaPlayer
	engine    *reconcile.Engine
	estimator Estimator
	onEvent   func(Event)
	logger    *slog.Logger

	mu          sync.Mutex
	pending     map[string]chan ack
	selfId      string
	roomId      string
	rejoinToken string
	closed      chan struct{}
	closeOnce   sync.Once
}

func Dial(ctx context.Context, player MediaPlayer, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	s := &Session{
		conn:      conn,
		player:    player,
		estimator: cfg.Estimator,
		onEvent:   cfg.OnEvent,
		logger:    logger,
		pending:   make(map[string]chan ack),
		closed:    make(chan struct{}),
	}
	s.engine = reconcile.NewEngine(player, s, reconcile.Config{
		DriftThreshold: cfg.DriftThreshold,
		OnBlocked:      cfg.OnBlocked,
		Logger:         logger,
	})

	return s, nil
}

func (s *Session) Engine() *reconcile.Engine {
	return s.engine
}

func (s *Session) SelfId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selfId
}

func (s *Session) RoomId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomId
}

// Run reads server events until the connection closes or ctx is done. The
// controller heartbeat runs alongside.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})

	g.Go(func() error {
		s.engine.RunHeartbeat(gctx)
		return nil
	})

	g.Go(func() error {
		defer s.shutdown()

		for {
			var event Event
			if err := s.conn.ReadJSON(&event); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to read event: %w", err)
			}

			if err := s.handle(gctx, event); err != nil {
				s.logger.WarnContext(gctx, "failed to handle event", "type", event.Type, "error", err)
			}
		}
	})

	return g.Wait()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *Session) Close() error {
	s.shutdown()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.Close()
}

// Request sends a message and waits for its ACK. A negative ACK is returned
// as ErrRejected carrying the server's message.
func (s *Session) Request(ctx context.Context, messageType string, payload any) (json.RawMessage, error) {
	requestId := uuid.NewString()
	ch := make(chan ack, 1)

	s.mu.Lock()
	s.pending[requestId] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, requestId)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err := s.conn.WriteJSON(request{
		Type:      messageType,
		RequestId: requestId,
		Payload:   payload,
	})
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	select {
	case a := <-ch:
		if !a.Ok {
			return nil, fmt.Errorf("%w: %s: %s", ErrRejected, messageType, a.Message)
		}
		return a.Data, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EmitSync implements reconcile.Emitter.
func (s *Session) EmitSync(ctx context.Context, update reconcile.Update) error {
	_, err := s.Request(ctx, "SYNC_UPDATE", update)
	return err
}
