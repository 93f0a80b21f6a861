package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/repository/connection"
	"github.com/sharetube/cowatch/pkg/clamp"
)

var (
	ErrNotInRoom     = errors.New("not in a room")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotController = errors.New("not controller")
	ErrNoMedia       = errors.New("no media")
	ErrMissingSource = errors.New("missing source")
	ErrEmptyText     = errors.New("empty text")
	ErrInvalidToken  = errors.New("invalid rejoin token")
)

const (
	DefaultChatLimit    = 300
	DefaultDanmakuLimit = 500
	minFeedLimit        = 20
	maxFeedLimit        = 5000
)

type iConnRepo interface {
	Add(*connection.Conn, string) error
	RemoveById(string) (*connection.Conn, error)
	GetConn(string) (*connection.Conn, error)
	All() []*connection.Conn
}

type Config struct {
	ChatLimit    int
	DanmakuLimit int
	// Secret signs rejoin tokens.
	Secret   string
	TokenTTL time.Duration
}

type service struct {
	connRepo     iConnRepo
	logger       *slog.Logger
	secret       []byte
	tokenTTL     time.Duration
	chatLimit    int
	danmakuLimit int
	now          func() time.Time

	mu          sync.Mutex
	rooms       map[string]*domain.Room
	memberRooms map[string]string
}

func NewService(connRepo iConnRepo, cfg *Config, logger *slog.Logger) *service {
	chatLimit := cfg.ChatLimit
	if chatLimit == 0 {
		chatLimit = DefaultChatLimit
	}

	danmakuLimit := cfg.DanmakuLimit
	if danmakuLimit == 0 {
		danmakuLimit = DefaultDanmakuLimit
	}

	tokenTTL := cfg.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}

	return &service{
		connRepo:     connRepo,
		logger:       logger,
		secret:       []byte(cfg.Secret),
		tokenTTL:     tokenTTL,
		chatLimit:    clamp.Clamp(chatLimit, minFeedLimit, maxFeedLimit),
		danmakuLimit: clamp.Clamp(danmakuLimit, minFeedLimit, maxFeedLimit),
		now:          time.Now,
		rooms:        make(map[string]*domain.Room),
		memberRooms:  make(map[string]string),
	}
}

func (s *service) nowMs() int64 {
	return s.now().UnixMilli()
}

type ConnectMemberParams struct {
	Conn   *connection.Conn
	ConnId string
}

func (s *service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if err := s.connRepo.Add(params.Conn, params.ConnId); err != nil {
		s.logger.InfoContext(ctx, "failed to connect member", "error", err)
		return err
	}

	return nil
}

type DisconnectMemberParams struct {
	ConnId string
}

// DisconnectMember drops the connection and leaves its room, if any. The
// returned response is zero when the connection was not in a room.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (LeaveResponse, error) {
	conn, err := s.connRepo.RemoveById(params.ConnId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to remove conn", "error", err)
	} else {
		conn.Close()
	}

	resp, err := s.Leave(ctx, &LeaveParams{ConnId: params.ConnId})
	if err != nil && !errors.Is(err, ErrNotInRoom) {
		return LeaveResponse{}, err
	}

	return resp, nil
}
