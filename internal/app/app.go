package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/cowatch/internal/controller"
	"github.com/sharetube/cowatch/internal/mpegts"
	"github.com/sharetube/cowatch/internal/repository/connection/inmemory"
	probeRedis "github.com/sharetube/cowatch/internal/repository/probe/redis"
	"github.com/sharetube/cowatch/internal/service/probe"
	"github.com/sharetube/cowatch/internal/service/room"
	"github.com/sharetube/cowatch/pkg/ctxlogger"
	"github.com/sharetube/cowatch/pkg/redisclient"
)

const (
	rejoinTokenTTL = 24 * time.Hour
	probeTimeout   = 30 * time.Second
)

type AppConfig struct {
	Secret             string        `json:"-"`
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	LogLevel           string        `json:"log_level"`
	ChatLimit          int           `json:"chat_limit"`
	DanmakuLimit       int           `json:"danmaku_limit"`
	SyncDriftThreshold float64       `json:"sync_drift_threshold"`
	RedisPort          int           `json:"redis_port"`
	RedisHost          string        `json:"redis_host"`
	RedisPassword      string        `json:"-"`
	ProbeCacheTTL      time.Duration `json:"probe_cache_ttl"`
	ProbeAllowedHosts  []string      `json:"probe_allowed_hosts"`
}

func (cfg *AppConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.LogLevel, validation.By(func(value any) error {
			var level slog.Level
			return level.UnmarshalText([]byte(strings.ToUpper(value.(string))))
		})),
		validation.Field(&cfg.ChatLimit, validation.Min(20), validation.Max(5000)),
		validation.Field(&cfg.DanmakuLimit, validation.Min(20), validation.Max(5000)),
		validation.Field(&cfg.SyncDriftThreshold, validation.Required, validation.Min(0.05), validation.Max(10.0)),
		validation.Field(&cfg.RedisHost, validation.Required),
		validation.Field(&cfg.RedisPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.ProbeCacheTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&cfg.ProbeAllowedHosts, validation.Each(validation.Required, validation.Length(1, 253))),
	)
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type application struct {
	handler   http.Handler
	closeAll  func()
	connCount func() int
}

func newApplication(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) *application {
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(connRepo, &room.Config{
		ChatLimit:    cfg.ChatLimit,
		DanmakuLimit: cfg.DanmakuLimit,
		Secret:       cfg.Secret,
		TokenTTL:     rejoinTokenTTL,
	}, logger)

	probeRepo := probeRedis.NewRepo(rc, cfg.ProbeCacheTTL)
	estimator := mpegts.NewEstimator(mpegts.NewHTTPFetcher(&http.Client{Timeout: probeTimeout}), logger)
	probeService := probe.NewService(estimator, probeRepo, &probe.Config{
		AllowedHosts: cfg.ProbeAllowedHosts,
	}, logger)
	if len(cfg.ProbeAllowedHosts) == 0 {
		logger.Warn("no media hosts allowed, duration estimation is disabled")
	}

	controller := controller.NewController(roomService, probeService, logger, cfg.SyncDriftThreshold)

	return &application{
		handler: controller.GetMux(),
		// hijacked websocket connections are not closed by http.Server.Shutdown
		closeAll: func() {
			for _, conn := range connRepo.All() {
				conn.Close()
			}
		},
		connCount: connRepo.Length,
	}
}

// connectCache never fails: redis only backs the duration cache, and the
// estimation service treats cache errors as misses.
func connectCache(ctx context.Context, cfg *redisclient.Config, logger *slog.Logger) *redis.Client {
	rc, err := redisclient.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.WarnContext(ctx, "redis unavailable, duration cache disabled until it recovers", "error", err)
		return redisclient.New(cfg)
	}

	return rc
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	rc := connectCache(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	}, logger)
	defer rc.Close()

	app := newApplication(cfg, rc, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: app.handler}
	server.RegisterOnShutdown(app.closeAll)

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		logger.InfoContext(shutdownCtx, "shutting down", "connections", app.connCount())
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
