package probe

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sharetube/cowatch/internal/repository/probe"
	"github.com/sharetube/cowatch/pkg/metrics"
)

type iEstimator interface {
	Estimate(ctx context.Context, key, url string, size int64) (float64, bool)
}

type iProbeRepo interface {
	GetDuration(context.Context, string) (probe.Duration, error)
	SetDuration(context.Context, *probe.SetDurationParams) error
}

var ErrHostNotAllowed = errors.New("host not allowed")

type Config struct {
	// AllowedHosts lists the media hosts the server may fetch from. An entry
	// "*.example.com" matches any subdomain. Nothing is fetched when empty.
	AllowedHosts []string
}

type service struct {
	estimator    iEstimator
	probeRepo    iProbeRepo
	allowedHosts []string
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(estimator iEstimator, probeRepo iProbeRepo, cfg *Config, logger *slog.Logger) *service {
	allowedHosts := make([]string, 0, len(cfg.AllowedHosts))
	for _, host := range cfg.AllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			allowedHosts = append(allowedHosts, host)
		}
	}

	return &service{
		estimator:    estimator,
		probeRepo:    probeRepo,
		allowedHosts: allowedHosts,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *service) hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range s.allowedHosts {
		if suffix, ok := strings.CutPrefix(allowed, "*"); ok {
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}

	return false
}

type EstimateDurationParams struct {
	Key  string
	URL  string
	Size int64
}

type EstimateDurationResponse struct {
	Known    bool    `json:"known"`
	Duration float64 `json:"duration"`
	Cached   bool    `json:"cached"`
}

// EstimateDuration answers from the cache when the same object was probed
// before. Only known durations are cached. Cache failures are logged and
// the probe runs anyway. URLs outside the allowed hosts are rejected before
// any lookup.
func (s *service) EstimateDuration(ctx context.Context, params *EstimateDurationParams) (EstimateDurationResponse, error) {
	if !s.hostAllowed(params.URL) {
		metrics.ProbeResults.WithLabelValues("rejected").Inc()
		return EstimateDurationResponse{}, ErrHostNotAllowed
	}

	key := params.Key
	if key == "" {
		key = params.URL
	}

	cached, err := s.probeRepo.GetDuration(ctx, key)
	switch {
	case err == nil && cached.Size == params.Size && cached.Duration > 0:
		metrics.ProbeResults.WithLabelValues("cached").Inc()
		return EstimateDurationResponse{Known: true, Duration: cached.Duration, Cached: true}, nil
	case err != nil && !errors.Is(err, probe.ErrNotFound):
		s.logger.WarnContext(ctx, "failed to read duration cache", "error", err)
	}

	duration, ok := s.estimator.Estimate(ctx, key, params.URL, params.Size)
	if !ok {
		metrics.ProbeResults.WithLabelValues("unknown").Inc()
		return EstimateDurationResponse{}, nil
	}
	metrics.ProbeResults.WithLabelValues("known").Inc()

	if err := s.probeRepo.SetDuration(ctx, &probe.SetDurationParams{
		Key:      key,
		Duration: duration,
		Size:     params.Size,
		ProbedAt: s.now().UnixMilli(),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to cache duration", "error", err)
	}

	return EstimateDurationResponse{Known: true, Duration: duration}, nil
}
