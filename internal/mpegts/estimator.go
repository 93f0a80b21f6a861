package mpegts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrTooSmall     = errors.New("object too small")
	ErrNoTimestamps = errors.New("no usable timestamps")
)

const (
	PTSWindow = 3 << 20
	PCRWindow = 2 << 20
)

type Estimator struct {
	fetcher RangeFetcher
	logger  *slog.Logger
	group   singleflight.Group
}

func NewEstimator(fetcher RangeFetcher, logger *slog.Logger) *Estimator {
	return &Estimator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Estimate probes the stream at url for its duration in seconds. ok is false
// when the duration is unknown; failures are logged, never returned.
// Concurrent calls with the same key share one probe.
func (e *Estimator) Estimate(ctx context.Context, key, url string, size int64) (float64, bool) {
	if key == "" {
		key = url
	}

	v, _, _ := e.group.Do(key, func() (any, error) {
		return e.estimate(ctx, url, size), nil
	})

	duration := v.(float64)
	return duration, duration > 0
}

func (e *Estimator) estimate(ctx context.Context, url string, size int64) float64 {
	for _, kind := range []Kind{KindPTS, KindPCR} {
		duration, err := e.EstimateBy(ctx, kind, url, size)
		if err == nil {
			return duration
		}

		e.logger.DebugContext(ctx, "duration probe failed", "kind", kind.String(), "size", size, "error", err)
	}

	return 0
}

func windowFor(kind Kind) (window, minSize int64) {
	if kind == KindPCR {
		return PCRWindow, PacketSize * 4
	}

	return PTSWindow, PacketSize * 8
}

// EstimateBy runs a single probe using one timestamp kind.
func (e *Estimator) EstimateBy(ctx context.Context, kind Kind, url string, size int64) (float64, error) {
	window, minSize := windowFor(kind)
	if size <= minSize {
		return 0, ErrTooSmall
	}
	window = min(window, size)

	var head, tail []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		head, err = e.fetcher.FetchRange(gctx, url, 0, window-1)
		return err
	})
	g.Go(func() error {
		var err error
		tail, err = e.fetcher.FetchRange(gctx, url, size-window, size-1)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to fetch windows: %w", err)
	}

	duration, ok := EstimateFromSamples(Collect(head, kind), Collect(tail, kind))
	if !ok {
		return 0, ErrNoTimestamps
	}

	return duration, nil
}
