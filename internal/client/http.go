package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Health is the server's /api/v1/health answer.
type Health struct {
	Ok                 bool    `json:"ok"`
	Now                int64   `json:"now"`
	SyncDriftThreshold float64 `json:"sync_drift_threshold"`
}

func FetchHealth(ctx context.Context, client *http.Client, baseURL string) (Health, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/api/v1/health", nil)
	if err != nil {
		return Health{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("failed to fetch health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("failed to fetch health: status %d", resp.StatusCode)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("failed to decode health: %w", err)
	}

	return health, nil
}

// RemoteEstimator asks the server to probe a duration, so the result is
// shared through its cache.
type RemoteEstimator struct {
	Client  *http.Client
	BaseURL string
	Logger  *slog.Logger
}

type estimateRequest struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Key  string `json:"key,omitempty"`
}

type estimateResponse struct {
	Known    bool    `json:"known"`
	Duration float64 `json:"duration"`
}

func (e RemoteEstimator) Estimate(ctx context.Context, key, url string, size int64) (float64, bool) {
	duration, err := e.estimate(ctx, key, url, size)
	if err != nil {
		if e.Logger != nil {
			e.Logger.WarnContext(ctx, "remote probe failed", "error", err)
		}
		return 0, false
	}

	return duration, duration > 0
}

func (e RemoteEstimator) estimate(ctx context.Context, key, url string, size int64) (float64, error) {
	body, err := json.Marshal(estimateRequest{URL: url, Size: size, Key: key})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(e.BaseURL, "/")+"/api/v1/probe/duration", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	var estimate estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&estimate); err != nil {
		return 0, fmt.Errorf("failed to decode estimate: %w", err)
	}
	if !estimate.Known {
		return 0, nil
	}

	return estimate.Duration, nil
}
