package mpegts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var ErrRangeStatus = errors.New("unexpected range response status")

// RangeFetcher returns bytes [start, end] (inclusive) of the object at url.
type RangeFetcher interface {
	FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create range request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch range: %w", err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// range ignored, whole object returned
		if _, err := io.CopyN(io.Discard, body, start); err != nil {
			return nil, fmt.Errorf("failed to skip to range start: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrRangeStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(body, end-start+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read range body: %w", err)
	}

	return data, nil
}

// ReaderAtFetcher serves ranges from a local object; url is ignored.
type ReaderAtFetcher struct {
	R io.ReaderAt
}

func (f ReaderAtFetcher) FetchRange(_ context.Context, _ string, start, end int64) ([]byte, error) {
	buf := make([]byte, end-start+1)
	n, err := f.R.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:n], nil
}
