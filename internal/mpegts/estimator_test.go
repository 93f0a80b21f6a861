package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type rangeCall struct {
	start, end int64
}

type recordingFetcher struct {
	data  []byte
	mu    sync.Mutex
	calls []rangeCall
	gate  chan struct{}
	count atomic.Int32
}

func (f *recordingFetcher) FetchRange(ctx context.Context, _ string, start, end int64) ([]byte, error) {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, rangeCall{start, end})
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return ReaderAtFetcher{R: bytes.NewReader(f.data)}.FetchRange(ctx, "", start, end)
}

type failingFetcher struct{}

func (failingFetcher) FetchRange(context.Context, string, int64, int64) ([]byte, error) {
	return nil, errors.New("connection reset")
}

// padded returns a stream of n packets with first at packet 0 and last at
// packet n-1, the rest null packets.
func padded(n int, first, last []byte) []byte {
	packets := make([][]byte, 0, n)
	packets = append(packets, first)
	for i := 0; i < n-2; i++ {
		packets = append(packets, nullPacket())
	}
	return stream(append(packets, last)...)
}

func TestEstimatePTS(t *testing.T) {
	data := padded(20, ptsPacket(0x100, 0), ptsPacket(0x100, 9_000_000))
	f := &recordingFetcher{data: data}

	d, ok := NewEstimator(f, discard).Estimate(context.Background(), "m1", "", int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, 100.0, d)
	assert.ElementsMatch(t, []rangeCall{{0, int64(len(data)) - 1}, {0, int64(len(data)) - 1}}, f.calls)
}

func TestEstimateFallsBackToPCR(t *testing.T) {
	data := padded(20, pcrPacket(0x200, TimestampModulus-90000), pcrPacket(0x200, 0))
	f := &recordingFetcher{data: data}

	d, ok := NewEstimator(f, discard).Estimate(context.Background(), "m1", "", int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, 1.0, d)
	assert.Len(t, f.calls, 4, "PTS attempt then PCR attempt")
}

func TestEstimateUnknown(t *testing.T) {
	e := NewEstimator(failingFetcher{}, discard)
	_, ok := e.Estimate(context.Background(), "m1", "", 10<<20)
	assert.False(t, ok)

	data := padded(20, nullPacket(), nullPacket())
	_, ok = NewEstimator(&recordingFetcher{data: data}, discard).Estimate(context.Background(), "m2", "", int64(len(data)))
	assert.False(t, ok)

	f := &recordingFetcher{data: make([]byte, PacketSize*4)}
	_, ok = NewEstimator(f, discard).Estimate(context.Background(), "m3", "", PacketSize*4)
	assert.False(t, ok)
	assert.Empty(t, f.calls, "objects below the minimum size are not fetched")
}

func TestEstimateWindows(t *testing.T) {
	const size = int64(10 << 20)
	f := &recordingFetcher{data: make([]byte, size)}
	e := NewEstimator(f, discard)

	_, err := e.EstimateBy(context.Background(), KindPTS, "", size)
	assert.ErrorIs(t, err, ErrNoTimestamps)
	assert.ElementsMatch(t, []rangeCall{{0, PTSWindow - 1}, {size - PTSWindow, size - 1}}, f.calls)

	f.calls = nil
	_, err = e.EstimateBy(context.Background(), KindPCR, "", size)
	assert.ErrorIs(t, err, ErrNoTimestamps)
	assert.ElementsMatch(t, []rangeCall{{0, PCRWindow - 1}, {size - PCRWindow, size - 1}}, f.calls)

	_, err = e.EstimateBy(context.Background(), KindPTS, "", PacketSize*8)
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestEstimateSingleFlight(t *testing.T) {
	data := padded(20, ptsPacket(0x100, 0), ptsPacket(0x100, 900_000))
	f := &recordingFetcher{data: data, gate: make(chan struct{})}
	e := NewEstimator(f, discard)

	var wg sync.WaitGroup
	results := make([]float64, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Estimate(context.Background(), "same-media", "", int64(len(data)))
		}(i)
	}

	require.Eventually(t, func() bool { return f.count.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(2), f.count.Load(), "one probe for all concurrent callers")
	for _, d := range results {
		assert.Equal(t, 10.0, d)
	}
}

func TestHTTPFetcher(t *testing.T) {
	data := padded(20, ptsPacket(0x100, 0), ptsPacket(0x100, 4_500_000))

	ranged := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "a.ts", time.Time{}, bytes.NewReader(data))
	}))
	defer ranged.Close()

	f := NewHTTPFetcher(ranged.Client())
	got, err := f.FetchRange(context.Background(), ranged.URL, 188, 375)
	require.NoError(t, err)
	assert.Equal(t, data[188:376], got)

	d, ok := NewEstimator(f, discard).Estimate(context.Background(), "", ranged.URL, int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, 50.0, d)

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}))
	defer plain.Close()

	got, err = NewHTTPFetcher(plain.Client()).FetchRange(context.Background(), plain.URL, 376, 563)
	require.NoError(t, err)
	assert.Equal(t, data[376:564], got, "whole-object responses are trimmed to the range")

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer denied.Close()

	_, err = NewHTTPFetcher(nil).FetchRange(context.Background(), denied.URL, 0, 10)
	assert.ErrorIs(t, err, ErrRangeStatus)
}
