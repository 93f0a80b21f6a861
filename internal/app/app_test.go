package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/cowatch/internal/client"
	"github.com/sharetube/cowatch/internal/mpegts"
	"github.com/sharetube/cowatch/pkg/redisclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *AppConfig {
	return &AppConfig{
		Secret:             "secret",
		Host:               "127.0.0.1",
		Port:               8080,
		LogLevel:           "debug",
		ChatLimit:          300,
		DanmakuLimit:       500,
		SyncDriftThreshold: 0.4,
		RedisHost:          "localhost",
		RedisPort:          6379,
		ProbeCacheTTL:      time.Hour,
		ProbeAllowedHosts:  []string{"127.0.0.1"},
	}
}

func TestAppConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.ChatLimit = 0
	assert.NoError(t, cfg.Validate(), "zero limits fall back to defaults")

	cfg = testConfig()
	cfg.ChatLimit = 10
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.SyncDriftThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.ProbeAllowedHosts = []string{"cdn.example.com", ""}
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.ProbeAllowedHosts = nil
	assert.NoError(t, cfg.Validate(), "probing is disabled without hosts")
}

// transportStream is 200 PES packets with PTS rising from 1s to 11s.
func transportStream() []byte {
	const packets = 200
	first, last := uint64(mpegts.ClockRate), uint64(11*mpegts.ClockRate)

	stream := make([]byte, 0, packets*mpegts.PacketSize)
	for i := 0; i < packets; i++ {
		pts := first + (last-first)*uint64(i)/uint64(packets-1)
		stream = append(stream, ptsPacket(0x100, pts)...)
	}

	return stream
}

func ptsPacket(pid uint16, pts uint64) []byte {
	p := bytes.Repeat([]byte{0xff}, mpegts.PacketSize)
	p[0] = mpegts.SyncByte
	p[1] = 0x40 | byte(pid>>8)&0x1f
	p[2] = byte(pid)
	p[3] = 0x10
	copy(p[4:], []byte{0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0x80, 0x80, 0x05})
	p[13] = 0x21 | byte((pts>>30)&0x07)<<1
	p[14] = byte(pts >> 22)
	p[15] = byte((pts>>15)&0x7f)<<1 | 0x01
	p[16] = byte(pts >> 7)
	p[17] = byte(pts&0x7f)<<1 | 0x01
	return p
}

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	app    *application
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return newTestAppWithRedis(t, s, rc)
}

func newTestAppWithRedis(t *testing.T, s *miniredis.Miniredis, rc *redis.Client) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := newApplication(testConfig(), rc, logger)

	server := httptest.NewServer(app.handler)
	t.Cleanup(server.Close)

	return &testApp{server: server, redis: s, app: app}
}

func newMediaServer(t *testing.T) (*httptest.Server, []byte) {
	t.Helper()

	stream := transportStream()
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.ts", time.Time{}, bytes.NewReader(stream))
	}))
	t.Cleanup(media.Close)

	return media, stream
}

func postDuration(t *testing.T, ta *testApp, url string, size int) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"url":  url,
		"size": size,
		"key":  "clip",
	})
	require.NoError(t, err)

	resp, err := http.Post(ta.server.URL+"/api/v1/probe/duration", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func TestProbeEndpointCachesDuration(t *testing.T) {
	ta := newTestApp(t)
	media, stream := newMediaServer(t)

	probe := func() map[string]any {
		status, result := postDuration(t, ta, media.URL+"/clip.ts", len(stream))
		require.Equal(t, http.StatusOK, status)
		return result
	}

	first := probe()
	assert.Equal(t, true, first["known"])
	assert.InDelta(t, 10.0, first["duration"], 1e-9)
	assert.Equal(t, false, first["cached"])
	assert.True(t, ta.redis.Exists("probe:clip:duration"))

	second := probe()
	assert.Equal(t, true, second["cached"])
	assert.InDelta(t, 10.0, second["duration"], 1e-9)
}

func TestDurationEndpointRejectsOtherHosts(t *testing.T) {
	ta := newTestApp(t)
	_, stream := newMediaServer(t)

	status, result := postDuration(t, ta, "http://169.254.169.254/latest/meta-data", len(stream))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "host not allowed", result["error"])
	assert.False(t, ta.redis.Exists("probe:clip:duration"))
}

func TestDurationEndpointWithoutRedis(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	s.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rc := connectCache(context.Background(), &redisclient.Config{Host: "127.0.0.1", Port: port}, logger)
	require.NotNil(t, rc)
	t.Cleanup(func() { rc.Close() })

	ta := newTestAppWithRedis(t, s, rc)
	media, stream := newMediaServer(t)

	for i := 0; i < 2; i++ {
		status, result := postDuration(t, ta, media.URL+"/clip.ts", len(stream))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, result["known"])
		assert.InDelta(t, 10.0, result["duration"], 1e-9)
		assert.Equal(t, false, result["cached"])
	}
}

func TestWatchPartyEndToEnd(t *testing.T) {
	ta := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	health, err := client.FetchHealth(ctx, ta.server.Client(), ta.server.URL)
	require.NoError(t, err)
	assert.Equal(t, 0.4, health.SyncDriftThreshold)

	wsURL := "ws" + strings.TrimPrefix(ta.server.URL, "http") + "/api/v1/ws"
	start := func(player *client.VirtualPlayer) *client.Session {
		session, err := client.Dial(ctx, player, client.Config{
			URL:            wsURL,
			DriftThreshold: health.SyncDriftThreshold,
			Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			session.Run(ctx)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})

		return session
	}

	hostPlayer := client.NewVirtualPlayer(nil)
	host := start(hostPlayer)
	require.NoError(t, host.Join(ctx, client.JoinParams{RoomId: "friday", Nickname: "host"}))

	guestPlayer := client.NewVirtualPlayer(nil)
	guest := start(guestPlayer)
	require.NoError(t, guest.Join(ctx, client.JoinParams{RoomId: "friday", Nickname: "guest"}))

	require.Eventually(t, func() bool { return ta.app.connCount() == 2 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, host.ChangeMedia(ctx, client.ChangeMediaParams{
		Name:      "movie",
		SourceRef: "https://cdn.example.com/movie.ts",
		Duration:  5400,
	}))
	require.Eventually(t, func() bool { return guestPlayer.Media() != nil }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, hostPlayer.Seek(600))
	require.NoError(t, hostPlayer.Play())
	require.Eventually(t, func() bool {
		emitted, err := host.LocalEvent(ctx, "play")
		return err == nil && emitted
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return !guestPlayer.Paused() && guestPlayer.Position() > 599
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(ta.server.URL + "/api/v1/lobby/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var lobby struct {
		Rooms []struct {
			RoomId      string `json:"room_id"`
			OnlineCount int    `json:"online_count"`
			MediaName   string `json:"media_name"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lobby))
	require.Len(t, lobby.Rooms, 1)
	assert.Equal(t, "friday", lobby.Rooms[0].RoomId)
	assert.Equal(t, 2, lobby.Rooms[0].OnlineCount)
	assert.Equal(t, "movie", lobby.Rooms[0].MediaName)

	ta.app.closeAll()
	require.Eventually(t, func() bool { return ta.app.connCount() == 0 }, 3*time.Second, 20*time.Millisecond)
}
