package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sharetube/cowatch/internal/client"
	"github.com/sharetube/cowatch/internal/domain"
	"github.com/sharetube/cowatch/internal/mpegts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serverURL() string {
	return strings.TrimSuffix(viper.GetString(serverURLKey), "/")
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/api/v1/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/api/v1/ws"
	default:
		return base + "/api/v1/ws"
	}
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Join a room with a headless player and follow its playback",
	Long: `Join a room with a clock-driven player that is kept in sync with the
room's controller. Commands read from stdin act on the local player:

  play | pause | seek <seconds> | rate <rate>
  media <url> [size]   change the room's media (controller only)
  claim                take control of playback
  chat <text>          send a chat message
  status               print the local player state
  leave                leave the room and exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		roomId, _ := cmd.Flags().GetString("room")
		nickname, _ := cmd.Flags().GetString("nickname")
		remoteProbe, _ := cmd.Flags().GetBool("remote-probe")

		base := serverURL()
		health, err := client.FetchHealth(ctx, http.DefaultClient, base)
		if err != nil {
			return err
		}

		var estimator client.Estimator = mpegts.NewEstimator(mpegts.NewHTTPFetcher(http.DefaultClient), logger)
		if remoteProbe {
			estimator = client.RemoteEstimator{BaseURL: base, Logger: logger}
		}

		out := cmd.OutOrStdout()
		player := client.NewVirtualPlayer(nil)
		session, err := client.Dial(ctx, player, client.Config{
			URL:            wsURL(base),
			DriftThreshold: health.SyncDriftThreshold,
			Estimator:      estimator,
			OnEvent: func(event client.Event) {
				fmt.Fprintf(out, "<- %s %s\n", event.Type, event.Payload)
			},
			OnBlocked: func() {
				fmt.Fprintln(out, "playback blocked, type play to start")
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		runErr := make(chan error, 1)
		go func() {
			runErr <- session.Run(ctx)
		}()

		if err := session.Join(ctx, client.JoinParams{RoomId: roomId, Nickname: nickname}); err != nil {
			cancel()
			return errors.Join(err, <-runErr)
		}

		go func() {
			if err := readCommands(ctx, cmd.InOrStdin(), out, session, player); err != nil {
				logger.WarnContext(ctx, "command loop stopped", "error", err)
			}
			cancel()
		}()

		return <-runErr
	},
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, session *client.Session, player *client.VirtualPlayer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "leave" {
			return session.Leave(ctx)
		}

		if err := runCommand(ctx, out, session, player, fields); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}

	return scanner.Err()
}

func runCommand(ctx context.Context, out io.Writer, session *client.Session, player *client.VirtualPlayer, fields []string) error {
	arg := func(i int) (float64, error) {
		if len(fields) <= i {
			return 0, fmt.Errorf("%s needs an argument", fields[0])
		}
		return strconv.ParseFloat(fields[i], 64)
	}

	reason := ""
	switch fields[0] {
	case "play":
		if err := session.Engine().UserPlay(); err != nil {
			return err
		}
		reason = domain.ReasonPlay
	case "pause":
		player.Pause()
		reason = domain.ReasonPause
	case "seek":
		position, err := arg(1)
		if err != nil {
			return err
		}
		if err := player.Seek(position); err != nil {
			return err
		}
		reason = domain.ReasonSeek
	case "rate":
		rate, err := arg(1)
		if err != nil {
			return err
		}
		player.SetPlaybackRate(rate)
		reason = domain.ReasonRateChange
	case "media":
		if len(fields) < 2 {
			return fmt.Errorf("media needs a url")
		}
		var size int64
		if len(fields) > 2 {
			var err error
			if size, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
				return err
			}
		}
		return session.ChangeMedia(ctx, client.ChangeMediaParams{
			Name:          fields[1],
			SourceRef:     fields[1],
			ContentLength: size,
		})
	case "claim":
		return session.ClaimController(ctx)
	case "chat":
		return session.SendChat(ctx, strings.Join(fields[1:], " "))
	case "status":
		fmt.Fprintf(out, "state=%s position=%.3f rate=%.2f paused=%t duration=%.3f blocked=%t\n",
			session.Engine().State(),
			player.Position(),
			player.PlaybackRate(),
			player.Paused(),
			session.Engine().PlayableDuration(),
			session.Engine().AutoplayBlocked(),
		)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}

	emitted, err := session.LocalEvent(ctx, reason)
	if err != nil {
		return err
	}
	if !emitted {
		fmt.Fprintln(out, "local change not sent")
	}

	return nil
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().String("room", "", "Room to join")
	followCmd.Flags().String("nickname", "", "Nickname shown to the room")
	followCmd.Flags().Bool("remote-probe", false, "Probe durations through the server")
	followCmd.MarkFlagRequired("room")
}
