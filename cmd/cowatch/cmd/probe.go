package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sharetube/cowatch/internal/client"
	"github.com/sharetube/cowatch/internal/mpegts"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <url|file>",
	Short: "Estimate the duration of an MPEG-TS object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		size, _ := cmd.Flags().GetInt64("size")
		kind, _ := cmd.Flags().GetString("kind")
		remote, _ := cmd.Flags().GetBool("remote")
		seekTo, _ := cmd.Flags().GetFloat64("seek-to")

		isURL := strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")

		var fetcher mpegts.RangeFetcher
		if isURL {
			fetcher = mpegts.NewHTTPFetcher(http.DefaultClient)
			if size <= 0 {
				var err error
				if size, err = contentLength(ctx, source); err != nil {
					return err
				}
			}
		} else {
			f, err := os.Open(source)
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}
			size = info.Size()
			fetcher = mpegts.ReaderAtFetcher{R: f}
		}

		var duration float64
		switch {
		case remote:
			if !isURL {
				return fmt.Errorf("--remote needs a url")
			}
			estimator := client.RemoteEstimator{BaseURL: serverURL(), Logger: logger}
			duration, _ = estimator.Estimate(ctx, "", source, size)
		case kind == "auto":
			duration, _ = mpegts.NewEstimator(fetcher, logger).Estimate(ctx, "", source, size)
		default:
			k := mpegts.KindPTS
			if kind == "pcr" {
				k = mpegts.KindPCR
			}
			var err error
			if duration, err = mpegts.NewEstimator(fetcher, logger).EstimateBy(ctx, k, source, size); err != nil {
				logger.DebugContext(ctx, "estimate failed", "kind", k, "error", err)
			}
		}

		if !(duration > 0) {
			fmt.Fprintln(cmd.OutOrStdout(), "duration: unknown")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "duration: %.3fs\n", duration)

		if seekTo > 0 {
			if offset, ok := mpegts.SeekOffset(seekTo, duration, size); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "offset for %.3fs: %d\n", seekTo, offset)
			}
		}

		return nil
	},
}

func contentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to read size: %w", err)
	}
	resp.Body.Close()

	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("size unknown, pass --size")
	}

	return resp.ContentLength, nil
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Int64("size", 0, "Object size in bytes (default: from a HEAD request)")
	probeCmd.Flags().String("kind", "auto", "Timestamp kind: auto, pts or pcr")
	probeCmd.Flags().Bool("remote", false, "Ask the server instead of probing locally")
	probeCmd.Flags().Float64("seek-to", 0, "Also print the byte offset for this time")
}
