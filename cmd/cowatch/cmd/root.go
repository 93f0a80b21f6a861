package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sharetube/cowatch/pkg/ctxlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	logLevelKey  = "log_level"
	serverURLKey = "server_url"
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:           "cowatch",
	Short:         "Tools for the cowatch sync server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if err := level.UnmarshalText([]byte(strings.ToUpper(viper.GetString(logLevelKey)))); err != nil {
			return err
		}

		logger = slog.New(ctxlogger.ContextHandler{
			Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		})

		return nil
	},
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	viper.SetEnvPrefix("cowatch")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("log-level", "info", "Logging level")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the sync server")

	viper.BindPFlag(logLevelKey, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(serverURLKey, rootCmd.PersistentFlags().Lookup("server"))
}
