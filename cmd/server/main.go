package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/cowatch/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "COWATCH_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "COWATCH_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "COWATCH_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "COWATCH_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	chatLimit = configVar[int]{
		envKey:       "COWATCH_CHAT_LIMIT",
		flagKey:      "chat-limit",
		defaultValue: 300,
	}
	danmakuLimit = configVar[int]{
		envKey:       "COWATCH_DANMAKU_LIMIT",
		flagKey:      "danmaku-limit",
		defaultValue: 500,
	}
	syncDriftThreshold = configVar[float64]{
		envKey:       "COWATCH_SYNC_DRIFT_THRESHOLD",
		flagKey:      "sync-drift-threshold",
		defaultValue: 0.4,
	}
	probeCacheTTL = configVar[time.Duration]{
		envKey:       "COWATCH_PROBE_CACHE_TTL",
		flagKey:      "probe-cache-ttl",
		defaultValue: 7 * 24 * time.Hour,
	}
	probeAllowedHosts = configVar[[]string]{
		envKey:       "COWATCH_PROBE_ALLOWED_HOSTS",
		flagKey:      "probe-allowed-hosts",
		defaultValue: []string{},
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	// a missing .env is fine, the environment and flags still apply
	_ = godotenv.Load()

	pflag.String(secret.flagKey, secret.defaultValue, "Secret signing rejoin tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(chatLimit.flagKey, chatLimit.defaultValue, "Chat messages kept per room")
	pflag.Int(danmakuLimit.flagKey, danmakuLimit.defaultValue, "Danmaku kept per room")
	pflag.Float64(syncDriftThreshold.flagKey, syncDriftThreshold.defaultValue, "Drift in seconds before clients seek")
	pflag.Duration(probeCacheTTL.flagKey, probeCacheTTL.defaultValue, "How long probed durations are cached")
	pflag.StringSlice(probeAllowedHosts.flagKey, probeAllowedHosts.defaultValue, "Media hosts the duration probe may fetch from, *.domain matches subdomains")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(chatLimit.flagKey, chatLimit.envKey)
	viper.BindEnv(danmakuLimit.flagKey, danmakuLimit.envKey)
	viper.BindEnv(syncDriftThreshold.flagKey, syncDriftThreshold.envKey)
	viper.BindEnv(probeCacheTTL.flagKey, probeCacheTTL.envKey)
	viper.BindEnv(probeAllowedHosts.flagKey, probeAllowedHosts.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(chatLimit.flagKey, chatLimit.defaultValue)
	viper.SetDefault(danmakuLimit.flagKey, danmakuLimit.defaultValue)
	viper.SetDefault(syncDriftThreshold.flagKey, syncDriftThreshold.defaultValue)
	viper.SetDefault(probeCacheTTL.flagKey, probeCacheTTL.defaultValue)
	viper.SetDefault(probeAllowedHosts.flagKey, probeAllowedHosts.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Secret:             viper.GetString(secret.flagKey),
		Host:               viper.GetString(host.flagKey),
		Port:               viper.GetInt(port.flagKey),
		LogLevel:           viper.GetString(logLevel.flagKey),
		ChatLimit:          viper.GetInt(chatLimit.flagKey),
		DanmakuLimit:       viper.GetInt(danmakuLimit.flagKey),
		SyncDriftThreshold: viper.GetFloat64(syncDriftThreshold.flagKey),
		ProbeCacheTTL:      viper.GetDuration(probeCacheTTL.flagKey),
		ProbeAllowedHosts:  splitList(viper.GetStringSlice(probeAllowedHosts.flagKey)),
		RedisPort:          viper.GetInt(redisPort.flagKey),
		RedisHost:          viper.GetString(redisHost.flagKey),
		RedisPassword:      viper.GetString(redisPassword.flagKey),
	}

	return config
}

// splitList accepts both repeated flags and a comma separated env value.
func splitList(values []string) []string {
	var list []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}

	return list
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
