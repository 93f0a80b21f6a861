package redis

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/cowatch/internal/repository/probe"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getDurationKey(key string) string {
	return "probe:" + key + ":duration"
}

func (r repo) SetDuration(ctx context.Context, params *probe.SetDurationParams) error {
	pipe := r.rc.TxPipeline()

	durationKey := r.getDurationKey(params.Key)
	if err := r.hSetStruct(ctx, pipe, durationKey, probe.Duration{
		Duration: params.Duration,
		Size:     params.Size,
		ProbedAt: params.ProbedAt,
	}); err != nil {
		return fmt.Errorf("failed to queue duration: %w", err)
	}
	pipe.Expire(ctx, durationKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set duration: %w", err)
	}

	return nil
}

func (r repo) GetDuration(ctx context.Context, key string) (probe.Duration, error) {
	durationKey := r.getDurationKey(key)
	res := r.rc.HGetAll(ctx, durationKey)
	fields, err := res.Result()
	if err != nil {
		return probe.Duration{}, fmt.Errorf("failed to get duration: %w", err)
	}

	if len(fields) == 0 {
		return probe.Duration{}, probe.ErrNotFound
	}

	var duration probe.Duration
	if err := res.Scan(&duration); err != nil {
		return probe.Duration{}, fmt.Errorf("failed to scan duration: %w", err)
	}

	return duration, nil
}

func (r repo) hSetStruct(ctx context.Context, c redis.Pipeliner, key string, value any) error {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]any)
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}

		fields[tag] = v.Field(i).Interface()
	}

	return c.HSet(ctx, key, fields).Err()
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
