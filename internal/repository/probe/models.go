package probe

import "errors"

var ErrNotFound = errors.New("duration not found")

type Duration struct {
	Duration float64 `redis:"duration"`
	Size     int64   `redis:"size"`
	ProbedAt int64   `redis:"probed_at"`
}

type SetDurationParams struct {
	Key      string
	Duration float64
	Size     int64
	ProbedAt int64
}
