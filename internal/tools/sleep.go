package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/luabox/internal/model"
)

const defaultMaxSleep = time.Minute

// Sleep blocks the program for some seconds. It stops when the run is cancelled.
type Sleep struct {
	max time.Duration
}

// NewSleep returns a new sleep tool, sleeps longer than max are not valid.
func NewSleep(max time.Duration) *Sleep {
	if max <= 0 {
		max = defaultMaxSleep
	}
	return &Sleep{max: max}
}

func (s *Sleep) Name() string        { return "sleep" }
func (s *Sleep) Description() string { return "Sleeps the given number of seconds" }

func (s *Sleep) Call(ctx context.Context, args []any) (any, error) {
	secs, err := numberArg(args, 0, "seconds")
	if err != nil {
		return nil, err
	}
	d := time.Duration(secs * float64(time.Second))
	if d < 0 || d > s.max {
		return nil, fmt.Errorf("sleep must be between 0 and %s: %w", s.max, model.ErrNotValid)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	return nil, nil
}
