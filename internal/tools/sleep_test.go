package tools_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/tools"
)

func TestSleep(t *testing.T) {
	tests := map[string]struct {
		ctx    func() (context.Context, context.CancelFunc)
		args   []any
		expErr error
	}{
		"A short sleep should return.": {
			ctx:  func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			args: []any{0.01},
		},

		"A cancelled context should stop the sleep.": {
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			args:   []any{30.0},
			expErr: context.DeadlineExceeded,
		},

		"Sleeps over the maximum should fail.": {
			ctx:    func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			args:   []any{120.0},
			expErr: model.ErrNotValid,
		},

		"Negative sleeps should fail.": {
			ctx:    func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			args:   []any{-1.0},
			expErr: model.ErrNotValid,
		},

		"Missing seconds should fail.": {
			ctx:    func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			ctx, cancel := test.ctx()
			defer cancel()

			start := time.Now()
			_, err := tools.NewSleep(time.Minute).Call(ctx, test.args)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			assert.Less(time.Since(start), 5*time.Second)
		})
	}
}
