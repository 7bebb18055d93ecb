package fake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/sandbox/fake"
)

func TestEngineRun(t *testing.T) {
	tests := map[string]struct {
		cfg       fake.EngineConfig
		policy    model.SandboxPolicy
		expStatus model.OutcomeStatus
		expErr    bool
	}{
		"Without outcome the run should complete.": {
			policy:    model.DefaultSandboxPolicy(),
			expStatus: model.OutcomeStatusCompleted,
		},

		"A configured outcome should be returned.": {
			cfg: fake.EngineConfig{
				Outcome: model.NewTimedOutOutcome(0),
			},
			policy:    model.DefaultSandboxPolicy(),
			expStatus: model.OutcomeStatusTimedOut,
		},

		"An invalid policy should fail.": {
			policy: model.SandboxPolicy{Timeout: -1},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			eng, err := fake.NewEngine(test.cfg)
			require.NoError(err)

			o, err := eng.Run(context.TODO(), "print(1)", test.policy)

			if test.expErr {
				assert.Error(err)
				assert.Empty(eng.Sources())
				return
			}
			require.NoError(err)
			assert.Equal(test.expStatus, o.Status)
			assert.Equal([]string{"print(1)"}, eng.Sources())
		})
	}
}

func TestNewEngineInvalidOutcome(t *testing.T) {
	_, err := fake.NewEngine(fake.EngineConfig{Outcome: &model.ExecutionOutcome{Status: model.OutcomeStatusCompleted}})
	assert.Error(t, err)
}

func TestEngineCheck(t *testing.T) {
	eng, err := fake.NewEngine(fake.EngineConfig{})
	require.NoError(t, err)

	res, err := eng.Check(context.TODO(), "anything", model.DefaultSandboxPolicy())
	require.NoError(t, err)
	assert.False(t, model.HasErrors(res))
}
