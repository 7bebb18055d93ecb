package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/app/history"
	"github.com/slok/luabox/internal/log"
	"github.com/slok/luabox/internal/model"
	"github.com/slok/luabox/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	_, err := history.NewService(history.ServiceConfig{Logger: log.Noop})
	assert.Error(t, err)

	svc, err := history.NewService(history.ServiceConfig{Repository: &storagemock.MockRepository{}})
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestServiceList(t *testing.T) {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	completed := model.OutcomeStatusCompleted

	tests := map[string]struct {
		mock    func(m *storagemock.MockRepository)
		req     history.ListRequest
		expRuns []model.RunRecord
		expErr  bool
	}{
		"list all runs without filter": {
			mock: func(m *storagemock.MockRepository) {
				m.On("ListRuns", mock.Anything, model.RunListOpts{}).Once().Return([]model.RunRecord{
					{ID: "r2", Status: model.OutcomeStatusTimedOut, CreatedAt: createdAt},
					{ID: "r1", Status: model.OutcomeStatusCompleted, CreatedAt: createdAt},
				}, nil)
			},
			req: history.ListRequest{},
			expRuns: []model.RunRecord{
				{ID: "r2", Status: model.OutcomeStatusTimedOut, CreatedAt: createdAt},
				{ID: "r1", Status: model.OutcomeStatusCompleted, CreatedAt: createdAt},
			},
		},

		"filters and limits are passed to the repository": {
			mock: func(m *storagemock.MockRepository) {
				m.On("ListRuns", mock.Anything, model.RunListOpts{Status: &completed, Limit: 5}).Once().Return([]model.RunRecord{
					{ID: "r1", Status: model.OutcomeStatusCompleted, CreatedAt: createdAt},
				}, nil)
			},
			req: history.ListRequest{StatusFilter: &completed, Limit: 5},
			expRuns: []model.RunRecord{
				{ID: "r1", Status: model.OutcomeStatusCompleted, CreatedAt: createdAt},
			},
		},

		"negative limits should fail": {
			mock:   func(m *storagemock.MockRepository) {},
			req:    history.ListRequest{Limit: -1},
			expErr: true,
		},

		"repository error should propagate": {
			mock: func(m *storagemock.MockRepository) {
				m.On("ListRuns", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("db error"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			m := &storagemock.MockRepository{}
			test.mock(m)

			svc, err := history.NewService(history.ServiceConfig{Repository: m, Logger: log.Noop})
			require.NoError(err)

			runs, err := svc.List(context.Background(), test.req)
			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expRuns, runs)
			}

			m.AssertExpectations(t)
		})
	}
}

func TestServiceGet(t *testing.T) {
	tests := map[string]struct {
		mock   func(m *storagemock.MockRepository)
		id     string
		expRun *model.RunRecord
		expErr error
	}{
		"getting a run should return it": {
			mock: func(m *storagemock.MockRepository) {
				m.On("GetRun", mock.Anything, "r1").Once().Return(&model.RunRecord{ID: "r1"}, nil)
			},
			id:     "r1",
			expRun: &model.RunRecord{ID: "r1"},
		},

		"missing runs should return not found": {
			mock: func(m *storagemock.MockRepository) {
				m.On("GetRun", mock.Anything, "r1").Once().Return(nil, fmt.Errorf("run r1: %w", model.ErrNotFound))
			},
			id:     "r1",
			expErr: model.ErrNotFound,
		},

		"empty ids should fail": {
			mock:   func(m *storagemock.MockRepository) {},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			m := &storagemock.MockRepository{}
			test.mock(m)

			svc, err := history.NewService(history.ServiceConfig{Repository: m})
			require.NoError(t, err)

			run, err := svc.Get(context.Background(), test.id)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expRun, run)
			}

			m.AssertExpectations(t)
		})
	}
}
