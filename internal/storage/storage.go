package storage

import (
	"context"

	"github.com/slok/luabox/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository

// Repository is the interface for run history persistence.
type Repository interface {
	CreateRun(ctx context.Context, r model.RunRecord) error
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
	// ListRuns returns the runs, newest first.
	ListRuns(ctx context.Context, opts model.RunListOpts) ([]model.RunRecord, error)
}
