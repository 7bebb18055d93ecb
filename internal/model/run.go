package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RunRecord is the history entry of a run. Only metadata is stored, never program state.
type RunRecord struct {
	ID           string
	SourceDigest string
	Status       OutcomeStatus
	ErrorKind    string
	ErrorDetail  string
	Instructions int64
	Duration     time.Duration
	CreatedAt    time.Time
}

// SourceDigest returns the hex encoded sha256 of a program source.
func SourceDigest(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// NewRunRecord returns the history record of an outcome.
func NewRunRecord(source string, o ExecutionOutcome, createdAt time.Time) RunRecord {
	s := o.Summary()
	return RunRecord{
		ID:           o.RunID,
		SourceDigest: SourceDigest(source),
		Status:       o.Status,
		ErrorKind:    s.ErrorKind,
		ErrorDetail:  s.ErrorDetail,
		Instructions: o.Instructions,
		Duration:     o.Duration,
		CreatedAt:    createdAt,
	}
}

// RunListOpts are the options to list run records.
type RunListOpts struct {
	// Status filters by status when set.
	Status *OutcomeStatus
	// Limit is the max number of records returned, 0 means no limit.
	Limit int
}

// Validate validates the run record.
func (r RunRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required: %w", ErrNotValid)
	}
	if len(r.SourceDigest) != sha256.Size*2 {
		return fmt.Errorf("source digest must be a hex sha256: %w", ErrNotValid)
	}
	if r.Status == "" {
		return fmt.Errorf("status is required: %w", ErrNotValid)
	}
	if r.Instructions < 0 {
		return fmt.Errorf("instructions can't be negative: %w", ErrNotValid)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required: %w", ErrNotValid)
	}

	return nil
}
