package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/luabox/internal/model"
)

func TestExecutionOutcomeValidate(t *testing.T) {
	tests := map[string]struct {
		outcome *model.ExecutionOutcome
		expErr  bool
	}{
		"Completed outcome should be valid.": {
			outcome: model.NewCompletedOutcome("1024\n"),
		},

		"Policy violation outcome should be valid.": {
			outcome: model.NewPolicyViolationOutcome(model.PolicyViolationResult{Reason: "x", Kind: model.ViolationKindImport, Name: "socket"}),
		},

		"Resource exceeded outcome should be valid.": {
			outcome: model.NewResourceExceededOutcome(model.ResourceKindInstructions, 20001, 20000),
		},

		"Two payloads should fail.": {
			outcome: func() *model.ExecutionOutcome {
				o := model.NewCompletedOutcome("")
				o.RuntimeFault = &model.RuntimeFaultResult{Message: "boom"}
				return o
			}(),
			expErr: true,
		},

		"No payload should fail.": {
			outcome: &model.ExecutionOutcome{Status: model.OutcomeStatusCompleted},
			expErr:  true,
		},

		"Payload not matching status should fail.": {
			outcome: func() *model.ExecutionOutcome {
				o := model.NewTimedOutOutcome(time.Second)
				o.Status = model.OutcomeStatusCompleted
				return o
			}(),
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.outcome.Validate()

			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecutionOutcomeSummary(t *testing.T) {
	tests := map[string]struct {
		outcome *model.ExecutionOutcome
		expJSON string
	}{
		"Completed outcome should have the output.": {
			outcome: model.NewCompletedOutcome("1024\n"),
			expJSON: `{"status":"completed","output":"1024\n"}`,
		},

		"Completed outcome without output should have an empty output.": {
			outcome: model.NewCompletedOutcome(""),
			expJSON: `{"status":"completed","output":""}`,
		},

		"Syntax error should have the line.": {
			outcome: model.NewSyntaxErrorOutcome("unexpected symbol", 3),
			expJSON: `{"status":"syntax_error","error_kind":"syntax","error_detail":"line 3: unexpected symbol"}`,
		},

		"Policy violation should have the kind.": {
			outcome: model.NewPolicyViolationOutcome(model.PolicyViolationResult{
				Reason: `module "socket" is not allowed`,
				Kind:   model.ViolationKindImport,
				Name:   "socket",
				Line:   1,
			}),
			expJSON: `{"status":"policy_violation","error_kind":"import","error_detail":"line 1: module \"socket\" is not allowed"}`,
		},

		"Resource exceeded should have the observed and limit values.": {
			outcome: model.NewResourceExceededOutcome(model.ResourceKindInstructions, 20001, 20000),
			expJSON: `{"status":"resource_exceeded","error_kind":"instructions","error_detail":"instructions ceiling exceeded: observed 20001, limit 20000"}`,
		},

		"Timed out should have the elapsed time.": {
			outcome: model.NewTimedOutOutcome(200 * time.Millisecond),
			expJSON: `{"status":"timed_out","error_kind":"timeout","error_detail":"timed out after 200ms"}`,
		},

		"Runtime fault should have the message.": {
			outcome: model.NewRuntimeFaultOutcome("attempt to divide"),
			expJSON: `{"status":"runtime_fault","error_kind":"runtime","error_detail":"attempt to divide"}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := json.Marshal(test.outcome.Summary())
			require.NoError(t, err)
			assert.JSONEq(t, test.expJSON, string(got))
		})
	}
}

func TestNewRunRecord(t *testing.T) {
	assert := assert.New(t)

	now := time.Now().UTC()
	o := model.NewResourceExceededOutcome(model.ResourceKindMemory, 200, 100)
	o.RunID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	o.Instructions = 42

	r := model.NewRunRecord("print(1)", *o, now)

	assert.NoError(r.Validate())
	assert.Equal(model.OutcomeStatusResourceExceeded, r.Status)
	assert.Equal("memory", r.ErrorKind)
	assert.Equal(int64(42), r.Instructions)
	assert.Equal(model.SourceDigest("print(1)"), r.SourceDigest)
	assert.Len(r.SourceDigest, 64)
}

func TestRunRecordValidate(t *testing.T) {
	base := model.RunRecord{
		ID:           "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		SourceDigest: model.SourceDigest("x = 1"),
		Status:       model.OutcomeStatusCompleted,
		CreatedAt:    time.Now(),
	}

	tests := map[string]struct {
		record func() model.RunRecord
		expErr bool
	}{
		"valid record": {
			record: func() model.RunRecord { return base },
		},
		"missing id": {
			record: func() model.RunRecord {
				r := base
				r.ID = ""
				return r
			},
			expErr: true,
		},
		"invalid digest": {
			record: func() model.RunRecord {
				r := base
				r.SourceDigest = "abc"
				return r
			},
			expErr: true,
		},
		"missing created at": {
			record: func() model.RunRecord {
				r := base
				r.CreatedAt = time.Time{}
				return r
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.record().Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
