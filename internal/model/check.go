package model

// CheckStatus is the status of a validation check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// Validation check IDs reported by the engines.
const (
	CheckIDSyntax       = "syntax"
	CheckIDInstructions = "instructions"
	// CheckIDModulePrefix is followed by the module name, e.g. "module_socket".
	CheckIDModulePrefix = "module_"
)

// CheckResult is the result of a single validation or self check.
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}

// HasErrors returns true when a program or host should be rejected by the checks.
func HasErrors(results []CheckResult) bool {
	_, _, errs := CountByStatus(results)
	return errs > 0
}

// HasWarnings returns true when any check passed with a warning.
func HasWarnings(results []CheckResult) bool {
	_, warns, _ := CountByStatus(results)
	return warns > 0
}

// CountByStatus counts check results by status.
func CountByStatus(results []CheckResult) (ok, warnings, errors int) {
	for _, r := range results {
		switch r.Status {
		case CheckStatusOK:
			ok++
		case CheckStatusWarning:
			warnings++
		case CheckStatusError:
			errors++
		}
	}
	return ok, warnings, errors
}
