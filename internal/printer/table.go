package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/luabox/internal/model"
)

// TablePrinter prints run information in a human friendly format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintOutcome prints the program output when it completed, otherwise the failure details.
func (t *TablePrinter) PrintOutcome(o model.ExecutionOutcome) error {
	s := o.Summary()
	if s.Output != nil {
		_, err := io.WriteString(t.writer, *s.Output)
		return err
	}

	fmt.Fprintf(t.writer, "Run:          %s\n", o.RunID)
	fmt.Fprintf(t.writer, "Status:       %s\n", s.Status)
	fmt.Fprintf(t.writer, "Error:        %s\n", s.ErrorKind)
	fmt.Fprintf(t.writer, "Detail:       %s\n", s.ErrorDetail)
	fmt.Fprintf(t.writer, "Instructions: %s\n", FormatCount(o.Instructions))
	fmt.Fprintf(t.writer, "Duration:     %s\n", FormatDuration(o.Duration))
	if o.PeakMemory > 0 {
		fmt.Fprintf(t.writer, "Peak memory:  %s\n", FormatBytes(o.PeakMemory))
	}

	return nil
}

// PrintCheck prints the check results and a summary line.
func (t *TablePrinter) PrintCheck(results []model.CheckResult) error {
	for _, r := range results {
		fmt.Fprintf(t.writer, "  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	_, warnings, errors := model.CountByStatus(results)
	if errors == 0 && warnings == 0 {
		fmt.Fprintln(t.writer, "All checks passed!")
		return nil
	}

	var summary []string
	if errors > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", warnings))
	}
	fmt.Fprintln(t.writer, strings.Join(summary, ", "))

	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

// PrintRunList prints runs in a table format.
func (t *TablePrinter) PrintRunList(runs []model.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tSTATUS\tERROR\tINSTRUCTIONS\tDURATION\tCREATED")
	for _, r := range runs {
		errKind := r.ErrorKind
		if errKind == "" {
			errKind = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, errKind, FormatCount(r.Instructions), FormatDuration(r.Duration), TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintRun prints a detailed run.
func (t *TablePrinter) PrintRun(r model.RunRecord) error {
	fmt.Fprintf(t.writer, "ID:           %s\n", r.ID)
	fmt.Fprintf(t.writer, "Status:       %s\n", r.Status)
	if r.ErrorKind != "" {
		fmt.Fprintf(t.writer, "Error:        %s\n", r.ErrorKind)
		fmt.Fprintf(t.writer, "Detail:       %s\n", r.ErrorDetail)
	}
	fmt.Fprintf(t.writer, "Instructions: %s\n", FormatCount(r.Instructions))
	fmt.Fprintf(t.writer, "Duration:     %s\n", FormatDuration(r.Duration))
	fmt.Fprintf(t.writer, "Source:       sha256:%s\n", r.SourceDigest)
	fmt.Fprintf(t.writer, "Created:      %s\n", FormatTimestamp(r.CreatedAt))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
