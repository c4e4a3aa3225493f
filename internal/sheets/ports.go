package sheets

import (
	"context"

	"retromoney/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter publishes a month's allocation table.
	ReportWriter interface {
		ExportReport(ctx context.Context, report core.BudgetReport) error
	}
)

// Header is the first row of the report sheet.
var Header = []any{"Month", "Category", "Weight", "Allocated", "Actual", "Over budget", "Exceeds limit"}

// Rows renders report as sheet rows in category order. Amounts are written
// as fixed two-decimal strings so USER_ENTERED parses them as numbers.
func Rows(report core.BudgetReport) [][]any {
	rows := make([][]any, 0, len(report.Allocations))
	for _, v := range report.Allocations {
		rows = append(rows, []any{
			string(report.Month),
			v.Name,
			v.Percentage.StringFixed(2) + "%",
			v.Allocated.StringFixed(2),
			v.Actual.StringFixed(2),
			yesNo(v.IsOverBudget),
			yesNo(v.ExceedsLimit),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
