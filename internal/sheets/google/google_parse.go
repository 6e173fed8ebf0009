package google

import (
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

const rowDateLayout = "2006-01-02"

func formatRow(r ports.ExportedRow) []any {
	return []any{
		r.Date.Format(rowDateLayout),
		r.Payee,
		r.Category,
		r.Description,
		r.Amount.String(),
		r.ExpenseID,
		r.OwnerID,
	}
}

// parseRows converts a values matrix (as returned by Sheets API) into the
// exported rows dated inside r. Headers, cleared rows and rows whose date
// or amount do not parse are skipped.
func parseRows(values [][]interface{}, r core.DateRange) []ports.ExportedRow {
	var out []ports.ExportedRow
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 6 || safeGet(cols, 5) == "" {
			continue
		}
		date, err := time.ParseInLocation(rowDateLayout, cols[0], r.Start.Location())
		if err != nil || !r.Contains(date) {
			continue
		}
		cents, err := core.ParseDecimalToCents(cols[4])
		if err != nil {
			continue
		}
		out = append(out, ports.ExportedRow{
			Date:        date,
			Payee:       cols[1],
			Category:    cols[2],
			Description: cols[3],
			Amount:      core.Money{Cents: cents},
			ExpenseID:   cols[5],
			OwnerID:     safeGet(cols, 6),
		})
	}
	return out
}

// findRow returns the 1-based sheet row holding id in a single-column
// matrix, or 0 when absent.
func findRow(values [][]interface{}, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0
	}
	for i, raw := range values {
		if len(raw) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(raw[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
