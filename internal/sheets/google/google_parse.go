package google

import (
	"fmt"
	"strings"

	"finbot/internal/core"
)

// Columns is the sheet header row, in column order.
var Columns = []string{"ID", "Date", "Description", "Amount", "Category", "Type", "Status", "Person", "Location"}

// rowsToRecords turns a values matrix whose first row is the header into
// generic records keyed by header name.
func rowsToRecords(values [][]any) []map[string]any {
	if len(values) < 2 {
		return nil
	}
	headers := toStrings(values[0])
	out := make([]map[string]any, 0, len(values)-1)
	for _, row := range values[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(map[string]any, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			rec[h] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

func txToRow(tx core.Transaction) []any {
	return []any{
		tx.ID.String(),
		tx.Date.String(),
		tx.Description,
		tx.Amount,
		tx.Category,
		string(tx.Type),
		string(tx.Status),
		tx.Person,
		tx.Location,
	}
}

// findRow returns the zero-based row index holding id, skipping the header.
func findRow(values [][]any, id core.ID) int {
	if len(values) == 0 {
		return -1
	}
	col := indexOf(toStrings(values[0]), "ID")
	if col < 0 {
		col = 0
	}
	for i := 1; i < len(values); i++ {
		row := values[i]
		if col < len(row) && core.NormalizeID(row[col]).Equal(id) {
			return i
		}
	}
	return -1
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
