package sqlrepl

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func renderRows(rows *sql.Rows) (string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		row := make(table.Row, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	if count > 0 {
		sb.WriteString(t.Render())
		sb.WriteString("\n")
	}
	if count == 1 {
		sb.WriteString("(1 row)")
	} else {
		fmt.Fprintf(&sb, "(%d rows)", count)
	}
	return sb.String(), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
