package postgres

import (
	"fmt"
	"strings"

	"github.com/fastygo/taskpilot/repository/row"
)

// numericVersion matches the stored version texts row.Decode reads as numbers.
const numericVersion = `^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`

// storedVersion evaluates the TEXT version column as row.Decode does: numeric
// text rounds to an integer, anything else reads as 1.
func storedVersion() string {
	return fmt.Sprintf(`CASE WHEN TRIM(version) ~ '%s' THEN ROUND(CAST(TRIM(version) AS numeric)) ELSE 1 END`, numericVersion)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func columnList() string {
	return strings.Join(row.Columns, ", ")
}

// placeholders renders $from..$from+n-1.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func assignments(from int) string {
	parts := make([]string, len(row.Columns))
	for i, col := range row.Columns {
		parts[i] = fmt.Sprintf("%s = $%d", col, from+i)
	}
	return strings.Join(parts, ",\n\t\t")
}

func rowArgs(r row.Row) []interface{} {
	args := make([]interface{}, len(r))
	for i, cell := range r {
		args[i] = cell
	}
	return args
}

func scanRow(s scanner, prefix ...interface{}) (row.Row, error) {
	cells := make(row.Row, len(row.Columns))
	dest := make([]interface{}, 0, len(prefix)+len(cells))
	dest = append(dest, prefix...)
	for i := range cells {
		dest = append(dest, &cells[i])
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return cells, nil
}
