// Package regroup rebuilds table rows from a copy-pasted web table where
// every cell ended up on its own line.
package regroup

import (
	"fmt"
	"strings"
)

/* ──────────── layout ──────────── */

// Layout describes the shape of one flattened record.
//
// RecordWidth is the number of lines consumed per row, including the
// trailing action cell ("Edit | Delete") that is never emitted.
type Layout struct {
	RecordWidth int
	Placeholder string
}

// DefaultLayout matches the ideal protein weigh-in table: 7 data columns
// followed by an "Action" column, "-" for missing values.
func DefaultLayout() Layout { return Layout{RecordWidth: 8, Placeholder: "-"} }

// Fields is the number of data columns per row.
func (l Layout) Fields() int { return l.RecordWidth - 1 }

func (l Layout) Validate() error {
	if l.RecordWidth < 2 {
		return fmt.Errorf("record width must be at least 2, got %d", l.RecordWidth)
	}
	return nil
}

/* ──────────── table ──────────── */

// Table is the regrouped result. Leftover counts the trailing cells that
// never completed a record; they are not part of Records.
type Table struct {
	Columns  []string
	Records  [][]string
	Leftover int
}

// Header returns the column names joined with commas.
func (t Table) Header() string { return strings.Join(t.Columns, ",") }

// Rows returns every record joined with commas, in input order.
func (t Table) Rows() []string {
	out := make([]string, 0, len(t.Records))
	for _, rec := range t.Records {
		out = append(out, strings.Join(rec, ","))
	}
	return out
}

/* ──────────── transform ──────────── */

// NormalizeCell keeps the text before the first space ("218.48 lbs" ->
// "218.48") and maps the placeholder to an empty value.
func NormalizeCell(value, placeholder string) string {
	v, _, _ := strings.Cut(value, " ")
	if v == placeholder {
		return ""
	}
	return v
}

// Regroup turns the flattened line stream into a Table. The first
// RecordWidth lines are the header block; only the first RecordWidth-1 of
// them are column names. A trailing partial record is dropped.
func Regroup(lines []string, l Layout) Table {
	t := Table{Columns: head(lines, l.Fields())}
	if l.RecordWidth < 1 || len(lines) <= l.RecordWidth {
		return t
	}

	row := make([]string, 0, l.Fields())
	for i, line := range lines[l.RecordWidth:] {
		if (i+1)%l.RecordWidth != 0 {
			row = append(row, NormalizeCell(line, l.Placeholder))
			continue
		}
		// action cell closes the record
		t.Records = append(t.Records, row)
		row = make([]string, 0, l.Fields())
	}
	t.Leftover = len(row)
	return t
}

func head(lines []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(lines) {
		n = len(lines)
	}
	return append([]string(nil), lines[:n]...)
}
