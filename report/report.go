// Package report writes a regrouped table to an Excel workbook with a
// "report" sheet and a per-column "summary" sheet.
package report

import (
	"fmt"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/ip-preprocess/regroup"
)

const (
	SheetReport  = "report"
	SheetSummary = "summary"
)

var summaryHeader = []string{"Column", "Non-empty", "Numeric", "Min", "Max", "Mean", "StdDev"}

// ColumnSummary describes one column. The float fields are only
// meaningful when Numeric > 0.
type ColumnSummary struct {
	Column   string  `json:"column"`
	NonEmpty int     `json:"non_empty"`
	Numeric  int     `json:"numeric"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
}

// Summarize computes per-column counts and, for cells that parse as
// numbers, min/max/mean/stddev.
func Summarize(t regroup.Table) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(t.Columns))
	for c, name := range t.Columns {
		s := ColumnSummary{Column: name}
		var data stats.Float64Data
		for _, rec := range t.Records {
			if c >= len(rec) || rec[c] == "" {
				continue
			}
			s.NonEmpty++
			if f, err := strconv.ParseFloat(rec[c], 64); err == nil {
				data = append(data, f)
			}
		}
		s.Numeric = len(data)
		if s.Numeric > 0 {
			s.Min, _ = stats.Min(data)
			s.Max, _ = stats.Max(data)
			s.Mean, _ = stats.Mean(data)
			s.StdDev, _ = stats.StandardDeviation(data)
		}
		out = append(out, s)
	}
	return out
}

func (s ColumnSummary) cells() []string {
	row := []string{s.Column, strconv.Itoa(s.NonEmpty), strconv.Itoa(s.Numeric)}
	if s.Numeric == 0 {
		return append(row, "", "", "", "")
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return append(row, f(s.Min), f(s.Max), f(s.Mean), f(s.StdDev))
}

// Build creates the workbook in memory. Report cells are written as
// strings so values keep the exact text of the CSV.
func Build(t regroup.Table) (*excelize.File, error) {
	x := excelize.NewFile()

	add := func(name string, rows [][]string) error {
		idx, err := x.NewSheet(name)
		if err != nil {
			return fmt.Errorf("new sheet %s: %w", name, err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := x.SetCellStr(name, cell, v); err != nil {
					return fmt.Errorf("%s!%s: %w", name, cell, err)
				}
			}
		}
		if name == SheetReport {
			x.SetActiveSheet(idx)
		}
		return nil
	}

	rep := make([][]string, 0, len(t.Records)+1)
	rep = append(rep, t.Columns)
	rep = append(rep, t.Records...)

	sum := [][]string{summaryHeader}
	for _, s := range Summarize(t) {
		sum = append(sum, s.cells())
	}

	if err := add(SheetReport, rep); err != nil {
		x.Close()
		return nil, err
	}
	if err := add(SheetSummary, sum); err != nil {
		x.Close()
		return nil, err
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		x.Close()
		return nil, err
	}
	return x, nil
}

// Save builds the workbook and writes it to path.
func Save(t regroup.Table, path string) error {
	x, err := Build(t)
	if err != nil {
		return err
	}
	defer x.Close()
	if err := x.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
