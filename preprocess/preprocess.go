// Package preprocess reads a raw ideal protein export, regroups it and
// writes the CSV (plus optional workbook and history entry).
package preprocess

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jalad-shrimali/ip-preprocess/regroup"
	"github.com/jalad-shrimali/ip-preprocess/report"
	"github.com/jalad-shrimali/ip-preprocess/store"
)

var (
	// ErrInput marks a missing or unreadable raw export.
	ErrInput = errors.New("input")
	// ErrOutput marks a failure creating the output dir, CSV, workbook or history entry.
	ErrOutput = errors.New("output")
)

/* ──────────── reading ──────────── */

// ReadLines returns every line of r with surrounding whitespace trimmed.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func ReadLinesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer f.Close()
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInput, path, err)
	}
	return lines, nil
}

/* ──────────── writing ──────────── */

// WriteCSV writes the header and rows of t to dir/name, one per line with
// a trailing newline and no quoting. The file is written to a temp name
// and renamed, so a failure never leaves a half-written CSV behind.
func WriteCSV(dir, name string, t regroup.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrOutput, err)
	}
	dst := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOutput, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	fmt.Fprintf(w, "%s\n", t.Header())
	for _, row := range t.Rows() {
		fmt.Fprintf(w, "%s\n", row)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write %s: %w", ErrOutput, dst, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %w", ErrOutput, dst, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return dst, nil
}

/* ──────────── conversion ──────────── */

// Converter runs one raw export through regroup and the writers. Store and
// Log are optional.
type Converter struct {
	Layout    regroup.Layout
	OutputDir string
	XLSX      bool
	Store     *store.Store
	Log       *log.Logger
}

type Result struct {
	CSVPath  string
	XLSXPath string
	ImportID string
	Table    regroup.Table
}

func (c *Converter) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log.Printf(format, args...)
	}
}

// Convert reads inputPath, regroups it and writes OutputDir/outputName.
func (c *Converter) Convert(ctx context.Context, inputPath, outputName string) (Result, error) {
	var res Result
	if err := c.Layout.Validate(); err != nil {
		return res, err
	}

	lines, err := ReadLinesFile(inputPath)
	if err != nil {
		return res, err
	}
	c.logf("there are %d lines in the file %s", len(lines), inputPath)

	res.Table = regroup.Regroup(lines, c.Layout)
	c.logf("header line=%q", res.Table.Header())
	if res.Table.Leftover > 0 {
		c.logf("dropping %d trailing cells that do not form a complete record", res.Table.Leftover)
	}

	c.logf("going to write %d lines to %s", len(res.Table.Records), filepath.Join(c.OutputDir, outputName))
	if res.CSVPath, err = WriteCSV(c.OutputDir, outputName, res.Table); err != nil {
		return res, err
	}

	if c.XLSX {
		res.XLSXPath = strings.TrimSuffix(res.CSVPath, filepath.Ext(res.CSVPath)) + ".xlsx"
		if err := report.Save(res.Table, res.XLSXPath); err != nil {
			return res, fmt.Errorf("%w: %w", ErrOutput, err)
		}
		c.logf("workbook written to %s", res.XLSXPath)
	}

	if c.Store != nil {
		imp, err := c.Store.SaveImport(ctx, store.Import{
			Source:   inputPath,
			Output:   res.CSVPath,
			Header:   res.Table.Header(),
			Leftover: res.Table.Leftover,
		}, res.Table.Rows())
		if err != nil {
			return res, fmt.Errorf("%w: %w", ErrOutput, err)
		}
		res.ImportID = imp.ID
		c.logf("recorded import %s", imp.ID)
	}

	c.logf("All done")
	return res, nil
}
