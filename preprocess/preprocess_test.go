package preprocess

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/ip-preprocess/regroup"
	"github.com/jalad-shrimali/ip-preprocess/store"
)

const rawExport = `Date
Weight
BMI
Body Fat
Lean Mass
Muscle Percentage
Water Percentage
Action
2020/05/29
218.48 lbs
33.1
31.9 %
148.78 lbs
37.3 %
49.7 %
Edit | Delete
2020/06/05
214.48 lbs
32.5
-
-
-
-
Edit | Delete
2020/06/12
216.0 lbs
`

const wantCSV = `Date,Weight,BMI,Body Fat,Lean Mass,Muscle Percentage,Water Percentage
2020/05/29,218.48,33.1,31.9,148.78,37.3,49.7
2020/06/05,214.48,32.5,,,,
`

func writeRaw(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadLinesTrims(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("  Date \r\nWeight\n\n218.48 lbs\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Weight", "", "218.48 lbs"}, lines)

	lines, err = ReadLines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestConvertWritesCSV(t *testing.T) {
	var logs bytes.Buffer
	out := filepath.Join(t.TempDir(), "data")
	c := &Converter{
		Layout:    regroup.DefaultLayout(),
		OutputDir: out,
		Log:       log.New(&logs, "", 0),
	}

	res, err := c.Convert(context.Background(), writeRaw(t, rawExport), "weighins.csv")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "weighins.csv"), res.CSVPath)
	got, err := os.ReadFile(res.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, wantCSV, string(got))
	assert.Equal(t, 2, res.Table.Leftover)
	assert.Empty(t, res.XLSXPath)

	assert.Contains(t, logs.String(), "there are 26 lines")
	assert.Contains(t, logs.String(), "dropping 2 trailing cells")
	assert.Contains(t, logs.String(), "going to write 2 lines")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestConvertIsRepeatable(t *testing.T) {
	c := &Converter{Layout: regroup.DefaultLayout(), OutputDir: t.TempDir()}
	raw := writeRaw(t, rawExport)

	a, err := c.Convert(context.Background(), raw, "a.csv")
	require.NoError(t, err)
	b, err := c.Convert(context.Background(), raw, "b.csv")
	require.NoError(t, err)

	ab, _ := os.ReadFile(a.CSVPath)
	bb, _ := os.ReadFile(b.CSVPath)
	assert.Equal(t, ab, bb)
}

func TestConvertEmptyInput(t *testing.T) {
	c := &Converter{Layout: regroup.DefaultLayout(), OutputDir: t.TempDir()}

	res, err := c.Convert(context.Background(), writeRaw(t, ""), "empty.csv")
	require.NoError(t, err)

	got, err := os.ReadFile(res.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(got))
}

func TestConvertMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data")
	c := &Converter{Layout: regroup.DefaultLayout(), OutputDir: out}

	_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "x.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing is written when input is missing")
}

func TestConvertUnwritableOutput(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	c := &Converter{Layout: regroup.DefaultLayout(), OutputDir: filepath.Join(blocker, "data")}

	_, err := c.Convert(context.Background(), writeRaw(t, rawExport), "x.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))
}

func TestConvertRejectsBadLayout(t *testing.T) {
	c := &Converter{Layout: regroup.Layout{RecordWidth: 1}, OutputDir: t.TempDir()}

	_, err := c.Convert(context.Background(), writeRaw(t, rawExport), "x.csv")
	assert.Error(t, err)
}

func TestConvertWithWorkbookAndHistory(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer st.Close()

	c := &Converter{
		Layout:    regroup.DefaultLayout(),
		OutputDir: filepath.Join(dir, "data"),
		XLSX:      true,
		Store:     st,
	}
	raw := writeRaw(t, rawExport)
	res, err := c.Convert(context.Background(), raw, "weighins.csv")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "weighins.xlsx"), res.XLSXPath)
	f, err := excelize.OpenFile(res.XLSXPath)
	require.NoError(t, err)
	rows, err := f.GetRows("report")
	f.Close()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.NotEmpty(t, res.ImportID)
	imps, err := st.ListImports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, raw, imps[0].Source)
	assert.Equal(t, 2, imps[0].RowCount)
	assert.Equal(t, 2, imps[0].Leftover)

	lines, err := st.Rows(context.Background(), res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, res.Table.Rows(), lines)
}
