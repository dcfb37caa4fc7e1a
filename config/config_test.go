package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, 8, cfg.Layout.RecordWidth)
	assert.Equal(t, "-", cfg.Layout.Placeholder)
	assert.False(t, cfg.XLSX)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PREPROCESS_OUTPUT_DIR", "from-env")
	t.Setenv("PREPROCESS_RECORD_WIDTH", "5")

	cfg, err := Load(newFlags(t, "--output-dir", "from-flag", "--raw-data-filepath", "raw.txt"))
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.OutputDir)
	assert.Equal(t, 5, cfg.Layout.RecordWidth)
	assert.Equal(t, "raw.txt", cfg.RawDataFile)
}

func TestLoadRejectsBadRecordWidth(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load(newFlags(t, "--record-width", "1"))
	assert.Error(t, err)
}

func TestValidateConvert(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateConvert()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--raw-data-filepath")
	assert.Contains(t, err.Error(), "--output-filename")

	cfg = &Config{RawDataFile: "in.txt", OutputFilename: "out.csv"}
	assert.NoError(t, cfg.ValidateConvert())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
