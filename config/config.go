package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jalad-shrimali/ip-preprocess/regroup"
)

// Flag / env keys. Env vars use the PREPROCESS_ prefix with dashes as
// underscores, e.g. PREPROCESS_OUTPUT_DIR.
const (
	KeyRawData     = "raw-data-filepath"
	KeyOutputName  = "output-filename"
	KeyOutputDir   = "output-dir"
	KeyRecordWidth = "record-width"
	KeyPlaceholder = "placeholder"
	KeyXLSX        = "xlsx"
	KeyDB          = "db"
	KeyListen      = "listen"
	KeyUploadDir   = "upload-dir"
)

const envPrefix = "PREPROCESS"

// Config represents the complete application configuration
type Config struct {
	RawDataFile    string
	OutputFilename string
	OutputDir      string
	Layout         regroup.Layout
	XLSX           bool
	DBPath         string
	Server         ServerConfig
}

// ServerConfig holds upload server settings
type ServerConfig struct {
	Listen    string
	UploadDir string
}

func setDefaults(v *viper.Viper) {
	l := regroup.DefaultLayout()
	v.SetDefault(KeyOutputDir, "data")
	v.SetDefault(KeyRecordWidth, l.RecordWidth)
	v.SetDefault(KeyPlaceholder, l.Placeholder)
	v.SetDefault(KeyXLSX, false)
	v.SetDefault(KeyDB, "")
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyUploadDir, "uploads")
}

// RegisterFlags adds every config key to fs so cobra commands share them.
func RegisterFlags(fs *pflag.FlagSet) {
	l := regroup.DefaultLayout()
	fs.String(KeyRawData, "", "Name of the file containing the raw data as exported from ideal protein")
	fs.String(KeyOutputName, "", "Name of the CSV file generated as an output")
	fs.String(KeyOutputDir, "data", "Directory the CSV (and workbook) is written to")
	fs.Int(KeyRecordWidth, l.RecordWidth, "Lines per record in the raw export, including the Action cell")
	fs.String(KeyPlaceholder, l.Placeholder, "Token that marks a missing value")
	fs.Bool(KeyXLSX, false, "Also write an .xlsx workbook with report and summary sheets")
	fs.String(KeyDB, "", "SQLite file recording import history (disabled when empty)")
	fs.String(KeyListen, ":8080", "Listen address for the upload server")
	fs.String(KeyUploadDir, "uploads", "Directory uploaded raw files are stored in")
}

// Load reads .env (if present), PREPROCESS_* env vars and flags, in
// increasing precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		RawDataFile:    v.GetString(KeyRawData),
		OutputFilename: v.GetString(KeyOutputName),
		OutputDir:      v.GetString(KeyOutputDir),
		Layout: regroup.Layout{
			RecordWidth: v.GetInt(KeyRecordWidth),
			Placeholder: v.GetString(KeyPlaceholder),
		},
		XLSX:   v.GetBool(KeyXLSX),
		DBPath: v.GetString(KeyDB),
		Server: ServerConfig{
			Listen:    v.GetString(KeyListen),
			UploadDir: v.GetString(KeyUploadDir),
		},
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	return cfg, nil
}

// ValidateConvert checks the fields a one-shot conversion needs.
func (c *Config) ValidateConvert() error {
	var missing []string
	if c.RawDataFile == "" {
		missing = append(missing, "--"+KeyRawData)
	}
	if c.OutputFilename == "" {
		missing = append(missing, "--"+KeyOutputName)
	}
	if len(missing) > 0 {
		return fmt.Errorf("required flag(s) not set: %s", strings.Join(missing, ", "))
	}
	return nil
}
