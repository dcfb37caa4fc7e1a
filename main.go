// Command preprocess converts a copy-pasted ideal protein weigh-in table,
// where every cell landed on its own line, into a regular CSV.
//
// The raw data looks like this:
//
//	Date
//	Weight
//	...
//	Action
//	2020/05/29
//	218.48 lbs
//	...
//	Edit | Delete
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/ip-preprocess/config"
	"github.com/jalad-shrimali/ip-preprocess/handlers"
	"github.com/jalad-shrimali/ip-preprocess/preprocess"
	"github.com/jalad-shrimali/ip-preprocess/store"
)

const appName = "preprocess"

func main() {
	// all logging goes to stderr so stdout can be piped
	logger := log.New(os.Stderr, appName+" ", log.LstdFlags|log.Lshortfile)

	if err := newRootCmd(logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Turn a one-cell-per-line ideal protein export into a CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.ValidateConvert(); err != nil {
				if cmd.Flags().NFlag() == 0 {
					cmd.SetOut(os.Stderr)
					_ = cmd.Help()
				}
				return err
			}
			return runConvert(cmd.Context(), cfg, logger)
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(logger), newHistoryCmd())
	return cmd
}

func newConverter(cfg *config.Config, logger *log.Logger) (*preprocess.Converter, error) {
	conv := &preprocess.Converter{
		Layout:    cfg.Layout,
		OutputDir: cfg.OutputDir,
		XLSX:      cfg.XLSX,
		Log:       logger,
	}
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		conv.Store = st
	}
	return conv, nil
}

func runConvert(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Printf("%s starting...", appName)
	logger.Printf("raw=%s output=%s dir=%s width=%d", cfg.RawDataFile, cfg.OutputFilename, cfg.OutputDir, cfg.Layout.RecordWidth)

	conv, err := newConverter(cfg, logger)
	if err != nil {
		return err
	}
	if conv.Store != nil {
		defer conv.Store.Close()
	}
	_, err = conv.Convert(ctx, cfg.RawDataFile, cfg.OutputFilename)
	return err
}

func newServeCmd(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload server (POST /upload, GET /download/<file>, GET /imports)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			conv, err := newConverter(cfg, logger)
			if err != nil {
				return err
			}
			if conv.Store != nil {
				defer conv.Store.Close()
			}

			logger.Printf("Server started on %s", cfg.Server.Listen)
			return http.ListenAndServe(cfg.Server.Listen, handlers.New(conv, cfg.Server.UploadDir, logger))
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past conversions recorded in --db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("--%s is required", config.KeyDB)
			}
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			imports, err := st.ListImports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tROWS\tDROPPED\tSOURCE\tOUTPUT")
			for _, imp := range imports {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					imp.ID, imp.CreatedAt.Format("2006-01-02 15:04:05"), imp.RowCount, imp.Leftover, imp.Source, imp.Output)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 for all)")
	return cmd
}
