package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	tablestore "muxmonitor"
	"muxmonitor/internal/classify"
	"muxmonitor/internal/config"
	"muxmonitor/internal/export"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/records"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

func NewVSWRCommand() *cobra.Command {
	var forward, reflected float64
	cmd := &cobra.Command{
		Use:   "vswr",
		Short: "Compute VSWR from forward and reflected power",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := classify.VSWR(forward, reflected)
			if err != nil {
				return err
			}
			if classify.IsInfinite(v) {
				fmt.Fprintln(cmd.OutOrStdout(), "VSWR: infinite (reflected power >= forward power)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VSWR: %.2f\n", v)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&forward, "forward", "f", 0, "forward power (W)")
	cmd.Flags().Float64VarP(&reflected, "reflected", "r", 0, "reflected power (W)")
	return cmd
}

func loadRules(cmd *cobra.Command) (*rules.Bundle, error) {
	path, _ := cmd.Flags().GetString("rules")
	return rules.LoadOrDefault(path)
}

// parseReadings accepts name=value arguments, e.g. vswr=1.3 power_output=10500.
func parseReadings(args []string) ([]classify.Reading, error) {
	readings := make([]classify.Reading, 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("reading %q must be name=value", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", arg, err)
		}
		readings = append(readings, classify.Reading{Name: strings.TrimSpace(name), Value: v})
	}
	return readings, nil
}

func NewClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify name=value...",
		Short: "Classify readings against the rule tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadRules(cmd)
			if err != nil {
				return err
			}
			readings, err := parseReadings(args)
			if err != nil {
				return err
			}
			results := classify.New(bundle, newLogger()).ClassifyAll(readings)
			writeResults(cmd.OutOrStdout(), results, bundle.Fallback.Status)
			return nil
		},
	}
}

func writeResults(w io.Writer, results []classify.Result, fallback string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tVALUE\tSTATUS\tEXPLANATION\tRECOMMENDATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Label, records.FormatNumber(r.Value), r.Status.Display(fallback), r.Explanation, r.Recommendation)
	}
	_ = tw.Flush()
}

func NewRulesCommand() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule tables",
	}
	rulesCmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a rule tables file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("rules")
			if len(args) == 1 {
				path = args[0]
			}
			bundle, err := rules.LoadOrDefault(path)
			if err != nil {
				var verr *rules.ValidationError
				if errors.As(err, &verr) {
					for _, d := range verr.Details {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", d.Field, d.Problem)
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: version %s, %d parameters, %d checklist items, fingerprint %s\n",
				bundle.Version, len(bundle.Parameters), len(bundle.Checklist), bundle.Fingerprint())
			for _, p := range bundle.Parameters {
				for _, gap := range rules.Gaps(p) {
					fmt.Fprintf(cmd.OutOrStdout(), "note: %s has no rule for (%g, %g)\n", p.Name, gap[0], gap[1])
				}
			}
			return nil
		},
	})
	return rulesCmd
}

func openService(cmd *cobra.Command) (*monitoring.Service, tablestore.TableStore, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := loadRules(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := tablestore.NewStore(cfg.TableStore())
	if err != nil {
		return nil, nil, err
	}
	svc := monitoring.NewService(monitoring.Deps{Store: store, Rules: bundle, Logger: newLogger()}, cfg.ServiceOptions())
	return svc, store, nil
}

func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			store, err := tablestore.NewStore(cfg.TableStore())
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TableStore().CallTimeout())
			defer cancel()
			names, err := store.ListTables(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func NewExportCommand() *cobra.Command {
	var kind, format, from, to, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the metering or checklist table to xlsx or pdf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != export.FormatXLSX && format != export.FormatPDF {
				return fmt.Errorf("format must be xlsx or pdf")
			}
			svc, store, err := openService(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			schema, err := svc.Schema(monitoring.Kind(kind))
			if err != nil {
				return err
			}
			table, err := svc.LoadTable(cmd.Context(), monitoring.Kind(kind))
			if err != nil {
				return err
			}
			filename := export.ChecklistFilename(format)
			title := "Catatan Harian MUX TVRI"
			if kind == string(monitoring.KindMetering) || from != "" || to != "" {
				start, end, err := exportRange(from, to)
				if err != nil {
					return err
				}
				if table, err = export.FilterDateRange(table, schema, start, end); err != nil {
					return err
				}
				if kind == string(monitoring.KindMetering) {
					records.SortByTime(table.Rows, records.MeteringTime, false)
					filename = export.MeteringFilename(start, end, format)
					title = fmt.Sprintf("Laporan Metering %s s/d %s", start.Format(records.DateLayout), end.Format(records.DateLayout))
				}
			}
			var data []byte
			if format == export.FormatPDF {
				data, err = export.PDF(export.Document{Title: title, Table: table, Schema: schema})
			} else {
				data, err = export.XLSX(table, schema)
			}
			if err != nil {
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows, %s)\n", out, len(table.Rows), humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(monitoring.KindMetering), "table kind: metering or checklist")
	cmd.Flags().StringVar(&format, "format", export.FormatXLSX, "xlsx or pdf")
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD); defaults to 7 days before --to")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; derived from the range when empty")
	return cmd
}

func exportRange(from, to string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if to != "" {
		t, err := records.ParseDate(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.AddDate(0, 0, -7)
	if from != "" {
		t, err := records.ParseDate(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}

func NewMigrateCommand() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply findings log migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			store, err := storage.NewStore(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer store.Close()
			return storage.Migrate(cmd.Context(), store.Pool, newLogger())
		},
	}
	cmd.Flags().StringVar(&dsn, "database-url", "", "findings PostgreSQL connection string")
	return cmd
}
