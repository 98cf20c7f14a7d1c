package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gchange/internal/export"
	"github.com/sells-group/gchange/internal/fetcher"
	"github.com/sells-group/gchange/internal/pipeline"
	"github.com/sells-group/gchange/internal/reconcile"
)

var (
	formatNGList          string
	formatLayout          string
	formatOutput          string
	formatIncludeExcluded bool
)

var formatCmd = &cobra.Command{
	Use:   "format <input.xlsx|input.csv>",
	Short: "Format one directory export and drop NG-list companies",
	Long: `Reads a flat directory dump or an 入力マスター table, writes the
formatted records, and removes companies found on the selected NG list.

The output format follows the --output extension: .xlsx (default), .csv,
or .json. "-" writes JSON to stdout.

Examples:
  gchange format dump.xlsx
  gchange format dump.xlsx --nglist clientA.xlsx --output out.xlsx
  gchange format master.csv --layout tabular --output -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "format")
		if err != nil {
			return err
		}
		defer env.Close()

		out := formatOutput
		if out == "" {
			out = export.DefaultFileName
		}
		res, err := formatFile(ctx, env.Pipeline, args[0], out, formatNGList, formatLayout, includeExcluded(formatIncludeExcluded))
		if err != nil {
			return err
		}

		printSummary(os.Stderr, res, out)
		return nil
	},
}

func init() {
	formatCmd.Flags().StringVar(&formatNGList, "nglist", "", `NG list name (empty or "なし" skips filtering)`)
	formatCmd.Flags().StringVar(&formatLayout, "layout", "auto", "input layout: auto, flat or tabular")
	formatCmd.Flags().StringVarP(&formatOutput, "output", "o", "", "output path (default "+export.DefaultFileName+")")
	formatCmd.Flags().BoolVar(&formatIncludeExcluded, "include-excluded", false, "add a sheet with excluded records")
	rootCmd.AddCommand(formatCmd)
}

func includeExcluded(flag bool) bool {
	return flag || (cfg != nil && cfg.Output.IncludeExcluded)
}

// formatFile runs one input through p and writes the result to out.
func formatFile(ctx context.Context, p *pipeline.Pipeline, in, out, listName, layout string, withExcluded bool) (*pipeline.Result, error) {
	l, err := reconcile.ParseLayout(layout)
	if err != nil {
		return nil, err
	}
	wb, err := fetcher.Open(in)
	if err != nil {
		return nil, eris.Wrapf(err, "format: open %s", in)
	}

	res, err := p.Run(ctx, pipeline.Input{Source: filepath.Base(in), Workbook: wb, Layout: l}, listName)
	if err != nil {
		return nil, err
	}

	if out == "-" {
		return res, writeJSON(os.Stdout, res)
	}
	var buf bytes.Buffer
	if err := writeResult(&buf, outputFormat(out), res, withExcluded); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return nil, eris.Wrapf(err, "format: write %s", out)
	}
	return res, nil
}

// outputFormat maps an output path to xlsx, csv or json.
func outputFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	default:
		return "xlsx"
	}
}

func writeResult(w io.Writer, format string, res *pipeline.Result, withExcluded bool) error {
	switch format {
	case "csv":
		return export.WriteCSV(w, res.Kept)
	case "json":
		return writeJSON(w, res)
	case "xlsx":
		return export.WriteXLSX(w, res.Kept, res.Excluded, export.Options{IncludeExcluded: withExcluded})
	default:
		return eris.Errorf("format: unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(res), "format: encode json")
}

func printSummary(w io.Writer, res *pipeline.Result, out string) {
	list := res.NGList
	if !res.Filtered {
		list = "-"
	}
	_, _ = fmt.Fprintf(w, "%s: %d records (%s), nglist %s: kept %d, excluded %d -> %s\n",
		res.Source, res.Total, res.Layout, list, len(res.Kept), len(res.Excluded), out)
}
