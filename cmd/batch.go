package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gchange/internal/pipeline"
)

var (
	batchNGList string
	batchOutDir string
	batchLayout string
)

var batchCmd = &cobra.Command{
	Use:   "batch <input>...",
	Short: "Format many directory exports concurrently",
	Long: `Formats every input with the same NG list. Each output is written to
--out-dir as <input>_整形済み.xlsx. A failed input is logged and does not
stop the others; the command fails if any input failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "format")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return eris.Wrapf(err, "batch: create %s", batchOutDir)
		}

		return processBatch(ctx, env.Pipeline, args, batchOutDir, cfg.Batch.MaxConcurrentFiles)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchNGList, "nglist", "", `NG list name (empty or "なし" skips filtering)`)
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "formatted", "directory for formatted workbooks")
	batchCmd.Flags().StringVar(&batchLayout, "layout", "auto", "input layout: auto, flat or tabular")
	rootCmd.AddCommand(batchCmd)
}

// batchOutputPath names the formatted workbook for input inside dir.
func batchOutputPath(dir, input string) string {
	return batchOutputPathN(dir, input, 1)
}

func batchOutputPathN(dir, input string, n int) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if n > 1 {
		base = fmt.Sprintf("%s_%d", base, n)
	}
	return filepath.Join(dir, base+"_整形済み.xlsx")
}

// batchOutputPaths assigns every input its own output path. Inputs that
// share a base name (a/list.xlsx, b/list.csv) get _2, _3, ... suffixes in
// argument order.
func batchOutputPaths(dir string, inputs []string) []string {
	taken := make(map[string]bool, len(inputs))
	outs := make([]string, len(inputs))
	for i, in := range inputs {
		for n := 1; ; n++ {
			out := batchOutputPathN(dir, in, n)
			key := strings.ToLower(out)
			if !taken[key] {
				taken[key] = true
				outs[i] = out
				break
			}
		}
	}
	return outs
}

// processBatch formats inputs with at most concurrency files in flight.
func processBatch(ctx context.Context, p *pipeline.Pipeline, inputs []string, outDir string, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	outs := batchOutputPaths(outDir, inputs)
	var succeeded, failed atomic.Int64
	for i, in := range inputs {
		out := outs[i]
		g.Go(func() error {
			res, err := formatFile(gCtx, p, in, out, batchNGList, batchLayout, includeExcluded(false))
			if err != nil {
				failed.Add(1)
				zap.L().Error("batch: input failed", zap.String("input", in), zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			zap.L().Info("batch: input formatted",
				zap.String("input", in),
				zap.String("output", out),
				zap.Int("kept", len(res.Kept)),
				zap.Int("excluded", len(res.Excluded)),
			)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch: complete",
		zap.Int("total", len(inputs)),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	if n := failed.Load(); n > 0 {
		return eris.Errorf("batch: %d of %d inputs failed", n, len(inputs))
	}
	return nil
}
