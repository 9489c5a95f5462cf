package main

import (
	"fmt"
	"os"
	"time"

	"github.com/4thel00z/angular/internal"
	v1 "github.com/4thel00z/angular/pkg/v1"
	"github.com/spf13/cobra"
)

func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from a vectors file",
		Long: `Build an index from a JSON Lines file with one {"id": N, "vector": [...]} per line
and save it. With --on-disk the index is built straight into the output file.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}

	cmd.Flags().StringP("input", "i", "", "Vectors file (JSON Lines)")
	cmd.Flags().StringP("out", "o", "", "Index file to write")
	cmd.Flags().Int("trees", -1, "Number of trees, -1 lets the engine choose")
	cmd.Flags().Int("jobs", -1, "Build workers, -1 uses every core")
	cmd.Flags().Bool("on-disk", false, "Build directly into the output file")
	cmd.Flags().Uint32("seed", 0, "Random seed; with --jobs 1 the same input gives the same index")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	input, _ := cmd.Flags().GetString("input")
	out, _ := cmd.Flags().GetString("out")
	onDisk, _ := cmd.Flags().GetBool("on-disk")
	trees := intFlag(cmd, "trees", cfg.Index.Trees)
	jobs := intFlag(cmd, "jobs", cfg.Index.Jobs)
	seed := cfg.Index.Seed
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetUint32("seed")
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close()

	idx, err := v1.New(cfg.Index.Dimension, v1.WithJobs(jobs), v1.WithSeed(seed))
	if err != nil {
		return err
	}
	defer idx.Close()

	if onDisk {
		if err := idx.RedirectToDisk(out); err != nil {
			return fmt.Errorf("redirect to disk: %w", err)
		}
	}

	inserted := 0
	err = internal.ReadRecords(f, func(rec internal.Record) error {
		if err := idx.InsertItem(rec.ID, rec.Vector); err != nil {
			return err
		}
		inserted++
		return nil
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}
	if inserted == 0 {
		return fmt.Errorf("no vectors in %s", input)
	}
	logger.Debug("vectors inserted", "input", input, "count", inserted)

	start := time.Now()
	if err := idx.Build(trees); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if !onDisk {
		if err := idx.Save(out); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}

	items, err := idx.ItemCount()
	if err != nil {
		return err
	}
	logger.Info("index built", "path", out, "items", items, "trees", trees, "jobs", internal.ResolveJobs(jobs), "took", time.Since(start))

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d items, dimension %d\n", out, items, cfg.Index.Dimension)
	return nil
}
