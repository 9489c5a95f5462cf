package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/4thel00z/angular/internal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer queries from stdin, reloading when the index changes",
		Long: `Read one comma separated vector per line from stdin and print its nearest
neighbors. The index file is watched and reloaded when it is rewritten.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	addIndexFlags(cmd)
	cmd.Flags().IntP("number", "n", 10, "Maximum results per query")
	cmd.Flags().Int("search-k", -1, "Nodes to inspect, -1 uses trees*n")
	cmd.Flags().Duration("debounce", 0, "Debounce window for index file changes")
	return cmd
}

type serveOptions struct {
	count   int
	searchK int
	asJSON  bool
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	path, _ := cmd.Flags().GetString("index")
	prefault := cfg.Index.Prefault
	if cmd.Flags().Changed("prefault") {
		prefault, _ = cmd.Flags().GetBool("prefault")
	}
	debounce := cfg.Serve.Debounce
	if cmd.Flags().Changed("debounce") {
		debounce, _ = cmd.Flags().GetDuration("debounce")
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	opts := serveOptions{
		count:   intFlag(cmd, "number", cfg.Query.Count),
		searchK: intFlag(cmd, "search-k", cfg.Query.SearchK),
		asJSON:  asJSON,
	}

	r, err := internal.NewReloader(internal.ReloaderConfig{
		Path:      path,
		Dimension: cfg.Index.Dimension,
		Prefault:  prefault,
		Options:   cfg.IndexOptions(),
		Debounce:  debounce,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer r.Close()

	logger.Info("serving", "path", path, "dimension", cfg.Index.Dimension)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return serveQueries(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), r, opts, logger)
	})
	return g.Wait()
}

// serveQueries answers one query per input line until EOF. Bad lines are
// reported and skipped.
func serveQueries(ctx context.Context, in io.Reader, out io.Writer, r *internal.Reloader, opts serveOptions, logger *slog.Logger) error {
	sc := bufio.NewScanner(in)
	enc := json.NewEncoder(out)

	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		v, err := internal.ParseVector(line)
		if err == nil {
			var res []internal.Neighbor
			res, err = r.Query(v, opts.count, opts.searchK)
			if err == nil {
				if werr := writeNeighbors(out, enc, res, opts.asJSON); werr != nil {
					return werr
				}
				continue
			}
		}

		logger.Warn("query failed", "input", line, "error", err)
		if opts.asJSON {
			if werr := enc.Encode(map[string]string{"error": err.Error()}); werr != nil {
				return werr
			}
		} else {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("read queries: %w", err)
	}
	return nil
}

func writeNeighbors(out io.Writer, enc *json.Encoder, res []internal.Neighbor, asJSON bool) error {
	if asJSON {
		if res == nil {
			res = []internal.Neighbor{}
		}
		return enc.Encode(res)
	}

	parts := make([]string, len(res))
	for i, n := range res {
		parts[i] = fmt.Sprintf("%d:%.6f", n.ID, n.Distance)
	}
	_, err := fmt.Fprintln(out, strings.Join(parts, " "))
	return err
}
