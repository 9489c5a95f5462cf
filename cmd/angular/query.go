package main

import (
	"fmt"
	"strings"

	"github.com/4thel00z/angular/internal"
	v1 "github.com/4thel00z/angular/pkg/v1"
	"github.com/spf13/cobra"
)

func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find the nearest neighbors of a vector or an item",
		Args:  cobra.NoArgs,
		RunE:  runQuery,
	}

	addIndexFlags(cmd)
	cmd.Flags().String("vector", "", "Query vector, comma separated")
	cmd.Flags().String("item", "", "Query by stored item id")
	cmd.Flags().IntP("number", "n", 10, "Maximum results")
	cmd.Flags().Int("search-k", -1, "Nodes to inspect, -1 uses trees*n")
	cmd.MarkFlagsMutuallyExclusive("vector", "item")
	cmd.MarkFlagsOneRequired("vector", "item")
	return cmd
}

func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().String("index", "", "Index file")
	cmd.Flags().Bool("prefault", false, "Read the whole index into memory on load")
	_ = cmd.MarkFlagRequired("index")
}

// openIndex loads --index using the config's dimension and prefault setting.
func openIndex(cmd *cobra.Command, cfg *internal.Config) (*v1.Index, error) {
	path, _ := cmd.Flags().GetString("index")
	prefault := cfg.Index.Prefault
	if cmd.Flags().Changed("prefault") {
		prefault, _ = cmd.Flags().GetBool("prefault")
	}

	idx, err := v1.Open(path, cfg.Index.Dimension, prefault, v1.WithJobs(cfg.Index.Jobs))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	newLogger(cmd).Debug("index loaded", "path", path, "prefault", prefault)
	return idx, nil
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	n := intFlag(cmd, "number", cfg.Query.Count)
	searchK := intFlag(cmd, "search-k", cfg.Query.SearchK)
	asJSON, _ := cmd.Flags().GetBool("json")

	idx, err := openIndex(cmd, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	var res []v1.Neighbor
	if cmd.Flags().Changed("item") {
		raw, _ := cmd.Flags().GetString("item")
		id, err := parseID(raw)
		if err != nil {
			return err
		}
		res, err = idx.QueryByItem(id, n, searchK)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
	} else {
		raw, _ := cmd.Flags().GetString("vector")
		v, err := internal.ParseVector(raw)
		if err != nil {
			return err
		}
		res, err = idx.QueryByVector(v, n, searchK)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}

	if asJSON {
		return outputJSON(cmd, res)
	}
	for _, r := range res {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.6f\n", r.ID, r.Distance)
	}
	return nil
}

func NewItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item <id>",
		Short: "Print the vector stored for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			idx, err := openIndex(cmd, cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			v, err := idx.ItemVector(id)
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return outputJSON(cmd, internal.Record{ID: id, Vector: v})
			}
			parts := make([]string, len(v))
			for i, x := range v {
				parts[i] = fmt.Sprintf("%g", x)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, ","))
			return nil
		},
	}

	addIndexFlags(cmd)
	return cmd
}

func NewDistanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance <i> <j>",
		Short: "Print the angular distance between two items",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			i, err := parseID(args[0])
			if err != nil {
				return err
			}
			j, err := parseID(args[1])
			if err != nil {
				return err
			}

			idx, err := openIndex(cmd, cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			d, err := idx.Distance(i, j)
			if err != nil {
				return fmt.Errorf("distance: %w", err)
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return outputJSON(cmd, map[string]any{"i": i, "j": j, "distance": d})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", d)
			return nil
		},
	}

	addIndexFlags(cmd)
	return cmd
}

func NewInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			idx, err := openIndex(cmd, cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			items, err := idx.ItemCount()
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return outputJSON(cmd, map[string]any{
					"path":      idx.Path(),
					"dimension": idx.Dimension(),
					"items":     items,
					"state":     idx.State().String(),
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Path:      %s\n", idx.Path())
			fmt.Fprintf(w, "Dimension: %d\n", idx.Dimension())
			fmt.Fprintf(w, "Items:     %d\n", items)
			fmt.Fprintf(w, "State:     %s\n", idx.State())
			return nil
		},
	}

	addIndexFlags(cmd)
	return cmd
}
