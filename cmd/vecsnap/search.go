package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSearchCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <image-id>",
		Short: "Find images similar to a stored one",
		Long: `Embed a stored image and query the vector index for its nearest neighbors.
With --session the query runs through the session orchestrator and reports its phase.`,
		Args: cobra.ExactArgs(1),
		RunE: makeSearchRunner(load),
	}

	cmd.Flags().IntP("top-k", "k", 0, "Number of neighbors (default: search.top_k)")
	cmd.Flags().Bool("session", false, "Run as an orchestrated session search")
	return cmd
}

func makeSearchRunner(load loader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id := args[0]
		topK, _ := cmd.Flags().GetInt("top-k")
		session, _ := cmd.Flags().GetBool("session")

		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.initEmbedding(cmd.Context()); err != nil {
			return err
		}

		if session {
			snap, err := a.pipeline.Session.Search(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("session search %s (%s): %w", id, snap.Phase, err)
			}
			if !wantJSON(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "# generation %d, %s\n", snap.Generation, snap.Phase)
			}
			return outputHits(cmd, snap.Hits)
		}

		hits, err := a.pipeline.Search.SearchByID(cmd.Context(), id, topK)
		if err != nil {
			return fmt.Errorf("search %s: %w", id, err)
		}
		return outputHits(cmd, hits)
	}
}
