package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(root *rootOptions) *cobra.Command {
	var (
		period string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the best splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			c, err := bootstrap(ctx, root)
			if err != nil {
				return err
			}
			defer c.Close()

			board, err := c.Service().Leaderboard(ctx, period, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, board)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tSCORE\tGRADE\tNAME\tPUB\tPOURED")
			for _, e := range board.Entries {
				fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\t%s\t%s\n",
					e.Rank, e.Split.Score, e.Split.Grade, e.Split.Username, e.Split.PubName,
					e.Split.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&period, "period", "all", "Time window: all, week or day")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries (1-100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the leaderboard as JSON")
	return cmd
}
