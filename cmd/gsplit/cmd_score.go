package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"split-the-g/internal/scoring"
	"split-the-g/internal/service"
	"split-the-g/pkg/models"
)

type scoreOptions struct {
	save     bool
	username string
	pubName  string
	asJSON   bool
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score <image>",
		Short: "Score a photo of a poured pint",
		Long: `Run the precheck, the inference workflow and the scorer on one photo.

Nothing is stored unless --save is given, in which case the derived images are
uploaded and the split is added to the leaderboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the result and its images")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Name shown on the leaderboard (with --save)")
	cmd.Flags().StringVarP(&opts.pubName, "pub", "p", "", "Where the pint was poured (with --save)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func runScore(cmd *cobra.Command, root *rootOptions, opts *scoreOptions, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	c, err := bootstrap(ctx, root)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	svc := c.Service()

	if !opts.save {
		result, err := svc.Score(ctx, image)
		if err != nil {
			return err
		}
		if opts.asJSON {
			return writeJSON(out, result)
		}
		printResult(out, result)
		return nil
	}

	split, err := svc.Submit(ctx, service.SubmitRequest{
		Image:    image,
		Username: opts.username,
		PubName:  opts.pubName,
	})
	if err != nil {
		return err
	}
	card, err := svc.Result(ctx, split.ID)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return writeJSON(out, card)
	}

	printCard(out, card)
	return nil
}

func printResult(out io.Writer, r *scoring.Result) {
	fmt.Fprintf(out, "Score:    %.2f / 5\n", r.Score)
	fmt.Fprintf(out, "Grade:    %s\n", r.Grade)
	fmt.Fprintf(out, "Verdict:  %s (offset y=%+.3f x=%+.3f)\n", r.Verdict, r.OffsetY, r.OffsetX)
}

func printCard(out io.Writer, card *models.ResultCard) {
	printResult(out, &scoring.Result{
		Score:   card.Split.Score,
		Grade:   card.Split.Grade,
		Verdict: card.Split.Verdict,
		OffsetY: card.Split.OffsetY,
		OffsetX: card.Split.OffsetX,
	})
	fmt.Fprintf(out, "Rank:     %d of %d\n", card.Rank, card.Total)
	fmt.Fprintf(out, "Share:    %s\n", card.ShareURL)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
