package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"split-the-g/internal/detection"
	"split-the-g/internal/service"
)

type watchOptions struct {
	interval  time.Duration
	maxFrames int
	save      bool
	username  string
	pubName   string
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <snapshot-url>",
		Short: "Poll a camera snapshot URL and score the pint once it is in frame",
		Long: `Fetch a still from the snapshot URL on every tick and ask the detector
whether a glass with its G is in view. When a majority of the recent frames
agree, the frame that completed the vote is scored.

The vote window, minimum votes and confidence floor come from DETECT_WINDOW,
DETECT_MIN_VOTES and DETECT_MIN_CONFIDENCE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 500*time.Millisecond, "Time between frames")
	cmd.Flags().IntVar(&opts.maxFrames, "max-frames", 120, "Give up after this many frames (0 for no limit)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the captured result and its images")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Name shown on the leaderboard (with --save)")
	cmd.Flags().StringVarP(&opts.pubName, "pub", "p", "", "Where the pint was poured (with --save)")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *watchOptions, snapshotURL string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	c, err := bootstrap(ctx, root)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := c.Config()
	fetcher := c.Fetcher()
	source := detection.FrameSourceFunc(func(ctx context.Context) ([]byte, error) {
		return fetcher.FetchBytes(ctx, snapshotURL)
	})

	poller := detection.NewPoller(detection.PollerConfig{
		Interval:      opts.interval,
		Window:        cfg.Detect.Window,
		MinVotes:      cfg.Detect.MinVotes,
		MinConfidence: cfg.Detect.MinConfidence,
		MaxFrames:     opts.maxFrames,
	}, source, c.Inference())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s ...\n", snapshotURL)

	frame, err := poller.Run(ctx)
	if err != nil {
		if errors.Is(err, detection.ErrNoCapture) {
			return fmt.Errorf("no glass in view after %d frames", opts.maxFrames)
		}
		return err
	}
	fmt.Fprintln(out, "Captured.")

	svc := c.Service()
	if !opts.save {
		result, err := svc.Score(ctx, frame)
		if err != nil {
			return err
		}
		printResult(out, result)
		return nil
	}

	split, err := svc.Submit(ctx, service.SubmitRequest{Image: frame, Username: opts.username, PubName: opts.pubName})
	if err != nil {
		return err
	}
	card, err := svc.Result(ctx, split.ID)
	if err != nil {
		return err
	}
	printCard(out, card)
	return nil
}
