package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sokinpui/track.go/cli"
	"github.com/sokinpui/track.go/internal/ui"
	"github.com/sokinpui/track.go/track"
)

var (
	cfg    = cli.Default()
	logger = zap.NewNop()
)

// rootCmd reviews agent output in Neovim when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "track",
	Short: "Review agent edits change by change",
	Long: `track loads the edits a coding agent proposes (fenced code blocks or unified
diffs, piped on stdin or copied to the clipboard) into your editor and tracks
every difference from the file on disk. Each change can be accepted or
reverted on its own.

Run without a subcommand to review in Neovim.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Load(cfg, cmd.Flags()); err != nil {
			return err
		}
		cfg.Normalize()

		var err error
		logger, err = cfg.Logger()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	Args: cobra.NoArgs,
	RunE: runNvim,
}

var nvimCmd = &cobra.Command{
	Use:   "nvim",
	Short: "Review proposed edits in Neovim (default)",
	Long: `Opens every file the agent output touches in Neovim with the proposal as the
buffer text, and highlights each change against the file on disk.

  :TrackAccept      keep the change under the cursor
  :TrackRevert      restore the original text of the change under the cursor
  :TrackAcceptAll   keep every change in the buffer
  :TrackClear       revert every change in the buffer
  :TrackDone        end the review

Buffers are saved when the review ends unless --buffer is given.`,
	Args: cobra.NoArgs,
	RunE: runNvim,
}

var reviewCmd = &cobra.Command{
	Use:   "review <file>",
	Short: "Review proposed edits to one file in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

var diffCmd = &cobra.Command{
	Use:   "diff <baseline> <working>",
	Short: "Print the changes between two files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := track.New(cfg, logger)
		if err != nil {
			return err
		}
		return app.Diff(args[0], args[1], cmd.OutOrStdout())
	},
}

var fixDiffCmd = &cobra.Command{
	Use:   "fix-diff",
	Short: "Print the agent's diffs with hunk headers corrected against the files on disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := track.New(cfg, logger)
		if err != nil {
			return err
		}
		return app.FixDiffs(cmd.OutOrStdout())
	},
}

func init() {
	cli.BindFlags(rootCmd.PersistentFlags(), cfg)
	cli.BindNvimFlags(rootCmd.Flags(), cfg)
	cli.BindNvimFlags(nvimCmd.Flags(), cfg)
	cli.BindReviewFlags(reviewCmd.Flags(), cfg)

	rootCmd.AddCommand(nvimCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(fixDiffCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var detailed *track.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		os.Exit(1)
	}
}

func runNvim(cmd *cobra.Command, args []string) error {
	app, err := track.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	var bar *ui.ProgressBar
	app.SetProgressCallback(func(current, total int) {
		if bar == nil {
			bar = ui.NewProgressBar(total, "Opening files")
			bar.Start()
			return
		}
		bar.Set(current)
		if current == total {
			bar.Finish()
		}
	})

	summary, err := app.ReviewInNvim(cmd.Context())
	if err != nil {
		return err
	}
	ui.PrintReviewSummary(summary)
	return nil
}

func runReview(cmd *cobra.Command, args []string) error {
	app, err := track.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	summary, err := app.Review(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	ui.PrintReviewSummary(summary)
	return nil
}
