package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/branchlens/internal/buildinfo"
	"github.com/thiagokokada/branchlens/internal/config"
)

func Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	cfg, err := config.Process()
	if err != nil {
		return err
	}
	root := newRootCmd(&cfg, out, errOut)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config, out, errOut io.Writer) *cobra.Command {
	var once bool
	root := &cobra.Command{
		Use:   "branchlens [paths...]",
		Short: "Decorate files with the branch of their working copy",
		Long: "branchlens prints the branch of the git working copy each file belongs to " +
			"and keeps the table current while files and branches change.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			setupLogging(errOut, cfg.Verbose)
			if len(args) == 0 {
				args = []string{"."}
			}
			return runSession(cmd.Context(), *cfg, args, once, out)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "git backend: native or cli")
	flags.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "how long the worker waits for more requests before going idle")
	flags.DurationVar(&cfg.RefreshDelay, "refresh-delay", cfg.RefreshDelay, "coalescing delay of view refreshes")
	flags.DurationVar(&cfg.WatchDelay, "watch-delay", cfg.WatchDelay, "coalescing delay of file update notifications")
	flags.BoolVar(&cfg.Watch, "watch", cfg.Watch, "watch the paths and refresh on changes")
	flags.BoolVar(&cfg.Decorations, "decorations", cfg.Decorations, "show branch decorations")
	flags.BoolVar(&cfg.Diff, "diff", cfg.Diff, "print a unified diff between renderings instead of the whole table")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable verbose logging")
	flags.BoolVar(&once, "once", false, "print the decorations once and exit")

	root.AddCommand(newVersionCmd(out))
	return root
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(out, "branchlens version %s\n", buildinfo.String())
		},
	}
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
