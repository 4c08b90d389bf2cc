package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/runq/internal/inbox"
	"github.com/roach88/runq/internal/scheduler"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inbox string
	Once  bool
}

// RunSummary reports what a run did.
type RunSummary struct {
	Executed int64 `json:"executed"`
	Rejected int64 `json:"rejected"`
	Purged   int64 `json:"purged"`
	Pending  int   `json:"pending"`
}

// WriteText implements TextWriter.
func (r RunSummary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Executed %d command(s), %d rejected, %d purged, %d pending\n",
		r.Executed, r.Rejected, r.Purged, r.Pending)
	return err
}

// runCounter tallies scheduler events for the summary.
type runCounter struct {
	executed, rejected, purged atomic.Int64
}

func (c *runCounter) observe(ev scheduler.Event) {
	switch ev.Kind {
	case scheduler.EventExecute:
		c.executed.Add(1)
	case scheduler.EventReject:
		c.rejected.Add(1)
	case scheduler.EventPurge:
		c.purged.Add(ev.Count)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the queue and keep serving it",
		Long: `Start the scheduler on the queue database.

Pending rows left by a previous process are drained first. With --inbox the
given directory is watched: every *.cmd file dropped into it is appended one
command per line and the queue is drained again. Without --once the command
runs until interrupted.

Example:
  runq run --db ./runq.db
  runq run --db ./runq.db --inbox ./spool
  runq run --db ./runq.db --once`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inbox, "inbox", "", "spool directory to watch for *.cmd files (overrides inbox_dir)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "drain once (after consuming the inbox) and exit")

	return cmd
}

func runQueue(opts *RunOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	counter := &runCounter{}

	s, err := openSession(cmd, opts.RootOptions, f, scheduler.WithObserver(counter.observe))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			s.logger.Error("error closing database", "error", closeErr)
		}
	}()

	inboxDir := s.cfg.InboxDir
	if opts.Inbox != "" {
		inboxDir = opts.Inbox
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info("queue starting", "db", s.cfg.Database, "inbox", inboxDir, "once", opts.Once)
	if !opts.Once {
		f.VerboseLog("Queue started. Press Ctrl-C to stop.")
	}

	err = s.serve(ctx, func(ctx context.Context) error {
		var in *inbox.Inbox
		if inboxDir != "" {
			in = inbox.New(inboxDir, s.sched, inbox.WithLogger(s.logger))
		}

		if opts.Once {
			if in != nil {
				if err := os.MkdirAll(inboxDir, 0o755); err != nil {
					return fmt.Errorf("ensure inbox %s: %w", inboxDir, err)
				}
				if _, err := in.Scan(ctx); err != nil {
					return err
				}
			}
			return s.drain(ctx)
		}

		s.sched.ExecuteQueue()
		if in != nil {
			return in.Run(ctx)
		}
		<-ctx.Done()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return f.Fail(ExitFailure, CodeStore, "queue error", err)
	}

	pending, err := s.store.ScanPending(context.Background())
	if err != nil {
		return f.Fail(ExitFailure, CodeStore, "failed to read queue", err)
	}
	s.logger.Info("queue stopped gracefully")

	return f.Success(RunSummary{
		Executed: counter.executed.Load(),
		Rejected: counter.rejected.Load(),
		Purged:   counter.purged.Load(),
		Pending:  len(pending),
	})
}
