package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/runq/internal/command"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Priority int
	Execute  bool
}

// AppendResult reports one append.
type AppendResult struct {
	Command  string `json:"command"`
	Priority int    `json:"priority"`
	Inserted bool   `json:"inserted"`
}

// WriteText implements TextWriter.
func (r AppendResult) WriteText(w io.Writer) error {
	if r.Inserted {
		_, err := fmt.Fprintf(w, "Appended: %s\n", r.Command)
		return err
	}
	_, err := fmt.Fprintf(w, "Already pending: %s\n", r.Command)
	return err
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append <command> [args...]",
		Short: "Append a command to the queue",
		Long: `Append one command to the durable queue.

The words after the command's own flags form the command line, so switches
belonging to the queued command pass through untouched. An identical pending
command in the same batch is not appended twice.

Example:
  runq append rm /tmp/a /tmp/b
  runq append --priority -1 unzip -asset pack.zip ./out
  runq append --execute mv ./in ./out`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appendCommand(opts, args, cmd)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().IntVarP(&opts.Priority, "priority", "p", 0, "batch offset from the current batch (negative runs sooner)")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "drain the queue after appending")

	return cmd
}

func appendCommand(opts *AppendOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	d, err := command.Parse(strings.Join(args, " "))
	if err != nil {
		return f.Fail(ExitCommandError, CodeAppend, "invalid command line", err)
	}
	if opts.Priority != 0 {
		d = d.WithPriority(opts.Priority)
	}

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	var inserted bool
	err = s.serve(cmd.Context(), func(ctx context.Context) error {
		var err error
		inserted, err = s.sched.AppendDescriptor(d).Await(ctx)
		if err != nil {
			return err
		}
		f.VerboseLog("appended=%t command=%s", inserted, d)
		if opts.Execute {
			return s.drain(ctx)
		}
		return nil
	})
	if err != nil {
		return f.Fail(ExitFailure, CodeAppend, "append failed", err)
	}

	return f.Success(AppendResult{
		Command:  d.String(),
		Priority: d.PriorityOrZero(),
		Inserted: inserted,
	})
}
