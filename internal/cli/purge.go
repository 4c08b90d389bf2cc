package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	CurrentBatch bool
}

// PurgeResult reports a purge.
type PurgeResult struct {
	Scope string `json:"scope"`
	Rows  int64  `json:"rows"`
}

// WriteText implements TextWriter.
func (r PurgeResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Purged %d pending row(s) from %s\n", r.Rows, r.Scope)
	return err
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove pending rows",
		Long: `Remove every pending row, or with --current-batch only the rows of the
current batch. A new process starts at batch 0.

Example:
  runq purge
  runq purge --current-batch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return purgeQueue(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.CurrentBatch, "current-batch", false, "purge only the current batch")

	return cmd
}

func purgeQueue(opts *PurgeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	result := PurgeResult{Scope: "queue"}
	err = s.serve(cmd.Context(), func(ctx context.Context) error {
		var err error
		if opts.CurrentBatch {
			result.Scope = fmt.Sprintf("batch %d", s.sched.CurrentBatch())
			result.Rows, err = s.sched.PurgeCurrentBatch(ctx).Await(ctx)
		} else {
			result.Rows, err = s.sched.PurgeQueue(ctx).Await(ctx)
		}
		return err
	})
	if err != nil {
		return f.Fail(ExitFailure, CodePurge, "purge failed", err)
	}

	return f.Success(result)
}
