package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/runq/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
}

// PendingView is one pending row in a status report.
type PendingView struct {
	ID      int64    `json:"id"`
	Batch   int      `json:"batch"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// StatusReport summarizes the queue.
type StatusReport struct {
	Database string        `json:"database"`
	Pending  int           `json:"pending"`
	Executed int           `json:"executed"`
	Purged   int           `json:"purged"`
	Rows     []PendingView `json:"rows"`
}

// WriteText implements TextWriter.
func (r StatusReport) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Queue %s: %d pending, %d executed, %d purged\n", r.Database, r.Pending, r.Executed, r.Purged)
	if len(r.Rows) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBATCH\tCOMMAND")
	for _, row := range r.Rows {
		line := row.Command
		if len(row.Args) > 0 {
			line += " " + strings.Join(row.Args, " ")
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\n", row.ID, row.Batch, line)
	}
	if r.Pending > len(r.Rows) {
		fmt.Fprintf(tw, "...\t\t%d more\n", r.Pending-len(r.Rows))
	}
	return tw.Flush()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and pending rows",
		Long: `Show how many rows are pending, executed and purged, and list the pending
rows in execution order. Executed and purged rows are only kept with
--keep-executed.

Example:
  runq status --db ./runq.db
  runq status --limit 0 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum pending rows to list (0 lists all)")

	return cmd
}

func showStatus(opts *StatusOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return f.Fail(ExitFailure, CodeStore, "failed to count rows", err)
	}
	pending, err := s.store.ScanPending(ctx)
	if err != nil {
		return f.Fail(ExitFailure, CodeStore, "failed to read pending rows", err)
	}

	report := StatusReport{
		Database: s.cfg.Database,
		Pending:  counts[store.StatusPending],
		Executed: counts[store.StatusExecuted],
		Purged:   counts[store.StatusPurged],
		Rows:     make([]PendingView, 0, len(pending)),
	}
	for i, rec := range pending {
		if opts.Limit > 0 && i >= opts.Limit {
			break
		}
		report.Rows = append(report.Rows, PendingView{
			ID:      rec.ID,
			Batch:   rec.Batch,
			Command: rec.Command,
			Args:    rec.Args,
		})
	}

	return f.Success(report)
}
