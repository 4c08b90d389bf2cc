package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runq/internal/plan"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Execute bool
}

// LoadResult reports a loaded plan.
type LoadResult struct {
	Plan     string `json:"plan"`
	Commands int    `json:"commands"`
	Inserted int    `json:"inserted"`
}

// WriteText implements TextWriter.
func (r LoadResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Plan %s: %d of %d command(s) appended\n", r.Plan, r.Inserted, r.Commands)
	return err
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <plan-file>",
		Short: "Append every command of a plan file",
		Long: `Append the commands listed in a YAML, JSON or CUE plan file, in order.

Each entry is either a command line ("rm /tmp/a") or a record
{name, args, priority}. Commands already pending are skipped.

Example:
  runq load ./cleanup.yaml
  runq load ./deploy.cue --execute`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return loadPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "drain the queue after loading")

	return cmd
}

func loadPlan(opts *LoadOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	p, err := plan.Load(path)
	if err != nil {
		return f.Fail(ExitCommandError, CodePlan, "failed to load plan", err)
	}
	f.VerboseLog("plan %s: %d command(s)", p.Name, len(p.Commands))

	s, err := openSession(cmd, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	var inserted int
	err = s.serve(cmd.Context(), func(ctx context.Context) error {
		var err error
		inserted, err = p.Append(ctx, s.sched)
		if err != nil {
			return err
		}
		if opts.Execute {
			return s.drain(ctx)
		}
		return nil
	})
	if err != nil {
		return f.Fail(ExitFailure, CodePlan, "plan append failed", err)
	}

	return f.Success(LoadResult{
		Plan:     p.Name,
		Commands: len(p.Commands),
		Inserted: inserted,
	})
}
