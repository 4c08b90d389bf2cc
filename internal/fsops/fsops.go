package fsops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/runq/internal/command"
)

// Rm removes each path argument, recursively. Paths that do not exist are
// skipped.
//
// Arguments: <path> [path...]
func Rm() command.Command {
	return command.Func(func(ctx context.Context, name string, args []string) *command.Result {
		for _, path := range args {
			if _, err := os.Lstat(path); os.IsNotExist(err) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				return command.Failf("remove %s: %w", path, err)
			}
		}
		return command.Done()
	})
}

// Mv moves a file or directory, creating the destination's parent directory.
// mv takes no switches, so both arguments are paths even when they start
// with "-". A leading "--" is accepted and ignored.
//
// Arguments: [--] <from> <to>
func Mv() command.Command {
	return command.Func(func(ctx context.Context, name string, args []string) *command.Result {
		if len(args) > 0 && args[0] == command.EndOfSwitches {
			args = args[1:]
		}
		if len(args) != 2 || args[0] == "" || args[1] == "" {
			return command.Failf("%s: wrong number of arguments: want <from> <to>", name)
		}
		from, to := args[0], args[1]

		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return command.Failf("move %s to %s: %w", from, to, err)
		}
		if err := os.Rename(from, to); err != nil {
			return command.Failf("move %s to %s: %w", from, to, err)
		}
		return command.Done()
	})
}

// Register adds the built-in file commands to reg, both as top-level names
// (rm, mv, unzip) and under the "fs" namespace (fs.rm, fs.mv, fs.unzip).
func Register(reg *command.Registry, assetsDir string) error {
	unzip := &Unzip{AssetsDir: assetsDir}

	leaves := []struct {
		name string
		cmd  command.Command
	}{
		{"rm", Rm()},
		{"mv", Mv()},
		{"unzip", unzip},
	}

	ns := command.NewDispatcher()
	for _, l := range leaves {
		if err := reg.Register(l.name, l.cmd); err != nil {
			return fmt.Errorf("register builtins: %w", err)
		}
		ns.Add(l.name, l.cmd)
	}

	if err := reg.Register("fs", ns); err != nil {
		return fmt.Errorf("register builtins: %w", err)
	}
	return nil
}
