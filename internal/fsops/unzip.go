package fsops

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/runq/internal/command"
)

// ErrUnsafeEntry is returned for archive entries that would extract outside
// the target directory.
var ErrUnsafeEntry = errors.New("unzip: entry escapes target directory")

// Unzip extracts a zip archive into a directory.
//
// Arguments: [-asset] [--] <zip> <to>
//
// With -asset, <zip> is resolved relative to AssetsDir. Paths starting with
// "-" go after "--".
type Unzip struct {
	AssetsDir string
}

// Execute implements command.Command.
func (u *Unzip) Execute(ctx context.Context, name string, args []string) *command.Result {
	asset := len(args) > 0 && args[0] == "-asset"
	if asset {
		args = args[1:]
	}

	a := command.ParseArgs(args, []string{"zip", "to"}, nil)
	src, dest := a.Get("zip"), a.Get("to")
	if src == "" || dest == "" {
		return command.Failf("%s: wrong number of arguments: want [-asset] <zip> <to>", name)
	}

	if asset {
		if u.AssetsDir == "" {
			return command.Failf("%s: -asset given but no assets directory is configured", name)
		}
		src = filepath.Join(u.AssetsDir, filepath.Clean("/"+src))
	}

	if err := Extract(ctx, src, dest); err != nil {
		return command.Fail(err)
	}
	return command.Done()
}

// Extract unpacks the archive at src into dest, creating dest if needed.
func Extract(ctx context.Context, src, dest string) error {
	r, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			r.Close()
		}
		return fmt.Errorf("unzip %s: %w: %v", src, ErrUnsafeEntry, err)
	}
	if err != nil {
		return fmt.Errorf("unzip %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("unzip %s: %w", src, err)
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractFile(f, dest); err != nil {
			return fmt.Errorf("unzip %s: %w", src, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	target, err := safeJoin(dest, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return out.Close()
}

// safeJoin joins name under dir, rejecting absolute names and ".." escapes.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return target, nil
}
