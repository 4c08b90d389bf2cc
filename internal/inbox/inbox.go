package inbox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/future"
)

// Ext is the suffix of spool files the inbox consumes.
const Ext = ".cmd"

// Sink receives command lines read from spool files. Implemented by
// *scheduler.Scheduler.
type Sink interface {
	AppendLine(line string) *future.Future[bool]
	ExecuteQueue() bool
}

// Inbox watches a spool directory and feeds each *.cmd file to a Sink.
//
// Writers should create files under another name and rename them into place
// so a file is never read half-written.
type Inbox struct {
	dir    string
	sink   Sink
	logger *slog.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the inbox logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// New creates an Inbox over dir.
func New(dir string, sink Sink, opts ...Option) *Inbox {
	in := &Inbox{
		dir:    dir,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Run watches the directory until ctx is cancelled. Files already present
// when Run starts are consumed first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("ensure inbox %s: %w", in.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}
	in.logger.Info("inbox watching", "dir", in.dir)

	if _, err := in.Scan(ctx); err != nil && ctx.Err() == nil {
		in.logger.Error("initial inbox scan", "dir", in.dir, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			in.logger.Debug("inbox event", "op", event.Op.String(), "file", event.Name)
			if _, err := in.Consume(ctx, event.Name); err != nil {
				in.logger.Error("consume spool file", "file", event.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("fsnotify error", "error", err)
		}
	}
}

// Scan consumes every spool file currently in the directory, in name order,
// and returns the number of lines appended.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("scan inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSpoolFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n, err := in.Consume(ctx, filepath.Join(in.dir, name))
		total += n
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		if err != nil {
			in.logger.Error("consume spool file", "file", name, "error", err)
			continue
		}
	}
	return total, nil
}

// Consume appends each command line of path, removes the file and triggers
// the queue. Blank lines and lines starting with # are ignored. A file that
// has already been consumed is not an error.
//
// Malformed lines are logged and skipped. Any other append failure, such as
// a cancelled ctx or a stopped scheduler, stops the file: the lines not yet
// appended are written back so the next scan resumes there.
func (in *Inbox) Consume(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	lines, err := commandLines(data)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	appended := 0
	for i, line := range lines {
		ok, err := in.sink.AppendLine(line).Await(ctx)
		if err != nil && command.IsMalformed(err) {
			in.logger.Warn("skipping spool line", "file", path, "line", i+1, "error", err)
			continue
		}
		if err != nil {
			// An untouched file is left as is, so the watcher sees no event.
			if i > 0 {
				if werr := rewrite(path, lines[i:]); werr != nil {
					in.logger.Error("keep unconsumed spool lines", "file", path, "error", werr)
				}
			}
			in.logger.Warn("spool file interrupted", "file", filepath.Base(path), "appended", appended, "remaining", len(lines)-i)
			return appended, fmt.Errorf("append %s line %d: %w", path, i+1, err)
		}
		if ok {
			appended++
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return appended, fmt.Errorf("remove %s: %w", path, err)
	}

	in.logger.Info("spool file consumed", "file", filepath.Base(path), "lines", len(lines), "appended", appended)
	if appended > 0 {
		in.sink.ExecuteQueue()
	}
	return appended, nil
}

// rewrite replaces path with lines, through a hidden temp file so a watcher
// never sees it half-written.
func rewrite(path string, lines []string) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func isSpoolFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Ext) && !strings.HasPrefix(base, ".")
}

// maxLineSize bounds one spool line.
const maxLineSize = 1 << 20

func commandLines(data []byte) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", len(lines)+1, err)
	}
	return lines, nil
}
