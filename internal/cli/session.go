package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/runq/internal/command"
	"github.com/roach88/runq/internal/config"
	"github.com/roach88/runq/internal/fsops"
	"github.com/roach88/runq/internal/scheduler"
	"github.com/roach88/runq/internal/store"
	"github.com/roach88/runq/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// session is the queue opened by one CLI invocation: resolved config, logger,
// tracer provider, store and scheduler.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	tp     *telemetry.Provider
	store  *store.Store
	sched  *scheduler.Scheduler
}

// loadConfig resolves defaults, the config file, RUNQ_* environment and then
// the global flags that were given explicitly.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if cmd.Flags().Changed("keep-executed") {
		cfg.KeepExecuted = opts.KeepExecuted
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by cfg, writing to w.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openSession opens the configured queue. Failures are reported through f
// and returned as ExitErrors.
func openSession(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter, extra ...scheduler.Option) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "invalid configuration", err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	tp, err := telemetry.Setup(cmd.Context(), cfg.OTelEndpoint, Version)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, "failed to set up tracing", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, f.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}

	reg := command.NewRegistry()
	if err := fsops.Register(reg, cfg.AssetsDir); err != nil {
		_ = st.Close()
		_ = tp.Shutdown(context.Background())
		return nil, f.Fail(ExitCommandError, CodeConfig, "failed to register commands", err)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithDeleteExecuted(!cfg.KeepExecuted),
		scheduler.WithLogger(logger),
		scheduler.WithTracerProvider(tp),
		scheduler.WithIdlePoll(time.Duration(cfg.IdlePoll)),
	}
	schedOpts = append(schedOpts, extra...)

	return &session{
		cfg:    cfg,
		logger: logger,
		tp:     tp,
		store:  st,
		sched:  scheduler.New(st, reg, schedOpts...),
	}, nil
}

// serve runs the scheduler worker alongside fn. When fn returns the worker
// finishes the tasks already submitted and stops.
func (s *session) serve(ctx context.Context, fn func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.sched.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer s.sched.Stop()
		return fn(gctx)
	})
	return g.Wait()
}

// drain starts a drain and waits for the queue to go idle.
func (s *session) drain(ctx context.Context) error {
	if !s.sched.ExecuteQueue() {
		return errors.New("scheduler stopped")
	}
	if err := s.sched.WaitIdle(ctx); err != nil {
		return fmt.Errorf("wait for idle queue: %w", err)
	}
	return nil
}

// Close releases the store and flushes spans.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.store.Close()
	if shutdownErr := s.tp.Shutdown(ctx); shutdownErr != nil {
		s.logger.Error("tracer shutdown", "error", shutdownErr)
	}
	return err
}
