// Package app wires the offsync components from a Config and runs them
// until the user leaves the shell or the process is signalled.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/dmitrijs2005/offsync/internal/cli"
	"github.com/dmitrijs2005/offsync/internal/config"
	"github.com/dmitrijs2005/offsync/internal/engine"
	"github.com/dmitrijs2005/offsync/internal/filex"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/netmon"
	"github.com/dmitrijs2005/offsync/internal/offline"
	"github.com/dmitrijs2005/offsync/internal/scheduler"
	"github.com/dmitrijs2005/offsync/internal/store"
	"github.com/dmitrijs2005/offsync/internal/telemetry"
	"github.com/dmitrijs2005/offsync/internal/transport"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     *store.Store
	monitor   *netmon.Monitor
	prober    netmon.Prober
	agent     *offline.Agent
	scheduler *scheduler.Scheduler
	telemetry *telemetry.Provider

	// shellGrace bounds how long Run waits for an in-flight shell command
	// after cancellation before closing the store.
	shellGrace time.Duration
}

const defaultShellGrace = 2 * time.Second

// NewApp opens the local store and builds every component. Logs go to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, logOut)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:      c.MetricsEnabled,
		OTLPEndpoint: c.OTLPEndpoint,
		OTLPInsecure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}
	st, err := store.Open(ctx, c.DatabasePath)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}

	prober, err := newProber(c)
	if err != nil {
		_ = st.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	monitor := netmon.New(logger.With("component", "netmon"))
	exec := transport.NewHTTPExecutor(c.ServerBaseURL, c.RequestTimeout, transport.WithRateLimit(c.RequestsPerSecond))

	agent := offline.New(st, monitor, exec, logger,
		engine.WithMeter(tp.Meter("offsync/engine")),
		engine.WithEventHandler(func(ev engine.Event) {
			if ev.Kind == engine.MutationAbandoned {
				logger.Warn(context.Background(), "write dropped after repeated failures",
					"table", ev.Mutation.Table, "target", ev.Mutation.Target, "local_id", ev.Mutation.LocalID)
			}
		}),
	)

	return &App{
		config:    c,
		logger:    logger,
		store:     st,
		monitor:   monitor,
		prober:    prober,
		agent:     agent,
		scheduler: scheduler.New(agent.Engine(), c.DrainInterval, c.BackoffInitial, c.BackoffMax, logger.With("component", "scheduler")),
		telemetry: tp,

		shellGrace: defaultShellGrace,
	}, nil
}

func newProber(c *config.Config) (netmon.Prober, error) {
	if c.HealthCheckGRPCAddr != "" {
		p, err := netmon.NewGRPCHealthProber(c.HealthCheckGRPCAddr, "")
		if err != nil {
			return nil, fmt.Errorf("health prober init error: %w", err)
		}
		return p, nil
	}
	if u := c.HealthURL(); u != "" {
		return netmon.NewHTTPProber(u), nil
	}
	return nil, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run starts the background components and serves the shell on in until
// it ends or a termination signal arrives, then shuts everything down.
func (app *App) Run(ctx context.Context, in io.Reader) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	app.logger.Info(ctx, "Starting offsync...", "db", app.config.DatabasePath, "server", app.config.ServerBaseURL)

	var wg conc.WaitGroup
	wg.Go(func() {
		app.monitor.Watch(ctx, app.prober, app.config.OnlineCheckInterval, app.config.ProbeTimeout)
	})
	app.agent.Start(ctx)
	wg.Go(func() { app.scheduler.Run(ctx) })

	shellDone := make(chan struct{})
	go func() {
		defer close(shellDone)
		cli.NewShell(app.agent, app.monitor, app.scheduler.Kick, app.logger).Run(ctx, in)
	}()

	select {
	case <-shellDone:
	case <-ctx.Done():
		// a blocked read on in must not delay shutdown after a signal
		if !awaitShell(shellDone, app.shellGrace) {
			app.logger.Warn(ctx, "shell still busy, closing anyway", "grace", app.shellGrace)
		}
	}

	cancelFunc()
	wg.Wait()

	if err := app.Close(context.Background()); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err)
	}
}

// awaitShell reports whether done closed within grace.
func awaitShell(done <-chan struct{}, grace time.Duration) bool {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// Close stops the engine and releases the store, the prober connection and
// the meter provider.
func (app *App) Close(ctx context.Context) error {
	app.agent.Close()

	var errs []error
	if c, ok := app.prober.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, app.store.Close())
	errs = append(errs, app.telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}

// Agent exposes the assembled agent for embedding.
func (app *App) Agent() *offline.Agent {
	return app.agent
}
