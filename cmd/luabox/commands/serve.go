package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/luabox/internal/app/check"
	apprun "github.com/slok/luabox/internal/app/run"
	"github.com/slok/luabox/internal/httpapi"
	"github.com/slok/luabox/internal/metrics"
)

// ServeCommand serves the sandbox over HTTP.
type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr     string
	maxSourceBytes int64
	drainTimeout   time.Duration
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the sandbox run and check API over HTTP.")
	c.Cmd.Flag("listen", "HTTP listen address.").Default(":8080").StringVar(&c.listenAddr)
	c.Cmd.Flag("max-source-bytes", "Max request body size.").Default("1048576").Int64Var(&c.maxSourceBytes)
	c.Cmd.Flag("drain-timeout", "Time to wait for running requests on shutdown.").Default("30s").DurationVar(&c.drainTimeout)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		return fmt.Errorf("could not create metrics: %w", err)
	}

	available, err := c.rootCmd.newToolSet()
	if err != nil {
		return err
	}
	policy, err := c.rootCmd.loadPolicy(ctx, available)
	if err != nil {
		return err
	}

	eng, err := c.rootCmd.newEngine()
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	repo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	runSvc, err := apprun.NewService(apprun.ServiceConfig{
		Engine:     eng,
		Repository: repo,
		Metrics:    rec,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create run service: %w", err)
	}
	checkSvc, err := check.NewService(check.ServiceConfig{
		Engine:  eng,
		Metrics: rec,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create check service: %w", err)
	}

	handler, err := httpapi.New(httpapi.Config{
		Runner:         runSvc,
		Checker:        checkSvc,
		Policy:         policy,
		Metrics:        rec,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MaxSourceBytes: c.maxSourceBytes,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create HTTP handler: %w", err)
	}

	server := &http.Server{
		Addr:              c.listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("HTTP server listening on %s", c.listenAddr)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), c.drainTimeout)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Errorf("could not shut down HTTP server: %s", err)
				}
			},
		)
	}

	// Context cancellation (from parent signal handling).
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}
