package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/planetary-survey/internal/console"
	"github.com/signalsfoundry/planetary-survey/internal/logging"
	"github.com/signalsfoundry/planetary-survey/internal/observability"
	"github.com/signalsfoundry/planetary-survey/kb"
	"github.com/spf13/cobra"
)

type options struct {
	scenarioPath string
	metricsAddr  string
}

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "planetsim",
		Short: "Interactive planetary system survey",
		Long: `planetsim reads survey commands from standard input, one per line,
and maintains a star-rooted tree of planets and moons with their sensor readings.
Type "help" for the command list and "exit" to quit.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, in, out)
		},
	}
	cmd.Flags().StringVar(&opts.scenarioPath, "scenario", "", "YAML file describing a star and its bodies to load before the session starts")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	return cmd
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.NewFromEnv()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSurveyCollector(prometheus.NewRegistry())
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return err
	}
	if metricsSrv := serveMetrics(opts.metricsAddr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sessionOpts := []console.Option{
		console.WithLogger(log),
		console.WithRecorder(collector),
	}
	if opts.scenarioPath != "" {
		sys, err := loadScenario(ctx, log, collector, opts.scenarioPath)
		if err != nil {
			log.Error(ctx, "failed to load scenario", logging.String("path", opts.scenarioPath), logging.Err(err))
			fmt.Fprintf(os.Stderr, "planetsim: %v\n", err)
			return err
		}
		sessionOpts = append(sessionOpts, console.WithSystem(sys))
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	session := console.NewSession(out, sessionOpts...)
	if err := session.Run(stopCtx, in); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			log.Info(ctx, "session interrupted")
			return nil
		}
		log.Warn(ctx, "session ended with error", logging.Err(err))
		return err
	}
	return nil
}

func loadScenario(ctx context.Context, log logging.Logger, collector *observability.SurveyCollector, path string) (*kb.PlanetarySystem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario %q: %w", path, err)
	}
	defer f.Close()

	sys, summary, err := kb.LoadScenario(f, kb.WithLogger(log), kb.WithMetricsRecorder(collector))
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "loaded scenario",
		logging.String("path", path),
		logging.String("star", summary.Star),
		logging.Int("bodies", len(summary.Bodies)),
	)
	return sys, nil
}

func serveMetrics(addr string, collector *observability.SurveyCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
