package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/srallapally/openicf-connector-service/breaker"
	"github.com/srallapally/openicf-connector-service/cache"
	"github.com/srallapally/openicf-connector-service/connector/mock"
	"github.com/srallapally/openicf-connector-service/facade"
	"github.com/srallapally/openicf-connector-service/loader"
	"github.com/srallapally/openicf-connector-service/registry"
	"github.com/srallapally/openicf-connector-service/session"
)

type serveOptions struct {
	config     string
	connectors string
}

// commandServe mirrors dexidp-dex's commandServe: one positional config
// file argument, falling back to CONNECTOR_HOST_CONFIG when omitted, and
// falling back further to the spec.md §6 environment-variable surface
// (REMOTE_CONNECTOR_WS_URL/OAUTH_*/CONNECTORS_DIR) when no file is named at
// all.
func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch the connector host",
		Example: "connectorhostd serve config.yaml",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			if len(args) == 1 {
				options.config = args[0]
			} else if v := os.Getenv(configFileEnv); v != "" {
				options.config = v
			}
			return runServe(options)
		},
	}
	cmd.Flags().StringVar(&options.connectors, "connectors", "", "connector manifest directory (overrides CONNECTORS_DIR)")
	return cmd
}

func runServe(options serveOptions) error {
	c, err := resolveConfig(options)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, err := parseLevel(c.Logger.Level)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(level, c.Logger.Format)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info("starting connector host", "manifestDirs", c.ManifestDirs)

	reg := registry.New()
	ld := loader.New(reg)

	// First-party compiled-in connector entries are seeded here; a real
	// deployment would add every in-process connector package it ships with
	// to this map the same way. A manifest's "entry" is matched against
	// this table first; anything else is resolved as a subprocess plugin
	// path instead (see package loader/pluginhost).
	loader.RegisterAll(ld, loader.FactoryMap{
		"mock": mock.New,
	})
	reg.RegisterConfigBuilder("mock", "1.0.0", mock.BuildConfig)

	for _, dir := range c.ManifestDirs {
		result, err := ld.LoadDir(context.Background(), logger, dir)
		if err != nil {
			return fmt.Errorf("load manifest directory %s: %w", dir, err)
		}
		for _, me := range result.Errors {
			logger.Error("manifest failed to load", "path", me.Path, "instanceID", me.InstanceID, "error", me.Err)
		}
		logger.Info("loaded manifest directory", "dir", dir, "instances", result.Loaded)
	}

	sharedCache := cache.New(c.Cache.Capacity, time.Duration(c.Cache.DefaultTTLSeconds)*time.Second)
	breakerSettings := breaker.Settings{
		FailureThreshold: c.Breaker.FailureThreshold,
		SuccessThreshold: c.Breaker.SuccessThreshold,
		HalfOpenAfter:    time.Duration(c.Breaker.HalfOpenAfterSeconds) * time.Second,
		MaxConcurrent:    c.Breaker.MaxConcurrent,
		Timeout:          time.Duration(c.Breaker.TimeoutSeconds) * time.Second,
	}

	facades := make(map[string]*facade.Facade)
	healthChecker := gosundheit.New()
	for _, inst := range reg.List() {
		fc := facade.New(inst.ID, inst.Impl, sharedCache, &breakerSettings)
		facades[inst.ID] = fc

		instanceID := inst.ID
		connTest := fc
		healthChecker.RegisterCheck(&gosundheit.Config{
			Check: &checks.CustomCheck{
				CheckName: fmt.Sprintf("connector.%s", instanceID),
				CheckFunc: func() (any, error) {
					return nil, connTest.Test(context.Background())
				},
			},
			ExecutionPeriod:  30 * time.Second,
			InitiallyPassing: true,
		})
	}

	lookup := func(id string) (*facade.Facade, bool) {
		fc, ok := facades[id]
		return fc, ok
	}

	var mgr *session.Manager
	if c.Session.URL != "" {
		tokens := session.NewTokenProvider(session.TokenProviderConfig{
			ClientID:     c.Session.ClientID,
			ClientSecret: c.Session.ClientSecret,
			TokenURL:     c.Session.TokenURL,
			Scopes:       c.Session.Scopes,
			Audience:     c.Session.Audience,
			Resource:     c.Session.Resource,
		})
		mgr = session.New(c.Session.URL, tokens, reg, lookup, logger)
	}

	promReg := prometheus.NewRegistry()
	if err := promReg.Register(prometheus.NewGoCollector()); err != nil {
		return fmt.Errorf("register Go runtime metrics: %w", err)
	}
	if err := promReg.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("register process metrics: %w", err)
	}

	telemetryRouter := http.NewServeMux()
	telemetryRouter.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	telemetryRouter.Handle("/healthz", gosundheithttp.HandleHealthJSON(healthChecker))

	var gr run.Group

	if c.Telemetry.HTTP != "" {
		telemetrySrv := &http.Server{Addr: c.Telemetry.HTTP, Handler: telemetryRouter}
		gr.Add(func() error {
			logger.Info("listening", "component", "telemetry", "addr", c.Telemetry.HTTP)
			return telemetrySrv.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			_ = telemetrySrv.Shutdown(ctx)
		})
	}

	if mgr != nil {
		ctx, cancel := context.WithCancel(context.Background())
		gr.Add(func() error {
			logger.Info("starting session manager", "url", c.Session.URL)
			return mgr.Run(ctx)
		}, func(error) {
			cancel()
			_ = mgr.Close()
		})
	}

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	return gr.Run()
}
