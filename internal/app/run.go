package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/backend"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/chart"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
	db "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/db"
	httpapi "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/httpapi"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/live"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/metrics"
	control "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control"
	controlrepo "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/repository"
	controlservice "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/service"
	controlviews "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/views"
	dashboard "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard"
	dashboardcontroller "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/controller"
	dashboardservice "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/service"
	dashboardviews "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/views"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/mqtt"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/probe"
)

func Run(ctx context.Context, cfg config.Config, version string) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"backendURL", cfg.BackendURL,
		"pollInterval", cfg.PollInterval,
		"requestTimeout", cfg.RequestTimeout,
		"controlMode", cfg.ControlMode,
		"sqlitePath", cfg.SQLitePath,
		"sqliteLogQueries", cfg.SQLiteLogQueries,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
		"probeHost", cfg.ProbeHost,
		"probeInterval", cfg.ProbeInterval,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(dbConn)
	if err != nil {
		return err
	}
	slog.Info("database ready", "migrationsApplied", applied)

	if err := dashboardviews.LoadTemplates(); err != nil {
		return err
	}
	if err := controlviews.LoadTemplates(time.Local); err != nil {
		return err
	}

	client := backend.New(backend.Options{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.RequestTimeout,
		UserAgent: "tempmon/" + version,
	})

	m := metrics.New(slog.Default())
	hub := live.NewHub(slog.Default().With("component", "live"))

	poller := dashboardservice.NewPoller(client, dashboardservice.Options{
		Interval: cfg.PollInterval,
		Timeout:  cfg.RequestTimeout,
		Location: time.Local,
		Logger:   slog.Default().With("component", "poller"),
		Observer: m,
	})
	poller.AddSink(m)
	poller.AddSink(hub)

	controlSvc := controlservice.NewService(client, controlrepo.NewRepository(dbConn), cfg.ControlMode,
		slog.Default().With("component", "control"))
	controlSvc.AddObserver(m)
	controlSvc.AddObserver(hub)

	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		publisher = mqtt.NewPublisher(cfg, slog.Default().With("component", "mqtt"))
		poller.AddSink(publisher)
		controlSvc.AddObserver(publisher)

		// Use a short timeout for the initial connect so startup does not block when the broker is down.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	var prober *probe.Prober
	if cfg.ProbeEnabled() {
		prober, err = probe.NewProber(probe.Options{
			Host:       cfg.ProbeHost,
			Interval:   cfg.ProbeInterval,
			Privileged: cfg.ProbePrivileged,
			Logger:     slog.Default(),
		})
		if err != nil {
			return err
		}
		prober.AddReporter(m)
		if publisher != nil {
			prober.AddReporter(probe.ReporterFunc(func(_ context.Context, r probe.Result) error {
				err := publisher.PublishReachability(r.Host, r.Reachable, r.RTT)
				if errors.Is(err, mqtt.ErrNotConnected) {
					return nil
				}
				return err
			}))
		}
	}

	mux := httpapi.NewMux(dbConn, httpapi.Routes{
		Live:    hub.Handler(),
		Metrics: m.Handler(),
		Health:  healthDetails(poller, publisher, prober),
	})
	dashboard.RegisterFeature(mux, poller, chart.NewRenderer(chart.DefaultLayout, time.Local), dashboardcontroller.Options{
		CredentialsRequired: controlSvc.CredentialsRequired(),
		PollInterval:        cfg.PollInterval,
		Location:            time.Local,
		Version:             version,
	})
	control.RegisterFeature(mux, controlSvc)

	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(workCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("poller stopped", "error", err)
		}
	}()
	if prober != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := prober.Run(workCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("probe stopped", "error", err)
			}
		}()
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopWork()
		wg.Wait()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopWork()
	wg.Wait()

	if publisher != nil {
		slog.Info("mqtt disconnecting")
		publisher.Disconnect()
	}

	slog.Info("http shutting down")
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func healthDetails(poller *dashboardservice.Poller, publisher *mqtt.Publisher, prober *probe.Prober) map[string]httpapi.HealthDetail {
	return map[string]httpapi.HealthDetail{
		"backend": func() string {
			d := poller.Display()
			switch {
			case d.ErrorMessage != "":
				return "error"
			case d.Loaded:
				return "ok"
			default:
				return "pending"
			}
		},
		"mqtt": func() string {
			switch {
			case publisher == nil:
				return "disabled"
			case publisher.IsConnected():
				return "connected"
			default:
				return "disconnected"
			}
		},
		"probe": func() string {
			if prober == nil {
				return "disabled"
			}
			r, ok := prober.Last()
			switch {
			case !ok:
				return "pending"
			case r.Reachable:
				return "reachable"
			default:
				return "unreachable"
			}
		},
	}
}
