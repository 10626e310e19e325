package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goldengate/goldengate/internal/adminauth"
	"github.com/goldengate/goldengate/internal/audit"
	"github.com/goldengate/goldengate/internal/config"
	"github.com/goldengate/goldengate/internal/gateway"
	"github.com/goldengate/goldengate/internal/gglog"
	"github.com/goldengate/goldengate/internal/health"
	"github.com/goldengate/goldengate/internal/middleware"
	"github.com/goldengate/goldengate/internal/notify"
	"github.com/goldengate/goldengate/internal/ratelimit"
	"github.com/goldengate/goldengate/internal/timelock"
	"github.com/goldengate/goldengate/internal/timelockstore"
	"github.com/goldengate/goldengate/internal/upstream"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway, proxying matched requests upstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := gglog.New(settings.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("loaded configuration", "config", settings.String())

	store, closeStore, err := buildTimeLockStore(settings.TimeLock)
	if err != nil {
		return err
	}
	defer closeStore()

	broker, err := buildNotifyBroker(settings.Notify, logger)
	if err != nil {
		return err
	}

	coord := timelock.NewCoordinator(store, broker, logger)

	rulesets, err := config.CompileRulesets(settings.RulesetPath, settings.PolicyPath, coord)
	if err != nil {
		return err
	}
	sugar.Infow("compiled rulesets", "count", len(rulesets))

	auditLogger, err := audit.NewLogger(audit.DefaultLoggerConfig(), logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	auditLogger.Start(ctx)
	defer auditLogger.Stop()

	gw := &gateway.Gateway{
		Rulesets: rulesets,
		Upstream: upstream.NewClient(settings.UpstreamTimeout),
		Logger:   sugar,
		Audit:    auditLogger,
		Limiter:  ratelimit.NewEntityLimiter(50, 10),
	}

	checker := health.NewChecker()
	checker.RegisterCheck("rulesets", func(context.Context) error {
		if len(rulesets) == 0 {
			return errNoRulesets
		}
		return nil
	})

	proxyServer := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: middleware.Common(sugar)(gw),
	}
	adminServer := &http.Server{
		Addr:    settings.AdminAddr,
		Handler: buildAdminMux(settings, checker, coord),
	}

	errCh := make(chan error, 2)
	go func() { errCh <- proxyServer.ListenAndServe() }()
	go func() { errCh <- adminServer.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		sugar.Infow("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			sugar.Errorw("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	proxyServer.Shutdown(shutdownCtx)
	adminServer.Shutdown(shutdownCtx)
	return nil
}

var errNoRulesets = errors.New("no rulesets compiled")

func buildTimeLockStore(settings config.TimeLockSettings) (timelockstore.Store, func(), error) {
	switch settings.Backend {
	case "bolt":
		b, err := timelockstore.OpenBolt(settings.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	default:
		return timelockstore.NewMemory(), func() {}, nil
	}
}

func buildNotifyBroker(settings config.NotifySettings, logger *zap.Logger) (notify.Broker, error) {
	switch settings.Broker {
	case "smtp":
		return &notify.SMTPBroker{Addr: settings.SMTPAddr, From: settings.SMTPFrom}, nil
	case "webhook":
		return &notify.WebhookBroker{URL: settings.WebhookURL}, nil
	default:
		return &notify.LogBroker{Logger: logger}, nil
	}
}

// buildAdminMux serves /healthz, /metrics, and the time-lock cancel
// endpoint, all gated by adminauth when an admin token hash is configured.
func buildAdminMux(settings *config.Settings, checker *health.Checker, coord *timelock.Coordinator) http.Handler {
	checkerAuth := adminauth.NewTokenChecker(settings.AdminTokenHash)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", checker.HTTPHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/timelock/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		if err := coord.Cancel(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	return checkerAuth.Middleware(r)
}
