// Sentinel - continuous behavioral authentication agent
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zerotrust-labs/sentinel/internal/api"
	"github.com/zerotrust-labs/sentinel/internal/circuitbreaker"
	"github.com/zerotrust-labs/sentinel/internal/config"
	"github.com/zerotrust-labs/sentinel/internal/coordinator"
	"github.com/zerotrust-labs/sentinel/internal/credentials"
	"github.com/zerotrust-labs/sentinel/internal/logging"
	"github.com/zerotrust-labs/sentinel/internal/monitor"
	"github.com/zerotrust-labs/sentinel/internal/realtime"
	"github.com/zerotrust-labs/sentinel/internal/retry"
	"github.com/zerotrust-labs/sentinel/internal/server"
	"github.com/zerotrust-labs/sentinel/internal/telemetry"
	"github.com/zerotrust-labs/sentinel/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting sentinel",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
		"api_url", cfg.APIURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTraces(context.Background()); err != nil {
				logger.Warn("trace shutdown failed", "error", err)
			}
		}()
	}

	// Session token survives restarts via the credentials file.
	creds := credentials.NewManager(credentials.NewFileStore(cfg.CredentialsFile), logger)
	creds.Load()

	client := api.NewClient(cfg.APIURL, creds,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(logger),
	)

	// The backend may still be starting; probe before authenticating.
	wait := retry.Backoff{Attempts: 5, BaseDelay: 2 * time.Second}
	err = wait.Do(ctx, func() error {
		if !client.HealthCheck(ctx) {
			return errors.New("backend not reachable")
		}
		return nil
	})
	if err != nil {
		logger.Error("backend never became reachable", "url", cfg.APIURL, "error", err)
		return err
	}

	if err := authenticate(ctx, cfg, client, creds, logger); err != nil {
		logger.Error("authentication failed", "error", err)
		return err
	}

	sampler := telemetry.NewSampler(telemetry.NewHostDevice(),
		telemetry.WithLogger(logger))

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	coord := coordinator.New(client, sampler,
		coordinator.WithLogger(logger),
		coordinator.WithNotifier(hub),
	)

	breaker := circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	mon := monitor.New(func(tickCtx context.Context) error {
		return coord.LogBehavior(tickCtx)
	},
		monitor.WithInterval(cfg.SampleInterval),
		monitor.WithBreaker(breaker),
		monitor.WithLogger(logger),
		monitor.WithStateHook(func(running bool) {
			hub.Notify(realtime.EventMonitorState, map[string]any{"running": running})
		}),
	)
	defer mon.Close()

	// Prime local state, then start unattended monitoring.
	if _, err := coord.RefreshDashboard(ctx); err != nil {
		logger.Warn("initial dashboard refresh failed", "error", err)
	}
	mon.Start()

	srv := server.New(cfg, coord, mon, hub, client, creds,
		server.WithLogger(logger))

	ctxErr := srv.Run(ctx)

	// The token stays on disk so the next start resumes the session.
	mon.Stop()
	logger.Info("sentinel stopped")
	return ctxErr
}

// authenticate reuses a persisted token when one exists, otherwise logs
// in with the configured credentials, registering first when the account
// is new.
func authenticate(ctx context.Context, cfg *config.Config, client *api.Client, creds *credentials.Manager, logger *slog.Logger) error {
	if _, ok := creds.Token(); ok {
		if _, err := client.FetchProfile(ctx); err == nil {
			logger.Info("resumed existing session")
			return nil
		}
		// Token invalid or expired; fall through to a fresh login. The
		// gateway already cleared it if the server rejected it.
		logger.Info("persisted session not usable, logging in again")
	}

	if cfg.Email == "" || cfg.Password == "" {
		return errors.New("no stored session and no credentials configured")
	}

	token, err := client.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		if api.IsKind(err, api.KindTokenRejected) || api.IsKind(err, api.KindServerError) {
			if _, regErr := client.Register(ctx, cfg.Email, cfg.Password); regErr != nil {
				return err
			}
			token, err = client.Login(ctx, cfg.Email, cfg.Password)
		}
		if err != nil {
			return err
		}
	}

	if err := creds.Save(token); err != nil {
		logger.Warn("token not persisted, session will not survive restart", "error", err)
	}
	logger.Info("logged in", "email", cfg.Email)
	return nil
}
