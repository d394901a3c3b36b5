package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classbook/internal/api"
	"classbook/internal/booking"
	"classbook/internal/cleanup"
	"classbook/internal/config"
	"classbook/internal/database"
	"classbook/internal/health"
	"classbook/internal/logging"
	"classbook/internal/metrics"
	"classbook/internal/notify"
	"classbook/internal/sheets"
	"classbook/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	bootLogger := logging.New(os.Stdout, "info")

	if err := config.LoadEnv(os.Getenv("CLASSBOOK_ENV_FILE")); err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(os.Getenv("CLASSBOOK_CONFIG_PATH"))
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(os.Stdout, cfg.App.LogLevel)

	rooms, err := config.LoadRooms(cfg.RoomsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load rooms")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	var (
		live   store.Store
		checks []health.Check
	)
	switch cfg.Store.Driver {
	case "memory":
		live = store.NewMemory()
		logger.Warn().Msg("using in-memory store; bookings are lost on restart")
	default:
		db, err := database.NewStore(cfg.Store.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		defer db.Close()
		if rdb != nil && cfg.Redis.CacheTTLSeconds > 0 {
			db.UseRedisCache(rdb, cfg.CacheTTL())
		}
		backup := database.NewBackupService(db, database.BackupConfig{
			Enabled:     cfg.Backup.Enabled,
			Interval:    cfg.BackupInterval(),
			StoragePath: cfg.Backup.Path,
			Retention:   cfg.BackupRetention(),
		}, &logger)
		go backup.Start(ctx)

		live = db
		checks = append(checks, health.Check{Name: "db", Checker: db})
	}
	if rdb != nil {
		checks = append(checks, health.Check{Name: "redis", Checker: health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})})
	}

	feed := store.NewFeed(rooms, &logger)
	detach, err := feed.Attach(ctx, live)
	if err != nil {
		logger.Fatal().Err(err).Msg("subscribe to store failed")
	}
	defer detach()

	roster := config.NewRoster(nil)
	watcher := config.NewTeachersWatcher(cfg.Notify.TeachersPath, cfg.ReloadInterval(), roster, &logger)
	if _, err := watcher.Reload(); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Notify.TeachersPath).Msg("teacher roster not loaded; waiting for the file")
	}
	logger.Info().Int("teachers", len(roster.Emails())).Msg("teacher roster loaded")
	go watcher.Run(ctx)

	notifier := buildNotifier(cfg, roster, &logger)

	if cfg.Sheets.Enabled {
		mirror, err := sheets.NewMirror(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("google sheets init failed")
		}
		feed.OnChange(mirror.Notify)
		mirror.Notify(feed.Snapshot())
		go mirror.Run(ctx)
	}

	loc := cfg.Location()
	sweeperLogger := logging.Component(&logger, "cleanup")
	sessions := booking.NewSessionStore(cfg.SessionTimeout(), func(s *booking.Session) *cleanup.Sweeper {
		l := sweeperLogger.With().Str("session", s.ID).Logger()
		return cleanup.NewSweeper(&cleanup.Config{
			Interval: cfg.CleanupInterval(),
			Timeout:  time.Minute,
			Location: loc,
		}, feed, live, &l)
	}, &logger)
	go sessions.Run(ctx, time.Minute)

	controller := booking.NewController(feed, live, notifier, booking.Config{Location: loc}, &logger)

	server := api.NewHTTPServer(api.Config{Port: cfg.HTTP.Port, APIKey: cfg.HTTP.APIKey}, controller, sessions, notifier, &logger)
	go func() {
		if err := server.Serve(ctx); err != nil {
			logger.Error().Err(err).Msg("api server stopped")
			stop()
		}
	}()

	go func() {
		_ = health.Serve(ctx, fmt.Sprintf(":%d", cfg.Monitoring.HealthCheckPort), "health", health.Handler(checks...), &logger)
	}()

	if cfg.Monitoring.GRPCHealthPort > 0 {
		startGRPCHealth(ctx, cfg.Monitoring.GRPCHealthPort, checks, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go func() {
			_ = health.Serve(ctx, fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), "metrics", health.MetricsHandler(), &logger)
		}()
	}

	logger.Info().Str("store", cfg.Store.Driver).Int("rooms", len(rooms)).Msg("classbook started")
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	sessions.CloseAll()
	controller.Wait()
}

func buildNotifier(cfg *config.Config, roster notify.Roster, logger *zerolog.Logger) *notify.Notifier {
	var sender notify.Sender
	fs, err := notify.NewFormspreeSender(cfg.Notify.FormspreeForm, cfg.Notify.FromEmail)
	if err != nil {
		logger.Warn().Err(err).Msg("email notifications disabled")
	} else {
		sender = fs
	}

	n := notify.NewNotifier(sender, roster, notify.Config{
		Retry: notify.RetryConfig{
			MaxAttempts: cfg.Notify.MaxAttempts,
			RetryDelay:  cfg.RetryDelay(),
		},
		RatePerSecond: cfg.Notify.RatePerSecond,
		Burst:         1,
	}, logging.NewAdapter(logging.Component(logger, "notify")))

	if cfg.Telegram.Enabled {
		poster, err := notify.NewTelegramPoster(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Error().Err(err).Msg("telegram poster disabled")
		} else {
			logger.Info().Str("bot", poster.BotName()).Msg("telegram staff chat enabled")
			n.WithChat(poster)
		}
	}
	return n
}

func startGRPCHealth(ctx context.Context, port int, checks []health.Check, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Int("port", port).Msg("grpc health listen failed")
		return
	}
	srv := health.NewGRPCServer(logger, checks...)
	go srv.Watch(ctx, 10*time.Second)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc health server error")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
}
