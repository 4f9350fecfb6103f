package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	_ "github.com/lib/pq"

	"github.com/cyberearn/reward-wallet/internal/api"
	"github.com/cyberearn/reward-wallet/internal/database"
	"github.com/cyberearn/reward-wallet/internal/engine"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/giftcode"
	"github.com/cyberearn/reward-wallet/internal/health"
	"github.com/cyberearn/reward-wallet/internal/identity"
	"github.com/cyberearn/reward-wallet/internal/jobs"
	jobhandlers "github.com/cyberearn/reward-wallet/internal/jobs/handlers"
	"github.com/cyberearn/reward-wallet/internal/leaderboard"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/lifecycle"
	"github.com/cyberearn/reward-wallet/internal/lock"
	"github.com/cyberearn/reward-wallet/internal/notify"
	"github.com/cyberearn/reward-wallet/internal/repository"
	"github.com/cyberearn/reward-wallet/internal/settings"
	"github.com/cyberearn/reward-wallet/pkg/config"
	"github.com/cyberearn/reward-wallet/pkg/graceful"
	"github.com/cyberearn/reward-wallet/pkg/logger"
	"github.com/cyberearn/reward-wallet/pkg/metrics"
	pkgredis "github.com/cyberearn/reward-wallet/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if cfg.Sentry.Enabled && cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			log.Error("failed to init sentry", slog.Any("error", err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info("starting reward wallet",
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.HTTP.Port),
		slog.String("storage", cfg.Storage.Driver),
	)

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)

	// Storage.
	var (
		users     repository.UserRepository
		codes     repository.GiftCodeRepository
		ledgerRep repository.LedgerRepository
		setsRep   repository.SettingsRepository
		credits   repository.CreditStore
	)

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DB.DSN())
		if err != nil {
			log.Error("failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping database", slog.Any("error", err))
			os.Exit(1)
		}
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })

		migrator := database.NewMigrator(db, log)
		if err := migrator.ApplyDir(ctx, cfg.DB.MigrationsDir); err != nil {
			log.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}

		users = repository.NewUserRepository(db, log)
		codes = repository.NewGiftCodeRepository(db, log)
		ledgerRep = repository.NewLedgerRepository(db, log)
		setsRep = repository.NewSettingsRepository(db, log)
		credits = repository.NewCreditStore(db, log)
		checker.AddCheck("postgres", health.NewDBChecker(db))
	default:
		store := repository.NewMemoryStore()
		users = store
		codes = store.GiftCodes()
		ledgerRep = store
		setsRep = store
		credits = store
		log.Warn("memory storage selected, state is lost on restart")
	}

	// Redis backs locks, the leaderboard cache and the job queue.
	var (
		locker lock.Locker = lock.NewMemoryLocker()
		kv     leaderboard.KV
	)
	if cfg.Redis.Enabled {
		rdb, err := pkgredis.New(ctx, pkgredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })

		locker = lock.NewRedisLocker(rdb.Client, log)
		kv = pkgredis.NewMetricsClient(rdb)
		checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	}

	// Chat transport.
	var (
		notifier   notify.Notifier          = notify.NopNotifier{}
		membership notify.MembershipChecker = notify.StaticChecker{Member: true}
	)
	if cfg.Telegram.Enabled {
		bot, err := telebot.NewBot(telebot.Settings{Token: cfg.Telegram.Token})
		if err != nil {
			log.Error("failed to connect to telegram", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = notify.NewTelegramNotifier(bot, log)
		membership = notify.NewTelegramMembershipChecker(bot, log)
		checker.AddCheck("telegram", health.NewTelegramChecker(bot))
	}

	// Services.
	settingsSvc := settings.NewService(setsRep, log)
	config.Watch(v, log, func(config.Config) {
		settingsSvc.Invalidate()
	})
	registry := giftcode.NewRegistry(codes, log)
	ledgerSvc := ledger.NewService(ledgerRep, log)
	board := leaderboard.NewCache(kv, users, log)
	gateway := identity.NewGateway(settingsSvc, cfg.RootAdmin, log)

	eng := engine.New(engine.Config{
		Users:      users,
		Credits:    credits,
		Registry:   registry,
		Ledger:     ledgerSvc,
		Settings:   settingsSvc,
		Board:      board,
		Locks:      locker,
		Membership: membership,
		Notifier:   notifier,
		Admins:     gateway,
		RootAdmin:  cfg.RootAdmin,
		Log:        log,
	})

	// Background jobs.
	var manager jobs.Manager
	if cfg.Jobs.Enabled && cfg.Redis.Enabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		manager = jobs.NewManager(redisOpt, log)
		shutdown.Register("jobs-manager", func(context.Context) error { return manager.Close() })

		worker := jobs.NewWorker(redisOpt, cfg.Jobs.Queues, log)
		worker.RegisterHandler(jobs.TaskTypeGiftSweep, jobhandlers.NewGiftSweepHandler(registry, log))
		worker.RegisterHandler(jobs.TaskTypeLeaderboardRefresh, jobhandlers.NewLeaderboardRefreshHandler(board, log))
		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()
		shutdown.Register("jobs-worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})

		scheduler := jobs.NewScheduler(redisOpt, log)
		if err := scheduler.RegisterTasks(cfg.Jobs.SweepCron, cfg.Jobs.LeaderboardCron); err != nil {
			log.Error("failed to register scheduled tasks", slog.Any("error", err))
			os.Exit(1)
		}
		scheduler.Run()
		shutdown.Register("jobs-scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	}

	go metrics.NewUserCollector(users).Run(ctx)

	// HTTP.
	server := api.NewServer(api.Deps{
		Engine:   eng,
		Settings: settingsSvc,
		Registry: registry,
		Ledger:   ledgerSvc,
		Users:    users,
		Gateway:  gateway,
		Checker:  checker,
		Probes:   lifecycle.NewProbes(checker, log),
		Jobs:     manager,
		Errors:   apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Log:      log,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}

	if err := graceful.NewServer(log, httpServer, shutdownTimeout).ListenAndServe(ctx); err != nil {
		log.Error("http server terminated", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("reward wallet stopped")
}
