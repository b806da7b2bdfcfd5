package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"officequeue/internal/api"
	"officequeue/internal/bot"
	"officequeue/internal/config"
	"officequeue/internal/database"
	"officequeue/internal/domain"
	"officequeue/internal/events"
	"officequeue/internal/google"
	"officequeue/internal/logging"
	"officequeue/internal/metrics"
	"officequeue/internal/models"
	"officequeue/internal/repository"
	"officequeue/internal/service"
	"officequeue/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func run() error {
	configPath := pflag.StringP("config", "c", defaultConfigPath(), "path to the YAML config")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "bot-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, sqliteDB, err := initStore(cfg, redisClient, logging.Component(baseLogger, "store"))
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.InitOfficeStatus(ctx, cfg.DefaultOfficeState()); err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации статуса кабинета")
		return err
	}

	metrics.Register()

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Warn().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	queueService := service.NewQueueService(store, eventBus, logging.Component(baseLogger, "queue"))
	if err := queueService.SyncMetrics(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to sync metrics on startup")
	}
	userService := service.NewUserService(store, cfg.Operator.ID, logging.Component(baseLogger, "users"))
	stateService := initStateService(cfg, redisClient, logger)

	botWrapper, err := bot.NewTelegramClient(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	tgService := service.NewTelegramService(botWrapper)

	retryPolicy := worker.BroadcastRetry
	retryPolicy.MaxRetries = *cfg.Bot.BroadcastRetries
	broadcaster := worker.NewBroadcastWorker(userService, tgService, cfg.Operator.ID, retryPolicy, models.BroadcastQueueSize, logging.Component(baseLogger, "broadcast"))
	go broadcaster.Start(ctx)

	bot.NewNotifier(ctx, broadcaster, cfg.Bot.BroadcastReport, logging.Component(baseLogger, "notifier")).Subscribe(eventBus)

	if cfg.Google.Enabled {
		startJournalMirror(ctx, cfg.Google, eventBus, logging.Component(baseLogger, "journal"))
	}

	if sqliteDB != nil && cfg.Backup.Enabled {
		backupService := database.NewBackupService(sqliteDB, cfg.Backup, logging.Component(baseLogger, "backup"))
		go backupService.Start(ctx)
	}

	shutdownAPI := startAPI(ctx, cfg, queueService, store, baseLogger)
	defer shutdownAPI()

	telegramBot, err := bot.NewBot(tgService, cfg, stateService, queueService, userService, logging.Component(baseLogger, "bot"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Str("store", cfg.Office.Store).Int64("operator_id", cfg.Operator.ID).Msg("Бот запущен...")
	telegramBot.Start(ctx)
	telegramBot.Stop()

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil
	}

	client, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid redis settings")
		return nil
	}
	if errPing := repository.Ping(ctx, client); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}
	return client
}

// initStore returns the configured store; the sqlite handle is non-nil only for the sqlite store.
func initStore(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	switch cfg.Office.Store {
	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis store selected but redis is not configured")
		}
		return repository.NewRedisStore(redisClient, logger), nil, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
			return nil, nil, err
		}
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func initStateService(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *service.StateService {
	ttl := time.Duration(cfg.Bot.StateTTL) * time.Second
	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return service.NewStateService(stateRepo, logger)
}

// startJournalMirror copies every served visit into the configured spreadsheet.
func startJournalMirror(ctx context.Context, cfg config.GoogleConfig, bus *events.EventBus, logger *zerolog.Logger) {
	sheet, err := google.NewJournalSheet(ctx, cfg.CredentialsFile, cfg.JournalSpreadsheetID, cfg.JournalSheet)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка подключения к Google Sheets")
		return
	}
	if err := sheet.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("Google Sheets connection test failed")
	} else if err := sheet.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to write journal header")
	}

	journal := worker.NewJournalWorker(sheet, worker.JournalRetry, 0, logger)
	go journal.Start(ctx)

	bus.Subscribe(events.EventQueueServed, func(ev *events.Event) error {
		var p events.QueueEventPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return journal.Enqueue(&models.Visit{
			ID:          p.VisitID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Outcome:     p.Outcome,
			JoinedAt:    p.JoinedAt,
			FinishedAt:  p.OccurredAt,
		})
	})
	logger.Info().Str("spreadsheet", cfg.JournalSpreadsheetID).Msg("Journal mirror enabled")
}

func startAPI(ctx context.Context, cfg *config.Config, queue api.QueueReader, store api.Pinger, baseLogger *zerolog.Logger) func() {
	if !cfg.API.Enabled {
		return func() {}
	}
	logger := logging.Component(baseLogger, "api")

	var shutdowns []func(context.Context)

	if cfg.API.HTTP.Enabled {
		httpServer := api.NewHTTPServer(&cfg.API, queue, store, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("HTTP API server error")
			}
		}()
		shutdowns = append(shutdowns, func(c context.Context) { _ = httpServer.Shutdown(c) })
	}

	if cfg.API.GRPC.Enabled {
		grpcServer, err := api.NewGRPCServer(&cfg.API, queue, store, logger)
		if err != nil {
			logger.Error().Err(err).Msg("gRPC API init failed")
		} else {
			go grpcServer.RunHealthProbe(ctx)
			go func() {
				if err := grpcServer.Serve(); err != nil {
					logger.Error().Err(err).Msg("gRPC API server error")
				}
			}()
			shutdowns = append(shutdowns, grpcServer.Shutdown)
		}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, fn := range shutdowns {
			fn(shutdownCtx)
		}
	}
}
