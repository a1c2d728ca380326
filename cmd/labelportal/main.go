// Точка входа Label Portal — портала приёма релизов от артистов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает цепочку стратегий доступа к данным (sql, orm, rest), хранилище
// файлов, почту и сервисный слой, запускает фоновые задачи (очистка журнала,
// topologymetrics) и HTTP-сервер (API + веб-интерфейс) с graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/labelportal/internal/api/handlers"
	"github.com/bigkaa/labelportal/internal/api/middleware"
	"github.com/bigkaa/labelportal/internal/api/openapi"
	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/config"
	"github.com/bigkaa/labelportal/internal/database"
	"github.com/bigkaa/labelportal/internal/email"
	"github.com/bigkaa/labelportal/internal/logbuffer"
	"github.com/bigkaa/labelportal/internal/multidb"
	"github.com/bigkaa/labelportal/internal/repository"
	"github.com/bigkaa/labelportal/internal/repository/ormrepo"
	"github.com/bigkaa/labelportal/internal/restdb"
	"github.com/bigkaa/labelportal/internal/server"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/storage"
	"github.com/bigkaa/labelportal/internal/storage/filestore"
	"github.com/bigkaa/labelportal/internal/storage/s3store"
	uihandlers "github.com/bigkaa/labelportal/internal/ui/handlers"
	"github.com/bigkaa/labelportal/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/labelportal/internal/ui/middleware"
)

// jwksTimeout — таймаут загрузки JWKS внешнего IdP.
const jwksTimeout = 10 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Логирование: записи дублируются в буфер для /api/debug-logs
	logBuf := logbuffer.New(cfg.DebugLogBufferSize, slog.LevelDebug)
	logger := config.SetupLogger(cfg, logBuf.Wrap)
	logger.Info("Label Portal запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Any("strategies", cfg.DataStrategies),
	)

	if cfg.JWTSecret == "" {
		logger.Warn("LP_JWT_SECRET не задан, токены API не переживут рестарт")
	}
	if cfg.SessionSecret == "" {
		logger.Warn("LP_SESSION_SECRET не задан, сессии не переживут рестарт")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Репозитории. Пользователи и релизы идут через цепочку стратегий.
	users, subs, closeStrategies, err := buildStrategies(cfg, pool, logger)
	if err != nil {
		logger.Error("Ошибка инициализации стратегий доступа к данным", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStrategies()

	tracksRepo := repository.NewTrackRepository(pool)
	filesRepo := repository.NewFileRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	emailLogsRepo := repository.NewEmailLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Хранилище файлов
	primary, extra, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища файлов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Почта
	demoSender := email.NewDemoSender(logger)
	var smtpSender email.Sender
	if cfg.SMTPHost != "" {
		smtpSender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
			Timeout:  cfg.SMTPTimeout,
		})
	} else if cfg.EmailMode == config.EmailModeProduction {
		logger.Warn("LP_EMAIL_MODE=production, но LP_SMTP_HOST не задан: письма только журналируются")
	}

	// 8. Токены и сессии
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, cfg.JWTLeeway)
	if err != nil {
		logger.Error("Ошибка создания выпуска токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Сервисы
	activitySvc := service.NewActivityService(activityRepo, logger)
	settingsSvc := service.NewSettingsService(settingsRepo, activitySvc, cfg.EmailMode, smtpSender != nil, logger)
	notificationSvc := service.NewNotificationService(
		settingsSvc, demoSender, smtpSender,
		emailLogsRepo, users, activitySvc,
		cfg.PublicURL,
		logger,
	)
	defer notificationSvc.Close()

	userCache := service.NewUserCache(users, cfg.UserCacheSize, cfg.UserCacheTTL)
	userSvc := service.NewUserService(users, userCache, activitySvc, notificationSvc, logger)
	authSvc := service.NewAuthService(userSvc, users, userCache, tokens, activitySvc, notificationSvc, logger)
	submissionSvc := service.NewSubmissionService(
		subs, tracksRepo, filesRepo, users,
		txRunner,
		activitySvc, notificationSvc,
		logger,
	)
	fileSvc := service.NewFileService(filesRepo, primary, cfg.MaxUploadSize, activitySvc, logger, extra...)
	artistSvc := service.NewArtistService(users, subs, logger)
	debugLogSvc := service.NewDebugLogService(logBuf, activitySvc)

	// 10. Первый Label Manager
	if err := userSvc.EnsureBootstrapManager(ctx, cfg.BootstrapManagerEmail, cfg.BootstrapManagerPassword); err != nil {
		logger.Error("Ошибка создания первого менеджера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Фоновые задачи: очистка журнала действий
	var retention *service.RetentionScheduler
	if cfg.ActivityRetention > 0 {
		retention, err = service.NewRetentionScheduler(activitySvc, cfg.ActivityPruneSchedule, cfg.ActivityRetention, logger)
		if err != nil {
			logger.Error("Ошибка расписания очистки журнала", slog.String("error", err.Error()))
			os.Exit(1)
		}
		retention.Start(ctx)
	}

	// 11.1 topologymetrics — мониторинг зависимостей
	targets := service.DephealthTargets{JWKSURL: cfg.JWTJWKSURL}
	if cfg.HasStrategy(config.StrategyREST) {
		targets.RESTURL = cfg.RESTURL
	}
	if cfg.StorageBackend == config.StorageS3 {
		targets.S3URL = s3URL(cfg)
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"labelportal",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 12. Аутентификация: токены портала, внешний IdP (опционально), сессии
	var external middleware.ExternalTokenVerifier
	if cfg.JWTJWKSURL != "" {
		v, err := auth.NewExternalVerifier(cfg.JWTJWKSURL, cfg.JWTExternalIssuer, jwksTimeout, cfg.JWTLeeway, logger)
		if err != nil {
			logger.Error("Ошибка создания проверки токенов IdP", slog.String("error", err.Error()))
			os.Exit(1)
		}
		external = v
		logger.Info("Проверка токенов внешнего IdP включена",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTExternalIssuer),
		)
	}
	authn := middleware.NewAuthenticator(sessions, tokens, external, authSvc, logger)

	// 13. Readiness checkers (PostgreSQL + хранилище)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		storage.NewReadinessChecker(primary),
	)

	// 14. API handler и OpenAPI-документ для валидации запросов
	apiHandler := handlers.NewAPIHandler(healthHandler, handlers.Services{
		Auth:          authSvc,
		Users:         userSvc,
		Submissions:   submissionSvc,
		Artists:       artistSvc,
		Files:         fileSvc,
		Activity:      activitySvc,
		Settings:      settingsSvc,
		Notifications: notificationSvc,
		DebugLogs:     debugLogSvc,
	}, sessions, logger)

	spec, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Веб-интерфейс (опционально, LP_UI_ENABLED)
	var uiComponents *server.UIComponents
	if cfg.UIEnabled {
		if _, err := i18n.Load(logger); err != nil {
			logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
			os.Exit(1)
		}
		uiComponents = &server.UIComponents{
			Handler: uihandlers.NewHandler(uihandlers.Services{
				Auth:          authSvc,
				Users:         userSvc,
				Submissions:   submissionSvc,
				Files:         fileSvc,
				Activity:      activitySvc,
				Settings:      settingsSvc,
				Notifications: notificationSvc,
			}, sessions, logger),
			Auth: uimiddleware.NewUIAuth(authn, sessions, logger),
		}
		logger.Info("Веб-интерфейс инициализирован", slog.Bool("secure_cookie", cfg.SecureCookie))
	} else {
		logger.Info("Веб-интерфейс отключён (LP_UI_ENABLED=false)")
	}

	// 16. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, authn, spec, uiComponents)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 17. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if retention != nil {
		retention.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Label Portal остановлен")
}

// buildStrategies собирает фасады пользователей и релизов по LP_DATA_STRATEGIES.
// Возвращаемая функция закрывает соединения дополнительных стратегий.
func buildStrategies(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*multidb.Users, *multidb.Submissions, func(), error) {
	var (
		userStrategies []multidb.Strategy[repository.UserRepository]
		subStrategies  []multidb.Strategy[repository.SubmissionRepository]
		closers        []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cfg.SkippedStrategies {
		logger.Warn("Стратегия доступа к данным пропущена: не настроена", slog.String("strategy", name))
	}

	for _, name := range cfg.DataStrategies {
		switch name {
		case config.StrategySQL:
			userStrategies = append(userStrategies, multidb.Strategy[repository.UserRepository]{
				Name: name, Repo: repository.NewUserRepository(pool),
			})
			subStrategies = append(subStrategies, multidb.Strategy[repository.SubmissionRepository]{
				Name: name, Repo: repository.NewSubmissionRepository(pool),
			})
		case config.StrategyORM:
			db, err := ormrepo.Open(cfg, logger)
			if err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("стратегия orm: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				closers = append(closers, func() { _ = sqlDB.Close() })
			}
			userStrategies = append(userStrategies, multidb.Strategy[repository.UserRepository]{
				Name: name, Repo: ormrepo.NewUserRepository(db),
			})
			subStrategies = append(subStrategies, multidb.Strategy[repository.SubmissionRepository]{
				Name: name, Repo: ormrepo.NewSubmissionRepository(db),
			})
		case config.StrategyREST:
			if cfg.RESTURL == "" {
				logger.Warn("Стратегия rest пропущена: не задан LP_REST_URL")
				continue
			}
			client, err := restdb.New(restdb.Config{
				URL:        cfg.RESTURL,
				APIKey:     cfg.RESTAPIKey,
				Timeout:    cfg.RESTTimeout,
				CACertPath: cfg.RESTCACertPath,
			}, logger)
			if err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("стратегия rest: %w", err)
			}
			userStrategies = append(userStrategies, multidb.Strategy[repository.UserRepository]{
				Name: name, Repo: restdb.NewUserRepository(client),
			})
			subStrategies = append(subStrategies, multidb.Strategy[repository.SubmissionRepository]{
				Name: name, Repo: restdb.NewSubmissionRepository(client),
			})
		}
	}

	bs := multidb.BreakerSettings{Failures: uint32(cfg.BreakerFailures), Timeout: cfg.BreakerTimeout}
	users, err := multidb.NewUsers(userStrategies, bs, logger)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	subs, err := multidb.NewSubmissions(subStrategies, bs, logger)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	logger.Info("Стратегии доступа к данным", slog.Any("order", users.Strategies()))
	return users, subs, closeAll, nil
}

// buildStorage создаёт основной бэкенд хранения. При работе с S3 локальная
// директория (если существует) остаётся доступной для чтения старых загрузок.
func buildStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, []storage.Backend, error) {
	if cfg.StorageBackend != config.StorageS3 {
		fs, err := filestore.New(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Хранилище файлов: local", slog.String("dir", cfg.StorageDir))
		return fs, nil, nil
	}

	s3, err := s3store.New(ctx, s3store.Config{
		Endpoint:   cfg.S3Endpoint,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Region:     cfg.S3Region,
		UseSSL:     cfg.S3UseSSL,
		PresignTTL: cfg.S3PresignTTL,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Хранилище файлов: s3",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)

	var extra []storage.Backend
	if cfg.StorageDir != "" {
		if info, statErr := os.Stat(cfg.StorageDir); statErr == nil && info.IsDir() {
			if fs, fsErr := filestore.New(cfg.StorageDir); fsErr == nil {
				extra = append(extra, fs)
			}
		}
	}
	return s3, extra, nil
}

func s3URL(cfg *config.Config) string {
	scheme := "http"
	if cfg.S3UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.S3Endpoint
}
