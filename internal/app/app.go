// Package app wires the roster services from configuration. Every binary
// under cmd/ builds one App and takes the parts it needs.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/channel"
	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/guard"
	"github.com/familyhub/aniversaris/internal/metrics"
	"github.com/familyhub/aniversaris/internal/pkg/distlock"
	"github.com/familyhub/aniversaris/internal/repository/sqlstore"
	"github.com/familyhub/aniversaris/internal/service/importer"
	"github.com/familyhub/aniversaris/internal/service/notify"
	"github.com/familyhub/aniversaris/internal/service/registry"
	"github.com/familyhub/aniversaris/internal/service/sending"
	"github.com/familyhub/aniversaris/internal/service/settings"
)

// App holds the shared services.
type App struct {
	Config  *config.Config
	DB      *sqlstore.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Log     *zap.Logger

	Persons       *sqlstore.PersonRepo
	Notifications *sqlstore.NotificationRepo

	Registry *registry.Service
	Importer *importer.Service
	Settings *settings.Service
	Calendar *notify.Calendar
	Selector *notify.Selector
	Notifier *notify.Notifier
	Guard    *guard.Guard
}

// New opens the database, applies pending migrations, connects to Redis
// when configured and builds the services. Transports without credentials
// leave their channel disabled.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := db.Migrate(ctx, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready",
		zap.String("dialect", string(db.Dialect())),
		zap.Strings("applied_migrations", applied))

	a := &App{Config: cfg, DB: db, Metrics: metrics.New(), Log: log}

	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, using in-process locks", zap.Error(err))
		} else {
			a.Redis = rdb
			log.Info("redis connected")
		}
	}

	a.Persons = sqlstore.NewPersonRepo(db)
	a.Notifications = sqlstore.NewNotificationRepo(db)

	a.Registry = registry.NewService(a.Persons,
		registry.WithThreshold(cfg.App.SimilarityThreshold),
		registry.WithLogger(log.Named("registry")),
		registry.WithMetrics(a.Metrics))
	a.Importer = importer.NewService(a.Persons, log.Named("importer"), a.Metrics)
	a.Settings = settings.NewService(sqlstore.NewSettingsRepo(db), cfg.App.Maintenance, log.Named("settings"))
	a.Guard = guard.New(a.Redis, cfg.Server.GuardTTL(), log.Named("guard"), a.Metrics)

	a.Calendar = notify.NewCalendar(cfg.App.Location(), nil)
	a.Selector = notify.NewSelector(a.Persons, a.Calendar)
	locks := distlock.NewFactory(a.Redis, db.DB, db.Dialect() == sqlstore.DialectPostgres)
	log.Info("notification locks", zap.String("backend", locks.Backend()))
	gate := notify.NewGate(a.Notifications, locks, a.Calendar, cfg.Notify.LockTTL(), log.Named("gate"))

	opts := []notify.Option{
		notify.WithSendTimeout(cfg.Notify.SendTimeout()),
		notify.WithLogger(log.Named("notifier")),
		notify.WithMetrics(a.Metrics),
	}
	if email, ok := a.emailSender(ctx); ok {
		opts = append(opts, notify.WithEmail(email))
	}
	if cfg.SMS.Configured() {
		opts = append(opts, notify.WithSMS(channel.NewTwilioSender(cfg.SMS, log.Named("twilio"))))
	} else {
		log.Info("sms transport not configured, channel disabled")
	}
	a.Notifier = notify.NewNotifier(a.Selector, gate, a.Settings, notify.NewRenderer(cfg.App.PublicURL), opts...)

	return a, nil
}

func (a *App) emailSender(ctx context.Context) (sending.EmailSender, bool) {
	cfg := a.Config.Email
	if cfg.Provider != "ses" && !cfg.Gmail.Configured() {
		a.Log.Info("gmail credentials missing, email channel disabled")
		return nil, false
	}
	sender, err := channel.NewEmailSender(ctx, cfg, a.Log.Named("email"))
	if err != nil {
		a.Log.Warn("email transport unavailable, channel disabled", zap.Error(err))
		return nil, false
	}
	a.Log.Info("email transport ready", zap.String("provider", cfg.Provider))
	return sender, true
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}
