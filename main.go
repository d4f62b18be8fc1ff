package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/booking"
	"github.com/hidenkeys/innkeeper/config"
	"github.com/hidenkeys/innkeeper/gateway"
	"github.com/hidenkeys/innkeeper/guest"
	"github.com/hidenkeys/innkeeper/housekeeping"
	"github.com/hidenkeys/innkeeper/ledger"
	"github.com/hidenkeys/innkeeper/lock"
	"github.com/hidenkeys/innkeeper/notify"
	"github.com/hidenkeys/innkeeper/obs"
	"github.com/hidenkeys/innkeeper/report"
	"github.com/hidenkeys/innkeeper/room"
	"github.com/hidenkeys/innkeeper/storage"
	"github.com/hidenkeys/innkeeper/user"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("innkeeper stopped")
	}
}

func run(ctx context.Context, cfg config.App, log *logrus.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.Name, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}()

	db, err := storage.ConnectDB(cfg.DBDriver, cfg.DBDSN, cfg.DBLogLevel)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return err
	}
	store := storage.New(db)
	if err := user.SeedAdmin(ctx, store, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		return err
	}

	var locker lock.Locker = lock.NewLocal(cfg.LockWait)
	if cfg.RedisURL != "" {
		client, err := storage.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedis(client, cfg.LockWait)
		log.Info("booking locks held in redis")
	}

	var gw gateway.Gateway = gateway.Offline{}
	if cfg.OmiseSecretKey != "" {
		o, err := gateway.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			return err
		}
		gw = o
	}

	notifiers := notify.Multi{notify.Log{Logger: log}}
	if cfg.RabbitURL != "" {
		pub, err := notify.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	if cfg.SMTPHost != "" {
		notifiers = append(notifiers, notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, store, log))
	}

	verifier, err := auth.NewVerifier(auth.Config{Secret: cfg.JWTSecret, JWKSURL: cfg.JWKSURL})
	if err != nil {
		return err
	}
	defer verifier.Close()

	app := newApp(cfg, deps{store: store, locker: locker, gateway: gw, notifier: notifiers, verifier: verifier}, log)

	if _, err := os.Stat(cfg.StaticDir); err == nil {
		app.Static("/", cfg.StaticDir)
		// client-side routes fall back to the SPA entry point
		app.Get("/*", func(c fiber.Ctx) error {
			return c.SendFile(cfg.StaticDir + "/index.html")
		})
	}

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(cfg.HTTPAddr)
	}()
	log.WithField("addr", cfg.HTTPAddr).Info("innkeeper listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

type deps struct {
	store    *storage.Store
	locker   lock.Locker
	gateway  gateway.Gateway
	notifier notify.Notifier
	verifier *auth.Verifier
}

// newApp wires the services over d and mounts the API under /api/v1.
func newApp(cfg config.App, d deps, log *logrus.Logger) *fiber.App {
	syncer := room.NewSynchronizer(d.store, log)
	agg := ledger.NewAggregator(d.store, d.gateway, d.locker, d.notifier, log, ledger.Config{
		Currency:         cfg.Currency,
		GatewayTimeout:   cfg.GatewayTimeout,
		OverpayTolerance: cfg.OverpayTolerance,
		LockTTL:          cfg.LockTTL,
	})
	tasks := housekeeping.NewService(d.store, syncer, d.notifier, log)
	bookings := booking.NewService(d.store, agg, syncer, tasks, d.locker, d.notifier, log, booking.Config{
		CancelCutoff: cfg.CancelCutoff,
		NoShowWindow: cfg.NoShowWindow,
		LockTTL:      cfg.LockTTL,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.Name,
		ErrorHandler: apperr.Handler(log),
	})
	app.Use(recoverer.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: log.Out}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	registerRoutes(app.Group("/api/v1"), d.verifier, handlers{
		users:    user.NewHandler(d.store, cfg.JWTSecret, cfg.TokenTTL),
		bookings: booking.NewHandler(bookings),
		payments: ledger.NewHandler(agg, cfg.WebhookSecret),
		rooms:    room.NewHandler(d.store, syncer),
		tasks:    housekeeping.NewHandler(tasks),
		guests:   guest.NewHandler(d.store),
		reports:  report.NewHandler(d.store),
	})

	return app
}
