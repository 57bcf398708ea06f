package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/hash"
	"github.com/Skotchmaster/food_order/internal/httpserver"
	"github.com/Skotchmaster/food_order/internal/middleware/csrf"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/notify"
	"github.com/Skotchmaster/food_order/internal/payment"
	"github.com/Skotchmaster/food_order/internal/ratelimit"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/internal/search"
	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/internal/settings"
	"github.com/Skotchmaster/food_order/pkg/authclient"
	"github.com/Skotchmaster/food_order/pkg/config"
	"github.com/Skotchmaster/food_order/pkg/db"
	"github.com/Skotchmaster/food_order/pkg/logging"
	authmw "github.com/Skotchmaster/food_order/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/food_order/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()
	cfg.MustValid()

	l := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	if err := run(cfg, l); err != nil {
		l.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, l *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Order.TimeZone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Order.TimeZone, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL, models.All()...)
	cancel()
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer sqlDB.Close()

	r := repo.New(gdb)
	cache := settings.NewCache(r, cfg.Order.SettingsTTL)
	hasher, err := hash.NewTokenHasher(cfg.CartTokenSecret)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Order.RateLimit, cfg.Order.RateWindow)
	} else {
		l.Warn("redis not configured, using in-process rate limiter")
		limiter = ratelimit.NewMemoryLimiter(cfg.Order.RateLimit, cfg.Order.RateWindow, nil)
	}

	var gateway payment.Gateway
	switch cfg.Payment.Provider {
	case "stripe":
		sg, err := payment.NewStripeGateway(payment.StripeConfig{
			APIKey:        cfg.Payment.StripeSecretKey,
			WebhookSecret: cfg.Payment.StripeWebhookSecret,
		})
		if err != nil {
			return err
		}
		gateway = sg
	default:
		l.Warn("using demo payment gateway, orders will be marked as demo")
		gateway = payment.NewDemoGateway(cfg.Payment.DemoWebhookSecret)
	}

	dispatcher := events.NewDispatcher(r, l.With("component", "outbox"), cfg.Order.OutboxInterval)

	var notifier notify.Notifier = &notify.LogNotifier{Log: l.With("component", "notify")}
	if len(cfg.KafkaBrokers) > 0 {
		nw := events.NewKafkaWriter(cfg.KafkaBrokers, notify.NotificationsTopic)
		defer nw.Close()
		notifier = &notify.KafkaNotifier{Writer: nw}

		ew := events.NewKafkaWriter(cfg.KafkaBrokers, events.OrderEventsTopic)
		defer ew.Close()
		forwarder := &events.KafkaForwarder{Writer: ew}
		dispatcher.SubscribeAll("kafka_forward", forwarder.Handle)
	}

	var index service.OrderSearcher
	if cfg.ESURL != "" {
		es, err := search.NewClient(ctx, search.ClientConfig{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
		}, l)
		if err != nil {
			return err
		}
		index = &search.OrderIndex{ES: es, Index: cfg.ESOrderIndex}
	}

	loyalty := &service.LoyaltyService{
		Repo:          r,
		EarnRate:      cfg.Order.PointsEarnRate,
		PointValue:    cfg.Order.PointValue,
		MinRedemption: cfg.Order.MinPointsRedemption,
	}
	guard := &service.StoreGuard{Settings: cache, Location: loc}
	cart := &service.CartService{Repo: r, Settings: cache, Hasher: hasher, MaxItems: cfg.Order.MaxCartItems}
	checkout := &service.CheckoutService{
		Repo:    r,
		Gateway: gateway,
		Loyalty: loyalty,
		Guard:   guard,
		Limiter: limiter,
		Hasher:  hasher,
		Events:  dispatcher,
		Pricing: domain.PricingPolicy{
			VATRate:     cfg.Order.VATRate,
			DeliveryFee: cfg.Order.DeliveryFee,
		},
		Currency: cfg.Order.Currency,
	}
	orders := &service.OrderService{
		Repo:     r,
		Events:   dispatcher,
		Index:    index,
		Location: loc,
	}

	handlers := &service.EventHandlers{
		Repo:     r,
		Loyalty:  loyalty,
		Notifier: notifier,
		Index:    index,
		Log:      l.With("component", "handlers"),
	}
	handlers.Register(dispatcher)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()

	var refresher authmw.Refresher
	if cfg.AuthHTTPURL != "" {
		refresher = authclient.NewClient(cfg.AuthHTTPURL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.SkipPrefixes = []string{"/webhooks/", "/health/"}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.Secure())
	e.Use(loggingmw.RequestLogger(l))
	e.Use(csrf.Middleware(csrfCfg))

	httpserver.Register(e, &httpserver.Deps{
		CartHandler:     &httpserver.CartHTTP{Svc: cart},
		CheckoutHandler: &httpserver.CheckoutHTTP{Svc: checkout, Guard: guard},
		OrderHandler:    &httpserver.OrderHTTP{Svc: orders, Cart: cart, Location: loc},
		LoyaltyHandler:  &httpserver.LoyaltyHTTP{Svc: loyalty},
		Session:         authmw.NewSessionMiddleware(cfg.JWTAccessSecret, refresher),
		DB:              sqlDB,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		l.Info("server_starting", "addr", addr, "payment_provider", cfg.Payment.Provider)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopDispatch()
		<-dispatchDone
		return fmt.Errorf("echo start: %w", err)
	}
	l.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("echo_shutdown_failed", "error", err)
	}

	stopDispatch()
	<-dispatchDone

	l.Info("server_stopped")
	return nil
}
