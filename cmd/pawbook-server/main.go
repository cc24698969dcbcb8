package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"pawbook/backend/internal/config"
	"pawbook/backend/internal/events"
	"pawbook/backend/internal/metrics"
	"pawbook/backend/internal/service/availability"
	"pawbook/backend/internal/service/bookings"
	"pawbook/backend/internal/service/catalog"
	"pawbook/backend/internal/store/postgres"
	"pawbook/backend/internal/telemetry"
	grpcTransport "pawbook/backend/internal/transport/grpc"
)

const serviceName = "pawbook-server"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	grpcAddr := net.JoinHostPort(cfg.GRPCHost, strconv.Itoa(cfg.GRPCPort))
	log.Info("starting",
		slog.String("grpc_addr", grpcAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("slot_granularity", cfg.SlotGranularity),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracing setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       cfg.DBSlowQuery,
		Log:             log,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if pending, err := postgres.PendingMigrations(ctx, db); err != nil {
		log.Warn("migration status unknown", slog.Any("err", err))
	} else if len(pending) > 0 {
		log.Warn("database has pending migrations; run pawbookctl migrate", slog.Any("pending", pending))
	}

	cat := catalog.New(postgres.NewServiceRepo(db), log)
	if cfg.CatalogRedisURL != "" {
		opts, err := redis.ParseURL(cfg.CatalogRedisURL)
		if err != nil {
			log.Error("catalog redis url invalid", slog.Any("err", err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		cat.UseRedisCache(rdb, cfg.CatalogCacheTTL)
		log.Info("catalog cache enabled", slog.Duration("ttl", cfg.CatalogCacheTTL))
	}

	bookingRepo := postgres.NewBookingRepo(db)
	resolver := availability.NewResolver(availability.Stores{
		Employees: postgres.NewEmployeeRepo(db),
		Templates: postgres.NewShiftTemplateRepo(db),
		Overrides: postgres.NewShiftOverrideRepo(db),
		Breaks:    postgres.NewBreakTemplateRepo(db),
		Bookings:  bookingRepo,
	}, availability.WithGranularity(cfg.SlotGranularity), availability.WithCatalog(cat))

	table := bookings.DefaultTransitionTable()
	if cfg.TransitionsFile != "" {
		table, err = bookings.LoadTransitionTable(cfg.TransitionsFile)
		if err != nil {
			log.Error("transition table load failed", slog.Any("err", err), slog.String("path", cfg.TransitionsFile))
			os.Exit(1)
		}
		log.Info("transition table loaded", slog.String("path", cfg.TransitionsFile))
	}

	bus := events.NewBus(log)
	logEvent := func(ctx context.Context, evt events.StatusChanged) error {
		log.Debug("booking event",
			slog.String("type", evt.Type),
			slog.String("booking_id", evt.BookingID.String()),
			slog.String("to", string(evt.NewStatus)),
		)
		return nil
	}
	bus.Subscribe(events.TypeBookingCreated, logEvent)
	bus.Subscribe(events.TypeStatusChanged, logEvent)

	manager := bookings.NewManager(resolver, bookingRepo,
		bookings.WithCatalog(cat),
		bookings.WithTransitionTable(table),
		bookings.WithPublisher(bus),
		bookings.WithLogger(log),
	)

	var writer events.MessageWriter
	if kw := events.NewKafkaWriter(cfg.KafkaBrokers); kw != nil {
		defer func() { _ = kw.Close() }()
		writer = kw
	}
	relay := events.NewRelay(postgres.NewOutboxRepo(db), writer, log, events.RelayConfig{
		PollEvery: cfg.EventPollInterval,
		BatchSize: cfg.EventBatchSize,
	})
	go relay.Run(ctx)

	metrics.Register()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped with error", slog.Any("err", err))
			}
		}()
		log.Info("metrics server started", slog.String("metrics_addr", cfg.MetricsAddr))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingServer(resolver, manager, log))

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", grpcAddr))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", grpcAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, metricsServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, metricsServer *http.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
