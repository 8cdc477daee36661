package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"homehelper/internal/client"
	"homehelper/internal/config"
	"homehelper/internal/database"
	"homehelper/internal/domain"
	"homehelper/internal/events"
	"homehelper/internal/logging"
	"homehelper/internal/metrics"
	"homehelper/internal/models"
	"homehelper/internal/notify"
	"homehelper/internal/repository"
	"homehelper/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// runtime holds everything one command needs. close releases it in reverse
// order of construction.
type runtime struct {
	cfg      *config.Config
	logger   *zerolog.Logger
	redis    *redis.Client
	db       *database.DB
	bus      *events.EventBus
	kafka    *events.KafkaForwarder
	notifier notify.Notifier
	sessions *service.SessionService
	session  *models.Session
	api      *client.Client

	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func setup(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	rt := &runtime{cfg: cfg, logger: &logger}
	if closer != nil {
		rt.closers = append(rt.closers, func() { _ = closer.Close() })
	}

	rt.redis = initRedis(ctx, cfg, rt.logger)
	if rt.redis != nil {
		rt.closers = append(rt.closers, func() { _ = repository.Close(rt.redis) })
	}

	if cfg.Database.Path != "" {
		db, err := database.NewDB(cfg.Database.Path, rt.logger)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("init database: %w", err)
		}
		rt.db = db
		rt.closers = append(rt.closers, func() { _ = db.Close() })
	}

	repo, err := sessionRepository(cfg, rt)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.sessions = service.NewSessionService(repo, rt.logger)

	seed := &models.Session{
		Token: cfg.Session.Token,
		User: models.User{
			ID:   cfg.Session.UserID,
			Name: cfg.Session.UserName,
			Role: cfg.Tracker.Role,
		},
	}
	session, err := rt.sessions.Bootstrap(ctx, cfg.Session.Key, seed)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("load session: %w", err)
	}
	rt.session = session

	rt.api = client.New(cfg.API,
		client.WithLogger(rt.logger),
		client.WithToken(func() string { return rt.session.Token }),
	)
	if rt.redis != nil && cfg.API.CacheTTL() > 0 {
		rt.api.UseRedisCache(rt.redis, cfg.API.CacheTTL())
	}

	rt.bus = events.NewEventBus().WithLogger(rt.logger)
	rt.notifier = initNotifier(cfg, rt.logger)

	return rt, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	rc := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, rc); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = rc.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return rc
}

func sessionRepository(cfg *config.Config, rt *runtime) (domain.SessionRepository, error) {
	memory := repository.NewMemorySessionRepository(cfg.Session.TTL())
	switch cfg.Session.Store {
	case "redis":
		if rt.redis == nil {
			rt.logger.Warn().Msg("redis unavailable, sessions kept in memory")
			return memory, nil
		}
		primary := repository.NewRedisSessionRepository(rt.redis, cfg.Session.TTL())
		return repository.NewFailoverSessionRepository(primary, memory, rt.logger), nil
	case "sqlite":
		if rt.db == nil {
			return nil, fmt.Errorf("session store sqlite requires database.path")
		}
		return repository.NewFailoverSessionRepository(rt.db, memory, rt.logger), nil
	default:
		return memory, nil
	}
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if !cfg.Notify.Telegram.Enabled {
		return notifiers
	}
	bot, err := notify.NewTelegramBot(cfg.Notify.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return notifiers
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return append(notifiers, notify.NewTelegramNotifier(bot, cfg.Notify.Telegram.ChatID, logger))
}

// startKafka attaches a forwarder to the bus. The returned stop flushes it.
func (r *runtime) startKafka(ctx context.Context) (stop func()) {
	if !r.cfg.Events.Kafka.Enabled {
		return func() {}
	}
	writer := events.NewKafkaWriter(r.cfg.Events.Kafka)
	r.kafka = events.NewKafkaForwarder(writer, r.logger)
	r.kafka.Attach(r.bus)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.kafka.Run(runCtx)
	}()
	r.logger.Info().Strs("brokers", r.cfg.Events.Kafka.Brokers).Str("topic", r.cfg.Events.Kafka.Topic).Msg("kafka forwarding enabled")

	return func() {
		cancel()
		<-done
		if err := r.kafka.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("kafka close")
		}
	}
}

func (r *runtime) startMetrics(ctx context.Context) {
	if !r.cfg.Monitoring.PrometheusEnabled {
		return
	}
	metrics.Register()
	go startMetricsServer(ctx, r.cfg.Monitoring.PrometheusPort, r.logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func (r *runtime) tracker(confirmer domain.Confirmer) (*service.BookingTracker, error) {
	opts := []service.TrackerOption{
		service.WithConfirmer(confirmer),
		service.WithTick(r.cfg.Tracker.Tick()),
		service.WithPollInterval(r.cfg.Tracker.PollInterval()),
		service.WithToastDuration(r.cfg.Tracker.ToastDuration()),
		service.WithLocation(r.cfg.Tracker.Location()),
	}
	if r.db != nil {
		opts = append(opts, service.WithActionLog(r.db))
	}
	return service.NewBookingTracker(r.api, r.session, r.notifier, r.bus, r.logger, opts...)
}

// promptConfirmer asks on the terminal. assumeYes skips the question.
type promptConfirmer struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool
}

func (p promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	if p.assumeYes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Fscanln(p.in, &answer); err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func stdConfirmer(assumeYes bool) promptConfirmer {
	return promptConfirmer{in: os.Stdin, out: os.Stderr, assumeYes: assumeYes}
}
