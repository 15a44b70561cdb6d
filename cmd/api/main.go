package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	v1 "github.com/yonigrin7234/moveboss-pro-sub002/cmd/api/router/v1"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/config"
	cacheAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/cache/adapter"
	cport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/cache/port"
	feedAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/adapter"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/database"
	gwAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/pushgateway/adapter"
	gwport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/pushgateway/port"
	queueAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/queue/adapter"
	qport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/queue/port"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/realtime"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/task"
	repoAdapter "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
	httpHandler "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/http"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/presentation/middleware"
	"github.com/yonigrin7234/moveboss-pro-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("production")
		l.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.AppEnv)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := feedAdapter.NewBroker(log, 0)
	defer broker.Close()

	repo, closeRepo := openRepository(ctx, cfg, broker, log)
	defer closeRepo()

	cache := openCache(ctx, cfg, log)
	defer cache.Close()
	repo = repoAdapter.NewCachedMessagingRepository(repo, cache, cfg.ProfileCacheTTL, log)

	router := realtime.NewRouter()
	defer router.Close()

	var gateway gwport.Gateway
	if cfg.PushAMQPURL != "" {
		gw, err := gwAdapter.NewAMQPGateway(cfg.PushAMQPURL, cfg.PushExchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect push gateway")
		}
		defer gw.Close()
		gateway = gw
	}

	client, worker := openQueue(cfg, log)
	defer client.Close()
	task.RegisterNotifyParticipantsTask(worker, repo, task.NewRealtimeNotifier(router, gateway, log), log)
	go func() {
		if err := worker.Run(ctx); err != nil {
			log.Error().Err(err).Msg("queue worker stopped")
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(cfg.Origins()), middleware.Logging(log))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})
	v1.RegisterRoutes(r, httpHandler.Deps{
		Repo:      repo,
		Feed:      broker,
		Router:    router,
		Notifier:  task.NewScheduler(client),
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewSendRateLimiter(cfg.SendRatePerMinute, 10),
		Log:       log,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// openRepository connects to Postgres and bridges its change notifications
// into the broker. Without DB_URL an in-memory store is used.
func openRepository(ctx context.Context, cfg *config.Config, broker *feedAdapter.Broker, log zerolog.Logger) (repository.MessagingRepository, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DB_URL not set, using in-memory storage")
		return memory.New(broker), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := database.Connect(connectCtx, cfg.DatabaseURL, database.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	listener := feedAdapter.NewPgListener(pool, broker, log)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("change listener stopped")
		}
	}()
	return repoAdapter.NewPgMessagingRepository(pool), pool.Close
}

func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) cport.Cache {
	if cfg.RedisURL == "" {
		return cacheAdapter.NewMemoryCache()
	}
	c, err := cacheAdapter.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory profile cache")
		return cacheAdapter.NewMemoryCache()
	}
	return c
}

func openQueue(cfg *config.Config, log zerolog.Logger) (qport.Client, qport.Server) {
	if cfg.RedisURL == "" {
		q := queueAdapter.NewInlineQueue(log)
		return q, q
	}
	client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("asynq client")
	}
	server, err := queueAdapter.NewAsynqServer(cfg.RedisURL, queueAdapter.ServerOptions{
		Concurrency: cfg.AsynqConcurrency,
		Queues:      cfg.AsynqQueues,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("asynq server")
	}
	return client, server
}
