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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/hugg-chat/internal/app"
	"github.com/suPer8Hu/hugg-chat/internal/auth"
	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/config"
	"github.com/suPer8Hu/hugg-chat/internal/db"
	"github.com/suPer8Hu/hugg-chat/internal/httpapi"
	"github.com/suPer8Hu/hugg-chat/internal/logging"
	"github.com/suPer8Hu/hugg-chat/internal/ratelimit"
	"github.com/suPer8Hu/hugg-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/hugg-chat/internal/store/redisstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := app.OpenDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	orch, err := app.NewOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []chat.Option{chat.WithLogger(log)}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			// titles stay "New Chat"; the API still works
			log.Warn("rabbitmq unavailable, title jobs disabled", zap.Error(err))
		} else {
			defer pub.Close()
			opts = append(opts, chat.WithTitlePublisher(pub))
		}
	}

	messages, sessions := app.NewStores(gdb, cfg)
	svc := chat.NewService(messages, sessions, orch, cfg.ChatContextWindowSize, opts...)

	var limiter ratelimit.Limiter
	if cfg.PromptRateLimit > 0 {
		limiter = ratelimit.NewLocalLimiter(cfg.PromptRateLimit, time.Minute, cfg.PromptRateBurst)
		if cfg.RedisAddr != "" {
			rds, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				log.Warn("redis unavailable, using in-process rate limiter", zap.Error(err))
			} else {
				defer rds.Close()
				limiter = ratelimit.NewRedisLimiter(rds, cfg.PromptRateLimit, time.Minute)
			}
		}
	}

	if cfg.LogFormat != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Deps{
		DB:      gdb,
		ChatSvc: svc,
		Auth:    auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		Limiter: limiter,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("ai_provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
