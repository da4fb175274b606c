package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/hugg-chat/internal/app"
	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/config"
	"github.com/suPer8Hu/hugg-chat/internal/db"
	"github.com/suPer8Hu/hugg-chat/internal/logging"
	"github.com/suPer8Hu/hugg-chat/internal/store/rabbitmq"
)

const jobTimeout = 2 * time.Minute

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

	gdb, err := app.OpenDB(cfg)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer func() { _ = db.Close(gdb) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := app.NewOrchestrator(ctx, cfg)
	if err != nil {
		log.Fatal("ai provider", zap.Error(err))
	}
	messages, sessions := app.NewStores(gdb, cfg)
	svc := chat.NewService(messages, sessions, orch, cfg.ChatContextWindowSize, chat.WithLogger(log))

	var wg sync.WaitGroup

	// orphan reaper
	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeLoop(ctx, svc, cfg.PurgeInterval, log)
	}()

	if cfg.RabbitURL == "" {
		log.Warn("RABBIT_URL not set, title jobs disabled; running reaper only")
		<-ctx.Done()
		wg.Wait()
		return
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatal("rabbit consumer", zap.Error(err))
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				handleDelivery(ctx, svc, consumer, d, wlog)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error("delivery channel closed")
				msgs = nil
				stop()
				continue
			}
			jobs <- d
		}
	}
}

func handleDelivery(ctx context.Context, svc *chat.Service, consumer *rabbitmq.Consumer, d amqp.Delivery, log *zap.Logger) {
	job, err := rabbitmq.DecodeTitleJob(d.Body)
	if err != nil {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	jctx, cancel := context.WithTimeout(ctx, jobTimeout)
	err = svc.ApplyGeneratedTitle(jctx, job)
	cancel()

	if err != nil {
		dead, rerr := consumer.Retry(ctx, d)
		log.Warn("title job failed",
			zap.String("chat_id", logging.Short(job.ChatID)),
			zap.Duration("cost", time.Since(start)),
			zap.Bool("dead_lettered", dead),
			zap.Error(err),
			zap.NamedError("retry_error", rerr))
		return
	}
	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", zap.String("chat_id", logging.Short(job.ChatID)), zap.Error(err))
	}
}

func purgeLoop(ctx context.Context, svc *chat.Service, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := svc.PurgeDeletedChats(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn("purge deleted chats failed", zap.Error(err))
		} else if n > 0 {
			log.Info("purged messages of deleted chats", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
