package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/bootstrap"
	"github.com/peakee-labs/blinders/collector/api"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging()
	logger.Info("collector starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := bootstrap.Tracing("collector")
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}
	if st.ConnectionString == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	idle, err := config.Duration("COLLECT_IDLE_INTERVAL", time.Second)
	if err != nil {
		log.Fatal(err)
	}
	visibility, err := config.Duration("COLLECT_VISIBILITY_TIMEOUT", 30*time.Second)
	if err != nil {
		log.Fatal(err)
	}

	queueName := string(transport.TargetsFromEnv().Resolve(transport.RoleCollect))
	if queueName == "" {
		queueName = st.CollectQueue
	}
	queue, err := storage.NewQueue(st.ConnectionString, queueName, visibility)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}
	store, err := storage.New(st.ConnectionString, st.UsersTable, st.ExplainLogsTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	c := &collector{queue: queue, store: store, log: logger, idle: idle}
	if opts := st.Redis(); opts != nil {
		rc := redis.NewClient(opts)
		defer rc.Close()
		c.dedupe = storage.NewRedisDeduper(rc, st.DedupeTTL)
	} else {
		logger.Warn("no redis configured, redelivered events may be stored twice")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ctx)
	}()

	e := gateway.NewServer("collector")
	api.Register(e, store, logger)
	if err := gateway.Serve(ctx, e, gateway.ListenAddr(":8080"), logger); err != nil {
		logger.WithError(err).Error("serve")
		stop()
	}
	<-done
	logger.Info("collector stopped")
}
