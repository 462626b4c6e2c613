package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/bootstrap"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/explore-api/api"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := bootstrap.Tracing("explore-api")
	defer func() { _ = shutdownTracing(context.Background()) }()

	authCfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}
	transportCfg, err := config.LoadTransport()
	if err != nil {
		log.Fatalf("transport config: %v", err)
	}
	storageCfg, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}
	vectorCfg, err := config.LoadVector()
	if err != nil {
		log.Fatalf("vector config: %v", err)
	}

	targets := transport.TargetsFromEnv()
	t, err := bootstrap.Transport(ctx, transportCfg, storageCfg)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	authenticator, closeAuth, err := bootstrap.Authenticator(ctx, authCfg, storageCfg, t, targets, logger)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}
	defer closeAuth()

	vectors, err := storage.NewVectorStore(storage.VectorConfig{
		Host:       vectorCfg.Host,
		Port:       vectorCfg.Port,
		APIKey:     vectorCfg.APIKey,
		UseTLS:     vectorCfg.UseTLS,
		Collection: vectorCfg.Collection,
		Dimension:  uint64(vectorCfg.Dimension),
	})
	if err != nil {
		log.Fatalf("vector store: %v", err)
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		log.Fatalf("vector collection: %v", err)
	}

	e := gateway.NewServer("explore_api")
	svc := api.NewService(t, targets.Resolve(transport.RoleEmbed), vectors, logger)
	api.Register(e, bootstrap.Gate(authenticator, authCfg, logger), svc, logger)

	if err := gateway.Serve(ctx, e, gateway.ListenAddr(":8080"), logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
