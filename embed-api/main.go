package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/bootstrap"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/embed-api/api"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/llm"
	"github.com/peakee-labs/blinders/transport"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := bootstrap.Tracing("embed-api")
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
	llmCfg, err := config.LoadLLM()
	if err != nil {
		log.Fatalf("llm config: %v", err)
	}

	t, err := bootstrap.Transport(ctx, transportCfg, storageCfg)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	authenticator, closeAuth, err := bootstrap.Authenticator(ctx, authCfg, storageCfg, t, transport.TargetsFromEnv(), logger)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}
	defer closeAuth()

	e := gateway.NewServer("embed_api")
	api.Register(e, bootstrap.Gate(authenticator, authCfg, logger), llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		EmbeddingModel: llmCfg.EmbeddingModel,
	}), logger)

	if err := gateway.Serve(ctx, e, gateway.ListenAddr(":8080"), logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
