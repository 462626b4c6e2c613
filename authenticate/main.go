package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/authenticate/api"
	"github.com/peakee-labs/blinders/bootstrap"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/gateway"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := bootstrap.Tracing("authenticate")
	defer func() { _ = shutdownTracing(context.Background()) }()

	authCfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}
	if authCfg.Mode != "local" {
		log.Fatal("authenticate function requires AUTH_MODE=local")
	}
	storageCfg, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}

	authenticator, closeAuth, err := bootstrap.Authenticator(ctx, authCfg, storageCfg, nil, nil, logger)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}
	defer closeAuth()

	e := gateway.NewServer("authenticate")
	api.Register(e, authenticator, logger)

	if err := gateway.Serve(ctx, e, gateway.ListenAddr(":8080"), logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
