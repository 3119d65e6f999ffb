package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config/di"
	"go.uber.org/zap"
)

var container *di.Container

func main() {
	config.Init("marketplace")
	cfg := config.Get()

	var err error
	if container, err = di.NewContainer(cfg); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer func() {
		if err := container.Delete(); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to close services")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := container.GetEventManager()
	manager.AddListenerForAll(container.GetHistory().Record)

	if len(cfg.ElasticSearch.Hosts) != 0 {
		elastic, ok := container.GetElastic()
		if !ok {
			zap.L().With(zap.Strings("hosts", cfg.ElasticSearch.Hosts)).Fatal("Failed to connect to ES")
		}
		if err := elastic.InstallMappings(ctx); err != nil {
			zap.L().With(zap.Error(err)).Fatal("Failed to install mappings")
		}
	}
	if indexer, ok := container.GetActionIndexer(); ok {
		manager.AddListenerForAll(indexer.Record)
		go indexer.Run(ctx, 5*time.Second)
	}
	if publisher, ok := container.GetActionPublisher(); ok {
		manager.AddListenerForAll(publisher.Publish)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           container.GetApiServer().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdown); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to stop marketplace")
		}
	}()

	zap.L().With(
		zap.String("port", cfg.ApiPort),
		zap.String("marketplace", cfg.Marketplace.Address.String()),
		zap.Uint64("saleFee", container.GetFees().Fraction()),
		zap.Bool("sandbox", cfg.Sandbox),
	).Info("Marketplace Started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().With(zap.Error(err)).Error("Failed to start marketplace")
	}
}
