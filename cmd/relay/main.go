// Command relay serves objects from S3 and values cached in Redis as
// streamed HTTP and websocket responses.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/config"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/server"
	"github.com/dmitrymomot/relay/integration/database/redis"
	"github.com/dmitrymomot/relay/integration/storage/s3"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"relay"`

	Server server.Config
	Body   body.Config
	S3     s3.Config
	Redis  redis.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("relay stopped", logger.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg appConfig) *slog.Logger {
	level := logger.WithLevel(logger.ParseLevel(cfg.Body.LogLevel))
	if cfg.Env == "production" {
		return logger.New(logger.WithProduction(cfg.Service), level)
	}
	return logger.New(logger.WithDevelopment(cfg.Service), level)
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	d := deps{
		log:    log,
		body:   cfg.Body,
		bucket: cfg.S3.Bucket,
		chunk:  cfg.Redis.BlobChunkSize,
	}

	if cfg.S3.Bucket != "" {
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return err
		}
		d.objects = client
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("closing redis client", logger.Error(err))
		}
	}()
	d.cache = rdb

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		return err
	}

	err = srv.Run(ctx, routes(d, redis.Healthcheck(rdb)))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
