// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/fetch"
	"github.com/poiesic/datakiln/ingest"
	"github.com/poiesic/datakiln/service"
	"github.com/poiesic/datakiln/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "ingestd",
		Usage: "HTTP ingestion daemon for the dataset pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to BadgerDB database directory",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "blobs",
				Usage: "Directory for filesystem blob storage",
			},
			&cli.StringFlag{
				Name:  "minio-endpoint",
				Usage: "S3-compatible endpoint for blob storage (overrides --blobs)",
			},
			&cli.StringFlag{
				Name:    "minio-access-key",
				Usage:   "Access key for the S3-compatible endpoint",
				EnvVars: []string{"MINIO_ACCESS_KEY"},
			},
			&cli.StringFlag{
				Name:    "minio-secret-key",
				Usage:   "Secret key for the S3-compatible endpoint",
				EnvVars: []string{"MINIO_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:  "minio-bucket",
				Usage: "Bucket name on the S3-compatible endpoint",
				Value: "datakiln",
			},
			&cli.BoolFlag{
				Name:  "minio-ssl",
				Usage: "Use TLS when talking to the S3-compatible endpoint",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to serve HTTP on",
				Value: ":8080",
			},
			&cli.DurationFlag{
				Name:  "fetch-timeout",
				Usage: "Timeout for fetching source content",
				Value: 30 * time.Second,
			},
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "Worker pool size for batch ingestion (0 = auto)",
			},
		},
		Before: setupLogger,
		Action: serveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	assets, err := badger.NewAssetRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create asset repository: %w", err)
	}
	defer assets.Close()

	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		return err
	}
	defer blobs.Close()

	fetcher := fetch.New(fetch.WithTimeout(c.Duration("fetch-timeout")))

	var opts []ingest.Option
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, ingest.WithPoolSize(size))
	}
	ingestor, err := ingest.New(assets, blobs, fetcher, opts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}
	defer ingestor.Release()

	server, err := service.NewServer(ingestor)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.String("listen"),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ingest service listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func openBlobStore(ctx context.Context, c *cli.Context) (blob.Store, error) {
	if endpoint := c.String("minio-endpoint"); endpoint != "" {
		store, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  endpoint,
			AccessKey: c.String("minio-access-key"),
			SecretKey: c.String("minio-secret-key"),
			Bucket:    c.String("minio-bucket"),
			UseSSL:    c.Bool("minio-ssl"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open object store: %w", err)
		}
		return store, nil
	}

	dir := c.String("blobs")
	if dir == "" {
		return nil, fmt.Errorf("either --blobs or --minio-endpoint is required")
	}
	store, err := blob.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob directory: %w", err)
	}
	return store, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
