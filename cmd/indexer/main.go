// Command indexer consumes ingest and delete events from Kafka, commits
// them to the index on disk and reports each outcome to the catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/app"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	svc, err := app.Bootstrap("indexer", *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()
	cfg := svc.Config
	cfg.Index.ReadOnly = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := svc.OpenIndex()
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	// Without Postgres the index is still updated; only status tracking is lost.
	var statuses consumer.StatusUpdater
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, document status tracking disabled", "error", err)
	} else {
		svc.OnClose(func(context.Context) error { return db.Close() })
		svc.Health.RegisterOptional("postgres", health.Ping(db.Ping))
		cat := catalog.New(db)
		if err := cat.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare catalog", "error", err)
			os.Exit(1)
		}
		statuses = cat
	}

	h := consumer.New(engine, statuses)
	ingest := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, h.HandleIngest)
	deletes := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentDelete, h.HandleDelete)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, engine.Stats(), slog.Default())
	})

	slog.Info("indexer service ready, consuming from kafka",
		"ingest_topic", cfg.Kafka.Topics.DocumentIngest,
		"delete_topic", cfg.Kafka.Topics.DocumentDelete,
		"group", cfg.Kafka.ConsumerGroup,
		"data_dir", cfg.Index.DataDir,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingest.Start(gctx) })
	g.Go(func() error { return deletes.Start(gctx) })
	g.Go(func() error { return svc.ListenAndServe(gctx, svc.Handler(mux)) })
	if err := g.Wait(); err != nil {
		slog.Error("indexer service error", "error", err)
		os.Exit(1)
	}
}
