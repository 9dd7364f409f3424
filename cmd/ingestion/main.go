// Command ingestion accepts uploads, records them in the document catalog
// and publishes them to Kafka for the indexer service.
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

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/app"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	svc, err := app.Bootstrap("ingestion", *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()
	cfg := svc.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	svc.OnClose(func(context.Context) error { return db.Close() })
	svc.Health.Register("postgres", health.Ping(db.Ping))

	cat := catalog.New(db)
	if err := cat.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare catalog", "error", err)
		os.Exit(1)
	}

	ingestProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	deleteProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentDelete)
	svc.OnClose(func(context.Context) error { return ingestProducer.Close() })
	svc.OnClose(func(context.Context) error { return deleteProducer.Close() })

	pub := publisher.New(cat, ingestProducer, deleteProducer)
	pipeline := ingestion.NewPipeline(cfg.Upload, pub, svc.Metrics)

	mux := http.NewServeMux()
	handler.New(pipeline, cfg.Upload.MaxBytes).Register(mux)
	mux.HandleFunc("GET /api/v1/catalog/{id...}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, err := cat.Get(r.Context(), id)
		if err != nil {
			handler.WriteError(w, r, err)
			return
		}
		history, err := cat.History(r.Context(), id)
		if err != nil {
			handler.WriteError(w, r, err)
			return
		}
		handler.WriteJSON(w, http.StatusOK, struct {
			*catalog.Record
			History []catalog.Transition `json:"history"`
		}{rec, history})
	})

	slog.Info("ingestion service ready",
		"ingest_topic", cfg.Kafka.Topics.DocumentIngest,
		"delete_topic", cfg.Kafka.Topics.DocumentDelete,
	)
	if err := svc.ListenAndServe(ctx, svc.Handler(mux)); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
