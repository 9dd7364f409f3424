// Command server runs docsearch as a single process: uploads are extracted
// and indexed in-process and searched from the same engine.
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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	svc, err := app.Bootstrap("server", *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := svc.OpenIndex()
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	s := searcher.New(engine, svc.Config.Search, svc.SearchOptions(ctx)...)
	pipeline := ingestion.NewPipeline(svc.Config.Upload, ingestion.NewDirectSink(engine), svc.Metrics)

	mux := http.NewServeMux()
	searchhandler.New(s, engine).Register(mux)
	ingesthandler.New(pipeline, svc.Config.Upload.MaxBytes).Register(mux)

	if err := svc.ListenAndServe(ctx, svc.Handler(mux)); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
