// Command searcher serves queries from a read-only view of the index that
// the indexer service writes, following its commits with a refresh loop.
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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	svc, err := app.Bootstrap("searcher", *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()
	svc.Config.Index.ReadOnly = true
	if svc.Config.Index.DataDir == "" {
		slog.Error("searcher needs index.dataDir shared with the indexer service")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := svc.OpenIndex()
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	svc.Refresh(ctx, engine)

	s := searcher.New(engine, svc.Config.Search, svc.SearchOptions(ctx)...)
	mux := http.NewServeMux()
	handler.New(s, engine).Register(mux)

	if err := svc.ListenAndServe(ctx, svc.Handler(mux)); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
