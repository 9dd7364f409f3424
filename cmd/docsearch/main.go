// Command docsearch is the administration CLI. It works directly against the
// index on disk, except loadtest which drives a running service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type options struct {
	configPath string
	verbose    bool
	jsonOut    bool
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:           "docsearch",
		Short:         "Index and search documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			slog.SetDefault(logger.New(os.Stderr, level, "text"))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		indexCMD(&opts),
		searchCMD(&opts),
		listCMD(&opts),
		getCMD(&opts),
		deleteCMD(&opts),
		statsCMD(&opts),
		loadtestCMD(&opts),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open loads the configuration and opens the index it names.
func (o *options) open(readOnly bool) (*config.Config, *indexer.Engine, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Index.ReadOnly = readOnly
	engine, err := indexer.Open(cfg.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("opening index %s: %w", cfg.Index.DataDir, err)
	}
	return cfg, engine, nil
}
