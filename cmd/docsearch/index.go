package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

func indexCMD(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Store, extract and index local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, err := opts.open(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			pipeline := ingestion.NewPipeline(cfg.Upload, ingestion.NewDirectSink(engine), nil)
			failed := 0
			var receipts []*ingestion.Receipt
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				receipt, err := pipeline.Ingest(cmd.Context(), filepath.Base(path), raw)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				receipts = append(receipts, receipt)
				if !opts.jsonOut {
					fmt.Fprintf(cmd.OutOrStdout(), "indexed %s as %s\n", path, receipt.DocumentID)
					if receipt.Warning != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s\n", receipt.Warning)
					}
				}
			}
			if opts.jsonOut {
				if err := printJSON(cmd, receipts); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
