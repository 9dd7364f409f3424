package main

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher"
)

func searchCMD(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query and print ranked results",
		Long: "Run a query. Adjacent terms must all match and OR separates alternatives.\n" +
			"Prefix a term with - (or NOT) to exclude it; field:term restricts it to one field.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, err := opts.open(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			cfg.Search.PreTag, cfg.Search.PostTag = "[", "]"
			resp, err := searcher.New(engine, cfg.Search).Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d hits for %s (generation %d)\n", resp.Total, resp.Query, resp.Generation)
			for i, hit := range resp.Hits {
				fmt.Fprintf(out, "%2d. %s  %.4f  %s\n", i+1, hit.Filename, hit.Score, hit.ID)
				for _, snippet := range hit.Snippets {
					fmt.Fprintf(out, "      %s\n", html.UnescapeString(snippet))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	return cmd
}

func listCMD(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := opts.open(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			docs := engine.ListDocuments()
			if opts.jsonOut {
				return printJSON(cmd, docs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tINDEXED AT")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Filename, d.IndexedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func getCMD(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the stored fields of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := opts.open(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			doc, err := engine.GetDocument(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		},
	}
}

func deleteCMD(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove documents from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, err := opts.open(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			pipeline := ingestion.NewPipeline(cfg.Upload, ingestion.NewDirectSink(engine), nil)
			for _, id := range args {
				if err := pipeline.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func statsCMD(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, err := opts.open(true)
			if err != nil {
				return err
			}
			defer engine.Close()
			return printJSON(cmd, engine.Stats())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
