package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/legal"
)

func newParseCmd(c *cli) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "parse <file.html>",
		Short: "Print the articles extracted from a local HTML file as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := legal.Parse(f, legal.Options{Source: source, ArticleClass: c.app.cfg.Ingest.ArticleClass})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, a := range res.Articles {
				if err := enc.Encode(a); err != nil {
					return err
				}
			}
			for _, fail := range res.Failures {
				c.app.log.Warn("article skipped", "err", fail)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d articles, %d failures\n", len(res.Articles), len(res.Failures))
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "LOCAL", "Source key stamped on every article")
	return cmd
}
