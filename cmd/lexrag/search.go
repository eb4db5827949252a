package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
)

func newSearchCmd(c *cli) *cobra.Command {
	var (
		topK   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Search the indexed codes from the command line",
		Long: `Search the indexed codes and print the best matching passages.

Output is human-readable on a terminal and JSON when piped.

Examples:
  lexrag search "dreptul la concediu de odihnă"
  lexrag search "pedeapsa pentru omor" -k 3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.app.Retrieval(cmd.Context())
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = c.app.cfg.Server.DefaultTopK
			}
			results, err := svc.Search(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "" {
				format = "json"
				if isTerminal(out) {
					format = "text"
				}
			}
			switch format {
			case "json":
				return writeResultsJSON(out, results)
			case "text":
				writeResultsText(out, results)
				return nil
			default:
				return fmt.Errorf("unknown format %q (text, json)", format)
			}
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: text, json (default: text on a terminal)")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writeResultsJSON(w io.Writer, results []retrieval.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeResultsText(w io.Writer, results []retrieval.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching articles.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s  %s  (%.3f)\n", i+1, r.Reference, r.ArticleTitle, r.Score)
		if len(r.Breadcrumb) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(r.Breadcrumb, " › "))
		}
		fmt.Fprintf(w, "   %s\n\n", r.PassageText)
	}
}
