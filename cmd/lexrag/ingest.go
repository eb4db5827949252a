package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/ingest"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		sources    []string
		all        bool
		overlap    float64
		reset      bool
		overwrite  bool
		pruneStale bool
		enqueue    bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse, chunk, embed and index legal codes",
		Long: `Ingest one or more catalogued codes.

The raw HTML of each code is read from the blob store under "<SOURCE>.html".

Examples:
  lexrag ingest --source CODUL_MUNCII
  lexrag ingest --all --overlap 0.2 --prune-stale
  lexrag ingest --source CODUL_CIVIL --enqueue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			if all {
				sources = a.cfg.Sources.Keys()
			}
			if len(sources) == 0 {
				return errors.New("no source given: use --source or --all")
			}

			reqs := make([]ingest.Request, len(sources))
			for i, s := range sources {
				req := a.request(s)
				if cmd.Flags().Changed("overlap") {
					req.OverlapRatio = overlap
				}
				// A reset drops every source, so only the first request carries it.
				req.Reset = (req.Reset || reset) && i == 0
				if overwrite {
					req.Mode = "overwrite"
				}
				req.PruneStale = req.PruneStale || pruneStale
				reqs[i] = req
			}

			if enqueue {
				nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("lexrag-ingest"))
				if err != nil {
					return fmt.Errorf("nats connect: %w", err)
				}
				defer nc.Close()
				for _, req := range reqs {
					if err := ingest.Enqueue(cmd.Context(), nc, req); err != nil {
						return err
					}
					a.log.Info("ingest request queued", "source", req.Source)
				}
				return nc.Flush()
			}

			p, err := a.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			var errs []error
			for _, req := range reqs {
				sum, err := p.Ingest(cmd.Context(), req)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", req.Source, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d articles, %d chunks, %d written, %d skipped, %d failed, %d not stored (%s)\n",
					sum.Source, sum.Articles, sum.Chunks, sum.PointsWritten, sum.PointsSkipped, sum.FailedArticles, sum.StoreFailures, sum.Duration.Round(time.Millisecond))
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "Source key to ingest (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Ingest every catalogued source")
	cmd.Flags().Float64Var(&overlap, "overlap", 0, "Chunk overlap ratio in [0, 1) (default from config)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the collection first")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Rewrite points that already exist")
	cmd.Flags().BoolVar(&pruneStale, "prune-stale", false, "Delete points beyond an article's new chunk count")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Publish requests to NATS for a worker instead of running them")
	return cmd
}
