package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/ingest"
)

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume ingest requests from NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			p, err := a.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name("lexrag-worker"), nats.MaxReconnects(-1))
			if err != nil {
				return fmt.Errorf("nats connect: %w", err)
			}
			defer nc.Drain()

			sub, err := ingest.StartConsumer(nc, p, ingest.ConsumerOptions{Timeout: a.cfg.Ingest.Timeout, Logger: a.log})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", ingest.IngestSubject, err)
			}
			defer sub.Unsubscribe()

			a.log.Info("ingest worker started", "subject", ingest.IngestSubject, "queue", ingest.QueueGroup)
			<-cmd.Context().Done()
			a.log.Info("shutdown signal received")
			return nil
		},
	}
}
