// Command lexrag ingests Romanian legal codes into a vector index and answers
// questions over them from the CLI, over HTTP, NATS or MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "lexrag:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, domain.ErrConfiguration) {
		return 2
	}
	return 1
}

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string
	app        *app
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "lexrag",
		Short:         "Semantic search over Romanian legal codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "lexrag.yaml", "YAML config file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override log level: debug, info, warn, error")

	cmd.AddCommand(
		newIngestCmd(c),
		newServeCmd(c),
		newSearchCmd(c),
		newWorkerCmd(c),
		newParseCmd(c),
		newMCPCmd(c),
	)
	return cmd
}

func (c *cli) setup() error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	log, err := logging.New(cfg.Log, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	c.app = newApp(cfg, log)
	return nil
}
