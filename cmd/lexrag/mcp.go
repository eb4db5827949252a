package main

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
)

const version = "0.1.0"

// SearchInput is the argument schema of the search_legal_code tool.
type SearchInput struct {
	Question string `json:"question" jsonschema:"question about Romanian law, preferably in Romanian"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 5"`
}

// SearchOutput is the structured result of the search_legal_code tool.
type SearchOutput struct {
	Results []retrieval.Result `json:"results" jsonschema:"article passages ranked by similarity"`
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search_legal_code tool over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.app.Retrieval(cmd.Context())
			if err != nil {
				return err
			}
			s := newMCPServer(svc, c.app.cfg.Server.DefaultTopK)
			c.app.log.Info("mcp server starting", "transport", "stdio")
			err = s.Run(cmd.Context(), &mcp.StdioTransport{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newMCPServer(svc Searcher, defaultTopK int) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "lexrag", Version: version}, nil)
	mcp.AddTool(s, &mcp.Tool{
		Name: "search_legal_code",
		Description: "Finds the articles of the Romanian legal codes (civil, penal, labour, fiscal and their procedure codes) " +
			"most relevant to a question. Each result carries the matching passage, the full article text and a " +
			"citable reference such as CODUL_MUNCII/A144.",
	}, searchTool(svc, defaultTopK))
	return s
}

func searchTool(svc Searcher, defaultTopK int) func(context.Context, *mcp.CallToolRequest, SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		topK := in.TopK
		if topK == 0 {
			topK = defaultTopK
		}
		results, err := svc.Search(ctx, in.Question, topK)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		if results == nil {
			results = []retrieval.Result{}
		}
		return nil, SearchOutput{Results: results}, nil
	}
}
