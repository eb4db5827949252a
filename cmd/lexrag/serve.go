package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/mid"
)

const maxQueryBody = 64 << 10

// Searcher is the query side of the retrieval service.
type Searcher interface {
	Search(ctx context.Context, question string, topK int) ([]retrieval.Result, error)
}

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /query over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.app.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), c.app)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	svc, err := a.Retrieval(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      newHandler(svc, a.metrics.Registry(), a.cfg.Server.DefaultTopK, a.log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.cfg.Server.QueryTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("query server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(svc Searcher, reg *metrics.Registry, defaultTopK int, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /query", mid.Chain(handleQuery(svc, defaultTopK, log), mid.Observe(reg, "query")))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.Recover(log),
		mid.RequestID(),
		mid.Logger(log),
		mid.MaxBody(maxQueryBody),
		mid.OTel("lexrag"),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QueryRequest is the JSON body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func handleQuery(svc Searcher, defaultTopK int, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{"invalid request body"})
			return
		}
		topK := defaultTopK
		if req.TopK != nil {
			topK = *req.TopK
		}

		results, err := svc.Search(r.Context(), req.Question, topK)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				log.Error("query failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
			}
			writeJSON(w, status, errorBody{err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, results)
	})
}

// statusFor maps retrieval error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
