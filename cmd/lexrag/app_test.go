package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/articles"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/blob"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/logging"
)

const muncaHTML = `<html><body>
<span class="S_CAP"><span class="S_CAP_TTL">Capitolul III</span><span class="S_CAP_DEN">Concediul de odihnă</span>
<span class="S_CAP_BDY">
 <span class="S_ART" id="A144"><span class="S_ART_TTL">Articolul 144</span>
 <span class="S_ART_BDY">Dreptul la concediu de odihnă anual plătit este garantat tuturor salariaţilor.</span></span>
</span></span>
<span class="S_ART" id="A164"><span class="S_ART_TTL">Articolul 164</span>
<span class="S_ART_BDY">Salariul de bază minim brut pe ţară garantat în plată se stabileşte prin hotărâre a Guvernului.</span></span>
<span class="S_ART" id="A10"><span class="S_ART_TTL">Articolul 10</span>
<span class="S_ART_BDY">Contractul individual de muncă este contractul în temeiul căruia o persoană fizică se obligă să presteze munca.</span></span>
</body></html>`

func localConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Sources = domain.Catalogue{{Key: "CODUL_MUNCII", URL: "https://legislatie.just.ro/Public/DetaliiDocument/128647"}}
	cfg.Qdrant.Backend = "memory"
	cfg.Database = articles.Config{Driver: "sqlite", DSN: ":memory:"}
	cfg.Blob.Dir = t.TempDir()
	cfg.Embedding.Backend = "hashing"
	cfg.Embedding.Dimensions = 256
	cfg.Ingest.LockDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

// ingested returns an app whose stores hold muncaHTML.
func ingested(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	cfg := localConfig(t)
	require.NoError(t, blob.NewFS(cfg.Blob.Dir).Put(ctx, cfg.Blob.Bucket, "CODUL_MUNCII.html", []byte(muncaHTML), "text/html"))

	a := newApp(cfg, logging.Discard())
	t.Cleanup(a.Close)

	p, err := a.Pipeline(ctx)
	require.NoError(t, err)
	sum, err := p.Ingest(ctx, a.request("CODUL_MUNCII"))
	require.NoError(t, err)
	require.Equal(t, 3, sum.Articles)
	return a
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndToEnd(t *testing.T) {
	a := ingested(t)
	svc, err := a.Retrieval(context.Background())
	require.NoError(t, err)
	h := newHandler(svc, a.metrics.Registry(), 5, a.log)

	rec := post(t, h, `{"question": "concediu de odihnă plătit", "top_k": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var results []retrieval.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "CODUL_MUNCII/A144", results[0].Reference)
	assert.Equal(t, "Articolul 144", results[0].ArticleTitle)
	assert.Contains(t, results[0].FullArticleText, "concediu de odihnă anual plătit")

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"score", "text", "article_title", "full_text", "reference"} {
		assert.Contains(t, raw[0], key)
	}

	m := httptest.NewRecorder()
	h.ServeHTTP(m, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, m.Body.String(), "lexrag_search_seconds")
	assert.Contains(t, m.Body.String(), `lexrag_http_requests_total{route="query",code="2xx"}`)
}

func TestQueryDefaultsTopK(t *testing.T) {
	a := ingested(t)
	svc, err := a.Retrieval(context.Background())
	require.NoError(t, err)

	rec := post(t, newHandler(svc, a.metrics.Registry(), 5, a.log), `{"question": "contractul individual de muncă"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []retrieval.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 3, "top_k defaults to 5, the corpus has 3 articles")
}

func TestQueryRejectsTopKAboveLimit(t *testing.T) {
	a := ingested(t)
	svc, err := a.Retrieval(context.Background())
	require.NoError(t, err)
	h := newHandler(svc, a.metrics.Registry(), 5, a.log)

	body := fmt.Sprintf(`{"question": "salariul minim", "top_k": %d}`, a.cfg.Server.MaxTopK+1)
	rec := post(t, h, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "top_k")
}

func TestSearchCommandPrintsJSONWhenPiped(t *testing.T) {
	a := ingested(t)
	cmd := newSearchCmd(&cli{app: a})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"salariul", "minim", "brut", "-k", "1"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var results []retrieval.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "CODUL_MUNCII/A164", results[0].Reference)
}

func TestOutlineDisabledByDefault(t *testing.T) {
	a := newApp(localConfig(t), logging.Discard())
	ol, err := a.Outline(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ol)
}

func TestParseCommand(t *testing.T) {
	path := t.TempDir() + "/munca.html"
	require.NoError(t, writeFile(path, muncaHTML))

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--config", t.TempDir() + "/missing.yaml", "--log-level", "error", "parse", "-s", "CODUL_MUNCII", path})
	require.NoError(t, root.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var first domain.Article
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "A144", first.ArticleID)
	assert.Equal(t, "CODUL_MUNCII", first.Source)
	assert.Equal(t, "Capitolul III", first.Chapter)
	assert.Contains(t, errOut.String(), "3 articles, 0 failures")
}
