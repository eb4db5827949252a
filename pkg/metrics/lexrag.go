package metrics

// Lexrag groups the counters and timers shared by ingestion and retrieval.
type Lexrag struct {
	reg *Registry

	ArticlesParsed  *Counter
	ParseFailures   *Counter
	ChunksWritten   *Counter
	ChunksSkipped   *Counter
	BatchFailures   *Counter
	EmbedLatency    *Histogram
	SearchLatency   *Histogram
	SearchHits      *Counter
	LookupsMissing  *Counter
	QueriesRejected *Counter
	CollectionSize  *Gauge
}

// NewLexrag registers the standard metric set on reg (a fresh registry when nil).
func NewLexrag(reg *Registry) *Lexrag {
	if reg == nil {
		reg = New()
	}
	return &Lexrag{
		reg:             reg,
		ArticlesParsed:  reg.Counter("lexrag_articles_parsed_total", "Articles extracted from source documents"),
		ParseFailures:   reg.Counter("lexrag_parse_failures_total", "Article nodes that could not be extracted"),
		ChunksWritten:   reg.Counter("lexrag_chunks_written_total", "Chunk points upserted into the vector index"),
		ChunksSkipped:   reg.Counter("lexrag_chunks_skipped_total", "Chunk points already present and left untouched"),
		BatchFailures:   reg.Counter("lexrag_batch_failures_total", "Embedding or upsert batches that failed"),
		EmbedLatency:    reg.Histogram("lexrag_embed_seconds", "Embedding batch latency", nil),
		SearchLatency:   reg.Histogram("lexrag_search_seconds", "End-to-end retrieval latency", nil),
		SearchHits:      reg.Counter("lexrag_search_hits_total", "Hits returned to callers"),
		LookupsMissing:  reg.Counter("lexrag_lookup_missing_total", "Hits dropped because the article row was missing"),
		QueriesRejected: reg.Counter("lexrag_queries_rejected_total", "Questions rejected by validation"),
		CollectionSize:  reg.Gauge("lexrag_collection_points", "Points in the vector collection after the last sync"),
	}
}

// SourceCounter returns a per-source labelled counter, e.g. articles per code.
func (m *Lexrag) SourceCounter(name, source string) *Counter {
	return m.reg.Counter(WithLabels(name, "source", source), "")
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Lexrag) Registry() *Registry { return m.reg }
