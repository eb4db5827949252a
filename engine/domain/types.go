// Package domain holds the core types shared by the ingestion and retrieval pipelines.
package domain

import "strings"

// Article is one addressable unit of a legal code, as stored in the relational store.
type Article struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	ArticleID  string `json:"article_id"`
	Title      string `json:"article_title"`
	Body       string `json:"article_body"`
	Part       string `json:"part,omitempty"`
	GroupTitle string `json:"title,omitempty"`
	Chapter    string `json:"chapter,omitempty"`
	Section    string `json:"section,omitempty"`
}

// Reference returns the globally unique "{source}/{article_id}" handle.
func (a Article) Reference() string {
	return Reference(a.Source, a.ArticleID)
}

// Hierarchy returns the non-empty structural labels from the outermost scope inwards.
func (a Article) Hierarchy() []string {
	var out []string
	for _, v := range []string{a.Part, a.GroupTitle, a.Chapter, a.Section} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Reference joins a source key and an article anchor id.
func Reference(source, articleID string) string {
	return source + "/" + articleID
}

// SplitReference is the inverse of Reference.
func SplitReference(ref string) (source, articleID string, ok bool) {
	source, articleID, ok = strings.Cut(ref, "/")
	if !ok || source == "" || articleID == "" {
		return "", "", false
	}
	return source, articleID, true
}

// SourceDocument is one entry of the legal-code catalogue.
type SourceDocument struct {
	Key string `yaml:"key" json:"key"`
	URL string `yaml:"url" json:"url"`
}

// BlobKey is the object key holding the document's raw HTML.
func (s SourceDocument) BlobKey() string { return s.Key + ".html" }

// Catalogue is the configured set of ingestible documents.
type Catalogue []SourceDocument

// Lookup finds a document by key.
func (c Catalogue) Lookup(key string) (SourceDocument, bool) {
	for _, s := range c {
		if s.Key == key {
			return s, true
		}
	}
	return SourceDocument{}, false
}

// Keys returns the catalogue keys in order.
func (c Catalogue) Keys() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Key
	}
	return out
}

const portal = "https://legislatie.just.ro/Public/DetaliiDocument/"

// DefaultCatalogue lists the Romanian codes published on legislatie.just.ro.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		{Key: "CODUL_PENAL", URL: portal + "109855"},
		{Key: "CODUL_DE_PROCEDURA_PENALA", URL: portal + "120611"},
		{Key: "CODUL_CIVIL", URL: portal + "109884"},
		{Key: "CODUL_DE_PROCEDURA_CIVILA", URL: portal + "140271"},
		{Key: "CODUL_FISCAL", URL: portal + "171282"},
		{Key: "CODUL_DE_PROCEDURA_FISCALA", URL: portal + "172697"},
		{Key: "CODUL_MUNCII", URL: portal + "128647"},
	}
}
