// Package pointid derives the vector-store point id of an article chunk.
//
// Ids are UUIDv5 values over "{source}/{article_id}#{chunk_index}", so the same
// chunk maps to the same point across processes, hosts and database rebuilds.
package pointid

import (
	"strconv"

	"github.com/google/uuid"
)

// Namespace scopes every point id of this system.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/florinhegedus/rag-system-romanian-laws/point"))

// Name is the UUIDv5 name hashed for a chunk.
func Name(articleRef string, chunkIndex int) string {
	return articleRef + "#" + strconv.Itoa(chunkIndex)
}

// Derive returns the point id of chunk chunkIndex of the referenced article.
func Derive(articleRef string, chunkIndex int) string {
	return uuid.NewSHA1(Namespace, []byte(Name(articleRef, chunkIndex))).String()
}

// DeriveAll returns the ids of chunks 0..n-1.
func DeriveAll(articleRef string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Derive(articleRef, i)
	}
	return out
}
