package vector

import (
	"context"
	"fmt"
)

// Hit is one similarity match. Score is 1 - cosine distance.
type Hit struct {
	Text  string
	Score float64
	Meta  map[string]interface{}
}

// Index is similarity search over embedded text chunks. Namespaces
// isolate per-user memories (`user:{id}`) from the shared knowledge
// namespace. Implementations create namespaces lazily; querying a
// namespace that does not exist yet yields an empty result set, not an
// error — callers treat "no index yet" exactly like "no matches".
//
// The whole component is optional infrastructure: every caller must
// behave correctly with a nil Index.
type Index interface {
	Upsert(ctx context.Context, namespace, id string, vec []float32, text string, meta map[string]interface{}) error
	Query(ctx context.Context, namespace string, vec []float32, k int, filter map[string]interface{}) ([]Hit, error)
}

// EmbeddingProvider turns text into a vector. Optional collaborator:
// a nil provider means retrieval runs on deterministic fallbacks only.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NamespaceForUser returns the personal namespace for a user id.
func NamespaceForUser(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// NamespaceKnowledge is the shared namespace for curated documents.
const NamespaceKnowledge = "knowledge"
