package vector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements Index over a Qdrant instance, one collection
// per namespace. Collections are created on first upsert with cosine
// distance and the configured embedding dimension.
type QdrantIndex struct {
	client    *qdrant.Client
	prefix    string
	dimension int

	mu    sync.Mutex
	known map[string]bool // namespaces verified to exist
}

// NewQdrantIndex connects to Qdrant. The URL may carry an http(s)
// scheme and port; only the host is used, gRPC runs on 6334.
func NewQdrantIndex(url, prefix, apiKey string, dimension int) (*QdrantIndex, error) {
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "https://")
	host := url
	if idx := strings.Index(url, ":"); idx != -1 {
		host = url[:idx]
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   6334,
		APIKey: apiKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantIndex{
		client:    client,
		prefix:    prefix,
		dimension: dimension,
		known:     make(map[string]bool),
	}, nil
}

func (q *QdrantIndex) collectionName(namespace string) string {
	// Qdrant collection names disallow ':'.
	return q.prefix + "_" + strings.ReplaceAll(namespace, ":", "_")
}

// ensureCollection lazily creates the namespace's collection.
func (q *QdrantIndex) ensureCollection(ctx context.Context, namespace string) (string, error) {
	name := q.collectionName(namespace)

	q.mu.Lock()
	ok := q.known[name]
	q.mu.Unlock()
	if ok {
		return name, nil
	}

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		log.Printf("[Vector] Created collection %s (dim=%d)", name, q.dimension)
	}

	q.mu.Lock()
	q.known[name] = true
	q.mu.Unlock()
	return name, nil
}

// Upsert stores one embedded chunk under the namespace.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace, id string, vec []float32, text string, meta map[string]interface{}) error {
	name, err := q.ensureCollection(ctx, namespace)
	if err != nil {
		return err
	}

	payload := map[string]*qdrant.Value{
		"text": qdrant.NewValueString(text),
	}
	for k, v := range meta {
		if val := toQdrantValue(v); val != nil {
			payload[k] = val
		}
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectors(vec...),
		Payload: payload,
	}
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// Query runs a similarity search. A namespace that has never been
// written to yields an empty result set.
func (q *QdrantIndex) Query(ctx context.Context, namespace string, vec []float32, k int, filter map[string]interface{}) ([]Hit, error) {
	name := q.collectionName(namespace)

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var qf *qdrant.Filter
	if len(filter) > 0 {
		var must []*qdrant.Condition
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, fmt.Sprintf("%v", v)))
		}
		qf = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vec...),
		Filter:         qf,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			Text:  stringFromPayload(p.Payload, "text"),
			Score: float64(p.Score),
			Meta:  metaFromPayload(p.Payload),
		})
	}
	return hits, nil
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case uint:
		return qdrant.NewValueInt(int64(val))
	case float64:
		return qdrant.NewValueDouble(val)
	case bool:
		return qdrant.NewValueBool(val)
	case []string:
		items := make([]*qdrant.Value, len(val))
		for i, s := range val {
			items[i] = qdrant.NewValueString(s)
		}
		return &qdrant.Value{
			Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: items}},
		}
	default:
		return nil
	}
}

func stringFromPayload(payload map[string]*qdrant.Value, key string) string {
	if val, ok := payload[key]; ok {
		return val.GetStringValue()
	}
	return ""
}

func metaFromPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	meta := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "text" {
			continue
		}
		switch kind := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			meta[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			meta[k] = int(kind.IntegerValue)
		case *qdrant.Value_DoubleValue:
			meta[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[k] = kind.BoolValue
		case *qdrant.Value_ListValue:
			var items []string
			for _, lv := range kind.ListValue.Values {
				if s := lv.GetStringValue(); s != "" {
					items = append(items, s)
				}
			}
			meta[k] = items
		}
	}
	return meta
}
