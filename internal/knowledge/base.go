package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"haven/internal/cache"
	"haven/internal/memory"
	"haven/internal/vector"
)

// Result is one retrieved knowledge snippet with its relevance score.
type Result struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Kind      Kind    `json:"kind"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance_score"`
	ItemID    uint    `json:"item_id,omitempty"`
}

// Base is the shared knowledge store: a database of curated items
// mirrored chunk by chunk into the shared vector namespace. Search
// prefers vector similarity and falls back to ranked text search, so
// the store answers queries in every deployment shape.
type Base struct {
	db       *gorm.DB
	index    vector.Index             // may be nil
	embedder vector.EmbeddingProvider // may be nil
	cache    *cache.Cache             // may be nil
	chunker  *Chunker
}

// NewBase wires the knowledge store. index, embedder and cache are all
// optional.
func NewBase(db *gorm.DB, index vector.Index, embedder vector.EmbeddingProvider, c *cache.Cache, chunkSize, chunkOverlap int) *Base {
	return &Base{
		db:       db,
		index:    index,
		embedder: embedder,
		cache:    c,
		chunker:  NewChunker(chunkSize, chunkOverlap),
	}
}

// Ingest stores an item and mirrors its chunks into the shared vector
// namespace. Idempotent on title: re-ingesting an existing title
// returns the stored item untouched. Vector failures are logged, not
// returned.
func (b *Base) Ingest(ctx context.Context, item *Item) (*Item, error) {
	var existing Item
	err := b.db.WithContext(ctx).Where("title = ?", item.Title).First(&existing).Error
	if err == nil {
		log.Printf("[Knowledge] Item %q already exists, skipping", item.Title)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing item: %w", err)
	}

	item.Active = true
	if err := b.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to store knowledge item: %w", err)
	}

	if err := b.indexChunks(ctx, item); err != nil {
		log.Printf("[Knowledge] WARNING: failed to index %q: %v", item.Title, err)
	}

	log.Printf("[Knowledge] Added item: %s", item.Title)
	return item, nil
}

// indexChunks splits the item content and upserts every chunk under
// the shared namespace, recording VectorRef ledger rows. The first
// chunk's id becomes the item's primary vector reference.
func (b *Base) indexChunks(ctx context.Context, item *Item) error {
	if b.index == nil || b.embedder == nil {
		return nil
	}
	chunks := b.chunker.Split(item.Content)
	for i, chunk := range chunks {
		vec, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embedding chunk %d failed: %w", i, err)
		}
		vectorID := uuid.New().String()
		meta := map[string]interface{}{
			"content_type": string(memory.ContentDocument),
			"item_id":      int(item.ID),
			"title":        item.Title,
			"kind":         string(item.Kind),
			"topics":       memory.DecodeList(item.Topics),
			"chunk_index":  i,
			"total_chunks": len(chunks),
		}
		if err := b.index.Upsert(ctx, vector.NamespaceKnowledge, vectorID, vec, chunk, meta); err != nil {
			return fmt.Errorf("upsert chunk %d failed: %w", i, err)
		}

		ref := &memory.VectorRef{
			ContentType: memory.ContentDocument,
			ContentID:   fmt.Sprintf("%d_%d", item.ID, i),
			ContentText: chunk,
			VectorID:    vectorID,
			Namespace:   vector.NamespaceKnowledge,
		}
		if err := b.db.WithContext(ctx).Create(ref).Error; err != nil {
			return fmt.Errorf("failed to record vector ref: %w", err)
		}

		if i == 0 {
			item.VectorID = vectorID
			if err := b.db.WithContext(ctx).Model(item).UpdateColumn("vector_id", vectorID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Search returns up to limit relevant snippets for a query, vector
// hits first, ranked text search filling the rest. topics and kinds
// both narrow the result set when given. Results are cached under the
// query when a cache is wired.
func (b *Base) Search(ctx context.Context, query string, topics []string, kinds []Kind, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 3
	}

	cacheKey := searchCacheKey(query, topics, kinds, limit)
	var cached []Result
	if b.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	results := b.vectorSearch(ctx, query, topics, kinds, limit)

	if len(results) < limit {
		fallback, err := b.databaseSearch(ctx, query, topics, kinds, limit-len(results), resultItemIDs(results))
		if err != nil {
			return nil, err
		}
		results = append(results, fallback...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	b.cache.Set(ctx, cacheKey, results)
	return results, nil
}

func searchCacheKey(query string, topics []string, kinds []Kind, limit int) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k))
	}
	return fmt.Sprintf("knowledge:search:%s:%s:%s:%d",
		strings.ToLower(query), strings.Join(topics, ","), strings.Join(parts, ","), limit)
}

// vectorSearch degrades silently to empty on any failure. Kind narrows
// inside the index filter; topic overlap is checked against the chunk
// metadata after the fact.
func (b *Base) vectorSearch(ctx context.Context, query string, topics []string, kinds []Kind, limit int) []Result {
	if b.index == nil || b.embedder == nil {
		return nil
	}
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[Knowledge] WARNING: query embedding failed, using fallback search: %v", err)
		return nil
	}
	filter := map[string]interface{}{"content_type": string(memory.ContentDocument)}
	if len(kinds) == 1 {
		filter["kind"] = string(kinds[0])
	}
	hits, err := b.index.Query(ctx, vector.NamespaceKnowledge, vec, limit, filter)
	if err != nil {
		log.Printf("[Knowledge] WARNING: vector search failed, using fallback search: %v", err)
		return nil
	}

	var results []Result
	for _, hit := range hits {
		if len(kinds) > 1 && !kindAllowed(hit.Meta["kind"], kinds) {
			continue
		}
		if len(topics) > 0 && !topicsOverlap(hit.Meta["topics"], topics) {
			continue
		}
		res := Result{
			Content:   hit.Text,
			Source:    "knowledge_base",
			Relevance: float64(hit.Score),
		}
		if title, ok := hit.Meta["title"].(string); ok {
			res.Title = title
		}
		if kind, ok := hit.Meta["kind"].(string); ok {
			res.Kind = Kind(kind)
		}
		if id, ok := hit.Meta["item_id"].(int); ok {
			res.ItemID = uint(id)
		}
		results = append(results, res)
	}
	return results
}

// topicsOverlap reports whether any requested topic appears in the
// chunk's topic metadata.
func topicsOverlap(v interface{}, topics []string) bool {
	tagged, ok := v.([]string)
	if !ok {
		return false
	}
	for _, want := range topics {
		for _, have := range tagged {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

func kindAllowed(v interface{}, kinds []Kind) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, k := range kinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// databaseSearch matches the first three query terms against title and
// content, ordered by effectiveness rating then usage. Relevance is
// the curated rating scaled to 0-1.
func (b *Base) databaseSearch(ctx context.Context, query string, topics []string, kinds []Kind, limit int, exclude []uint) ([]Result, error) {
	q := b.db.WithContext(ctx).Where("active = ?", true)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	if len(topics) > 0 {
		// CAST keeps the match portable between jsonb and sqlite text.
		sub := b.db
		for i, topic := range topics {
			like := "%" + strings.ToLower(topic) + "%"
			if i == 0 {
				sub = sub.Where("lower(CAST(topics AS TEXT)) LIKE ?", like)
			} else {
				sub = sub.Or("lower(CAST(topics AS TEXT)) LIKE ?", like)
			}
		}
		q = q.Where(sub)
	}
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	for _, term := range searchTerms(query, 3) {
		like := "%" + term + "%"
		q = q.Where("(lower(title) LIKE ? OR lower(content) LIKE ?)", like, like)
	}

	var items []Item
	err := q.Order("effectiveness_rating DESC, usage_count DESC").Limit(limit).Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("knowledge database search failed: %w", err)
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, Result{
			Title:     item.Title,
			Content:   item.Content,
			Kind:      item.Kind,
			Source:    "knowledge_base",
			Relevance: item.EffectivenessRating / 10.0,
			ItemID:    item.ID,
		})
	}
	return results, nil
}

// searchStopwords are question-framing words that match nothing useful.
var searchStopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "does": true,
	"this": true, "that": true, "with": true, "about": true, "tell": true,
	"some": true, "have": true, "your": true, "from": true,
}

// searchTerms extracts up to max meaningful lowercased query terms.
func searchTerms(query string, max int) []string {
	var terms []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if len(tok) <= 3 || searchStopwords[tok] {
			continue
		}
		terms = append(terms, tok)
		if len(terms) == max {
			break
		}
	}
	return terms
}

func resultItemIDs(results []Result) []uint {
	var ids []uint
	for _, r := range results {
		if r.ItemID != 0 {
			ids = append(ids, r.ItemID)
		}
	}
	return ids
}

// RecordUsage bumps the usage counter for an item by title. Atomic.
func (b *Base) RecordUsage(ctx context.Context, title string) error {
	err := b.db.WithContext(ctx).Model(&Item{}).
		Where("title = ?", title).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to record usage for %q: %w", title, err)
	}
	return nil
}

// RecordFeedback bumps a feedback counter for an item by title and
// drops any cached searches that could have served the item.
func (b *Base) RecordFeedback(ctx context.Context, title string, helpful bool) error {
	column := "negative_feedback"
	if helpful {
		column = "positive_feedback"
	}
	res := b.db.WithContext(ctx).Model(&Item{}).
		Where("title = ?", title).
		Update(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to record feedback for %q: %w", title, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("unknown knowledge item %q", title)
	}
	b.cache.Invalidate(ctx, "knowledge:search:*")
	log.Printf("[Knowledge] Feedback recorded for %q (helpful=%v)", title, helpful)
	return nil
}

// Get returns an item by title.
func (b *Base) Get(ctx context.Context, title string) (*Item, error) {
	var item Item
	err := b.db.WithContext(ctx).Where("title = ?", title).First(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge item %q: %w", title, err)
	}
	return &item, nil
}
