package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"haven/internal/classify"
	"haven/internal/vector"
)

// importanceOrder ranks rows in SQL so the fallback query returns the
// most important records first. Kept portable across sqlite/postgres.
const importanceOrder = "CASE importance WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, access_count DESC, created_at DESC"

// Service is the durable per-user memory store. The database record is
// authoritative; the vector index is an optional accelerator whose
// failures degrade to deterministic fallbacks, never to errors.
type Service struct {
	db       *gorm.DB
	index    vector.Index             // may be nil
	embedder vector.EmbeddingProvider // may be nil
}

// NewService wires the store. index and embedder are optional and
// independent: either may be nil without affecting the other.
func NewService(db *gorm.DB, index vector.Index, embedder vector.EmbeddingProvider) *Service {
	return &Service{db: db, index: index, embedder: embedder}
}

// Store persists a memory record, then best-effort mirrors it into the
// owner's vector namespace. Indexing failure is logged and swallowed:
// the store succeeds in index-less deployments.
func (s *Service) Store(ctx context.Context, userID uint, content string, category Category, importance Importance, contextData map[string]interface{}, sourceRef string) (*Record, error) {
	rec := &Record{
		UserID:       userID,
		Category:     category,
		Content:      content,
		Context:      encodeMap(contextData),
		Importance:   importance,
		SourceRef:    sourceRef,
		SessionID:    sessionID(userID),
		LastAccessed: time.Now(),
		Active:       true,
		Confidence:   1.0,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	if err := s.mirrorToIndex(ctx, rec); err != nil {
		log.Printf("[Memory] WARNING: failed to index record %d: %v", rec.ID, err)
	}
	return rec, nil
}

// mirrorToIndex embeds the record content and upserts it under the
// owner's namespace, recording a VectorRef ledger row.
func (s *Service) mirrorToIndex(ctx context.Context, rec *Record) error {
	if s.index == nil || s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	ns := vector.NamespaceForUser(rec.UserID)
	vectorID := uuid.New().String()
	meta := map[string]interface{}{
		"content_type": string(ContentMemory),
		"record_id":    int(rec.ID),
		"category":     string(rec.Category),
		"importance":   string(rec.Importance),
	}
	if err := s.index.Upsert(ctx, ns, vectorID, vec, rec.Content, meta); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}

	userID := rec.UserID
	ref := &VectorRef{
		ContentType: ContentMemory,
		ContentID:   fmt.Sprintf("%d", rec.ID),
		ContentText: rec.Content,
		VectorID:    vectorID,
		Namespace:   ns,
		UserID:      &userID,
		Meta:        encodeMap(meta),
	}
	if err := s.db.WithContext(ctx).Create(ref).Error; err != nil {
		return fmt.Errorf("failed to record vector ref: %w", err)
	}

	rec.EmbeddingID = vectorID
	return s.db.WithContext(ctx).Model(rec).UpdateColumn("embedding_id", vectorID).Error
}

// Retrieve returns the most relevant active memories for a query.
// Vector similarity first; when it yields fewer than limit results the
// deterministic rule-based filter fills the rest. Results are ordered
// by importance then access count, and every returned record's access
// counter is incremented at the storage layer.
func (s *Service) Retrieve(ctx context.Context, userID uint, query string, categories []Category, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}

	records := s.vectorLookup(ctx, userID, query, limit)

	if len(records) < limit {
		fallback, err := s.fallbackLookup(ctx, userID, query, categories, limit-len(records), recordIDs(records))
		if err != nil {
			return nil, err
		}
		records = append(records, fallback...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := records[i].Importance.Rank(), records[j].Importance.Rank()
		if ri != rj {
			return ri > rj
		}
		return records[i].AccessCount > records[j].AccessCount
	})
	if len(records) > limit {
		records = records[:limit]
	}

	if err := s.touch(ctx, records); err != nil {
		log.Printf("[Memory] WARNING: failed to update access counters: %v", err)
	}
	return records, nil
}

// vectorLookup resolves similarity hits back to active database
// records. Every failure path degrades silently to an empty slice.
func (s *Service) vectorLookup(ctx context.Context, userID uint, query string, limit int) []Record {
	if s.index == nil || s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[Memory] WARNING: query embedding failed, using fallback search: %v", err)
		return nil
	}
	hits, err := s.index.Query(ctx, vector.NamespaceForUser(userID), vec, limit, map[string]interface{}{
		"content_type": string(ContentMemory),
	})
	if err != nil {
		log.Printf("[Memory] WARNING: vector search failed, using fallback search: %v", err)
		return nil
	}

	var records []Record
	for _, hit := range hits {
		id, ok := hit.Meta["record_id"].(int)
		if !ok {
			continue
		}
		var rec Record
		err := s.db.WithContext(ctx).
			Where("id = ? AND user_id = ? AND active = ?", id, userID, true).
			First(&rec).Error
		if err != nil {
			continue
		}
		if rec.Expired() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// fallbackLookup is the rule-based database search used when the index
// is absent or thin. Memory-introspection phrasing restricts to
// identity categories, mood phrasing to mood categories, anything else
// becomes a substring match on the first three meaningful terms.
func (s *Service) fallbackLookup(ctx context.Context, userID uint, query string, categories []Category, limit int, exclude []uint) ([]Record, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Where("(expires_at IS NULL OR expires_at > ?)", time.Now())
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	switch {
	case classify.IsMemoryQuery(query):
		q = q.Where("category IN ?", []Category{CategoryPersonalInfo, CategoryPreference, CategoryMoodPattern})
	case mentionsMood(query):
		q = q.Where("category IN ?", []Category{CategoryMoodPattern, CategoryTrigger, CategoryPreference})
	default:
		terms := meaningfulTerms(query, 3)
		if len(terms) > 0 {
			sub := s.db
			for i, term := range terms {
				like := "%" + strings.ToLower(term) + "%"
				if i == 0 {
					sub = sub.Where("lower(content) LIKE ?", like)
				} else {
					sub = sub.Or("lower(content) LIKE ?", like)
				}
			}
			q = q.Where(sub)
		}
	}

	var records []Record
	err := q.Order(importanceOrder).Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("fallback memory search failed: %w", err)
	}
	return records, nil
}

// touch increments access counters atomically; access metadata changes
// on retrieval only, never on write.
func (s *Service) touch(ctx context.Context, records []Record) error {
	ids := recordIDs(records)
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("id IN ?", ids).
		UpdateColumns(map[string]interface{}{
			"access_count":  gorm.Expr("access_count + 1"),
			"last_accessed": now,
		}).Error
	if err != nil {
		return err
	}
	for i := range records {
		records[i].AccessCount++
		records[i].LastAccessed = now
	}
	return nil
}

// ExpireStale deactivates all records past their expiry. Idempotent.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, time.Now()).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire memories: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[Memory] Deactivated %d expired records", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// Stats summarizes a user's memory footprint.
type Stats struct {
	Total          int64            `json:"total_memories"`
	ByCategory     map[string]int64 `json:"memory_types"`
	RecentActivity int64            `json:"recent_activity"`
	MostAccessed   *Record          `json:"most_accessed,omitempty"`
}

// GetStats returns counts by category, last-7-day activity and the
// most accessed record.
func (s *Service) GetStats(ctx context.Context, userID uint) (*Stats, error) {
	stats := &Stats{ByCategory: make(map[string]int64)}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&Record{}).Where("user_id = ? AND active = ?", userID, true)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}
	if err := base().Where("created_at >= ?", time.Now().AddDate(0, 0, -7)).Count(&stats.RecentActivity).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent memories: %w", err)
	}

	type catCount struct {
		Category Category
		N        int64
	}
	var counts []catCount
	if err := base().Select("category, count(*) as n").Group("category").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to group by category: %w", err)
	}
	for _, c := range counts {
		stats.ByCategory[string(c.Category)] = c.N
	}

	var top Record
	err := base().Order("access_count DESC").First(&top).Error
	if err == nil {
		stats.MostAccessed = &top
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find most accessed: %w", err)
	}
	return stats, nil
}

// sessionID groups memories written on the same day.
func sessionID(userID uint) string {
	return fmt.Sprintf("%d_%s", userID, time.Now().Format("2006-01-02"))
}

func recordIDs(records []Record) []uint {
	ids := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

var moodTerms = []string{"anxiety", "depression", "stress", "sad", "happy", "mood"}

func mentionsMood(query string) bool {
	lower := strings.ToLower(query)
	for _, term := range moodTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// meaningfulTerms returns up to max query tokens longer than 2 chars.
func meaningfulTerms(query string, max int) []string {
	var terms []string
	for _, tok := range strings.Fields(query) {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if len(tok) > 2 {
			terms = append(terms, tok)
			if len(terms) == max {
				break
			}
		}
	}
	return terms
}
