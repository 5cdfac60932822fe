package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"haven/internal/classify"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Record{}, &Conversation{}, &Profile{}, &VectorRef{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestStoreAndRetrieveFallback(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	rec, err := svc.Store(ctx, 1, "User's cat is named Whiskers", CategoryPersonalInfo, ImportanceMedium, nil, "")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected a persisted record id")
	}
	if rec.SessionID == "" {
		t.Error("expected a session id")
	}
	if _, err := svc.Store(ctx, 1, "Prefers short direct answers", CategoryPreference, ImportanceHigh, nil, ""); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := svc.Retrieve(ctx, 1, "tell me about my cat Whiskers", nil, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected substring fallback to find the cat memory")
	}
	found := false
	for _, r := range got {
		if strings.Contains(r.Content, "Whiskers") {
			found = true
		}
	}
	if !found {
		t.Error("expected the cat memory in results")
	}
}

func TestRetrieveMemoryQueryRestrictsCategories(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	if _, err := svc.Store(ctx, 1, "Works as a nurse", CategoryPersonalInfo, ImportanceMedium, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Store(ctx, 1, "Crowded trains remember stress", CategoryTrigger, ImportanceHigh, nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Retrieve(ctx, 1, "what do you remember about me?", nil, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, r := range got {
		switch r.Category {
		case CategoryPersonalInfo, CategoryPreference, CategoryMoodPattern:
		default:
			t.Errorf("memory query returned category %s", r.Category)
		}
	}
	if len(got) != 1 {
		t.Errorf("expected only the personal_info record, got %d", len(got))
	}
}

func TestRetrieveOrdersByImportance(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	if _, err := svc.Store(ctx, 1, "exam minor note", CategorySessionNote, ImportanceLow, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Store(ctx, 1, "exam panic episode", CategoryTrigger, ImportanceCritical, nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Retrieve(ctx, 1, "exam pressure lately", nil, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Importance != ImportanceCritical {
		t.Errorf("expected critical record first, got %s", got[0].Importance)
	}
}

func TestRetrieveIncrementsAccessCount(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	rec, err := svc.Store(ctx, 1, "gardening helps unwind", CategoryPreference, ImportanceMedium, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Retrieve(ctx, 1, "gardening again today", nil, 5); err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
	}

	var reloaded Record
	if err := svc.db.First(&reloaded, rec.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.AccessCount != 2 {
		t.Errorf("expected access_count 2, got %d", reloaded.AccessCount)
	}
}

func TestRetrieveScopedToUser(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	if _, err := svc.Store(ctx, 1, "private note about therapy", CategorySessionNote, ImportanceHigh, nil, ""); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Retrieve(ctx, 2, "therapy note private", nil, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("user 2 must not see user 1 memories, got %d", len(got))
	}
}

func TestExpireStale(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	rec := &Record{UserID: 1, Category: CategorySessionNote, Content: "old", Importance: ImportanceLow, Active: true, ExpiresAt: &past, LastAccessed: time.Now()}
	if err := db.Create(rec).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Store(ctx, 1, "still fresh", CategorySessionNote, ImportanceLow, nil, ""); err != nil {
		t.Fatal(err)
	}

	n, err := svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}

	// Second run is a no-op.
	n, err = svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected idempotent second run, got %d", n)
	}

	got, err := svc.Retrieve(ctx, 1, "old fresh whatever", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range got {
		if r.Content == "old" {
			t.Error("expired record surfaced in retrieval")
		}
	}
}

func TestGetStats(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	if _, err := svc.Store(ctx, 1, "likes walks", CategoryPreference, ImportanceMedium, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Store(ctx, 1, "lives in Leeds", CategoryPersonalInfo, ImportanceMedium, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Retrieve(ctx, 1, "walks walks walks", nil, 5); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.GetStats(ctx, 1)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("expected total 2, got %d", stats.Total)
	}
	if stats.ByCategory["preference"] != 1 || stats.ByCategory["personal_info"] != 1 {
		t.Errorf("unexpected category counts: %v", stats.ByCategory)
	}
	if stats.RecentActivity != 2 {
		t.Errorf("expected 2 recent, got %d", stats.RecentActivity)
	}
	if stats.MostAccessed == nil || !strings.Contains(stats.MostAccessed.Content, "walks") {
		t.Errorf("expected the retrieved record as most accessed, got %+v", stats.MostAccessed)
	}
}

func TestUpdateConversationMerges(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	first, err := svc.UpdateConversation(ctx, 1, 7, ConversationUpdate{
		Summary:        "talked about work stress",
		KeyTopics:      []string{"work", "stress"},
		EmotionalState: map[string]interface{}{"sentiment": "negative", "confidence": 0.7},
		Concerns:       []string{"deadline"},
	})
	if err != nil {
		t.Fatalf("UpdateConversation failed: %v", err)
	}
	second, err := svc.UpdateConversation(ctx, 1, 7, ConversationUpdate{
		KeyTopics: []string{"stress", "sleep"},
		Concerns:  []string{"deadline", "insomnia"},
	})
	if err != nil {
		t.Fatalf("UpdateConversation failed: %v", err)
	}

	if second.ID != first.ID {
		t.Error("second update must reuse the open conversation")
	}
	if second.MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", second.MessageCount)
	}
	topics := decodeList(second.KeyTopics)
	if len(topics) != 3 || topics[0] != "work" || topics[2] != "sleep" {
		t.Errorf("unexpected merged topics: %v", topics)
	}
	concerns := decodeList(second.Concerns)
	if len(concerns) != 2 {
		t.Errorf("expected deduped concerns, got %v", concerns)
	}
	if second.Summary != "talked about work stress" {
		t.Error("summary lost on partial update")
	}
	state := decodeMap(second.EmotionalState)
	if state["sentiment"] != "negative" {
		t.Errorf("emotional state lost on partial update: %v", state)
	}
}

func TestEndConversationOpensNew(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	first, err := svc.UpdateConversation(ctx, 1, 7, ConversationUpdate{Summary: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.EndConversation(ctx, 1, 7); err != nil {
		t.Fatalf("EndConversation failed: %v", err)
	}
	second, err := svc.UpdateConversation(ctx, 1, 7, ConversationUpdate{Summary: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("expected a new conversation after ending the previous one")
	}
}

func TestConcernsCapped(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	var conv *Conversation
	var err error
	for i := 0; i < 7; i++ {
		conv, err = svc.UpdateConversation(ctx, 1, 1, ConversationUpdate{
			Concerns: []string{fmt.Sprintf("concern-%d", i)},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	concerns := decodeList(conv.Concerns)
	if len(concerns) != maxConcerns {
		t.Fatalf("expected %d concerns, got %d", maxConcerns, len(concerns))
	}
	if concerns[len(concerns)-1] != "concern-6" {
		t.Errorf("expected newest concern kept, got %v", concerns)
	}
}

func TestGetProfileDefaults(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	prof, err := svc.GetProfile(ctx, 42)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if prof.PreferredTone != "supportive" || prof.ResponseLength != "medium" || prof.CrisisSensitivity != "high" {
		t.Errorf("unexpected defaults: %+v", prof)
	}
	if prof.RetentionDays != 90 {
		t.Errorf("expected retention 90, got %d", prof.RetentionDays)
	}

	again, err := svc.GetProfile(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != prof.ID {
		t.Error("second GetProfile must return the same row")
	}
}

func TestLearnAccumulates(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	cls := classify.Classify("I feel hopeless and it is overwhelming")
	if err := svc.Learn(ctx, 1, "I feel hopeless and it is overwhelming", cls); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if err := svc.Learn(ctx, 1, "I feel hopeless and it is overwhelming", cls); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}

	prof, err := svc.GetProfile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if prof.InteractionCount != 2 {
		t.Errorf("expected interaction_count 2, got %d", prof.InteractionCount)
	}
	triggers := decodeList(prof.TriggerPatterns)
	if len(triggers) == 0 {
		t.Error("expected crisis keywords recorded as triggers")
	}
	for i, a := range triggers {
		for j, b := range triggers {
			if i != j && a == b {
				t.Errorf("duplicate trigger %q", a)
			}
		}
	}
	moods := decodeMap(prof.MoodPatterns)
	history, _ := moods["history"].([]interface{})
	if len(history) != 2 {
		t.Errorf("expected 2 mood entries, got %d", len(history))
	}
}

func TestRecordStrategy(t *testing.T) {
	svc := NewService(testDB(t), nil, nil)
	ctx := context.Background()

	if err := svc.RecordStrategy(ctx, 1, "box breathing", true); err != nil {
		t.Fatalf("RecordStrategy failed: %v", err)
	}
	if err := svc.RecordStrategy(ctx, 1, "box breathing", true); err != nil {
		t.Fatal(err)
	}

	prof, err := svc.GetProfile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	strategies := decodeList(prof.EffectiveStrategies)
	if len(strategies) != 1 || strategies[0] != "box breathing" {
		t.Errorf("expected single deduped strategy, got %v", strategies)
	}
	if prof.AdaptationScore <= 0.5 {
		t.Errorf("expected score above baseline, got %f", prof.AdaptationScore)
	}
}
