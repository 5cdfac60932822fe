package composer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"haven/internal/classify"
	"haven/internal/knowledge"
	"haven/internal/llm"
	"haven/internal/memory"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func testEngine(t *testing.T, gen *fakeGenerator) (*Engine, *memory.Service, *knowledge.Base) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&memory.Record{}, &memory.Conversation{}, &memory.Profile{}, &memory.VectorRef{}, &knowledge.Item{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	mem := memory.NewService(db, nil, nil)
	kb := knowledge.NewBase(db, nil, nil, nil, 500, 50)

	var g llm.Generator
	if gen != nil {
		g = gen
	}
	eng := NewEngine(mem, kb, g, rand.New(rand.NewSource(1)), 5, 3)
	return eng, mem, kb
}

func TestRespondCrisisCritical(t *testing.T) {
	gen := &fakeGenerator{reply: "must never be used"}
	eng, _, _ := testEngine(t, gen)
	ctx := context.Background()

	res := eng.Respond(ctx, 1, 1, "I want to kill myself right now")

	if !res.CrisisDetected {
		t.Fatal("expected crisis detection")
	}
	if res.UrgencyLevel != classify.UrgencyCritical {
		t.Errorf("expected critical urgency, got %s", res.UrgencyLevel)
	}
	if !strings.HasPrefix(res.Response, "I'm really concerned") {
		t.Error("critical urgency must pin the most direct template")
	}
	if !strings.Contains(res.Response, "988") || !strings.Contains(res.Response, "741741") {
		t.Error("crisis response must include emergency resources")
	}
	if !strings.Contains(res.Response, "I noticed you mentioned") {
		t.Error("expected detected keywords acknowledged")
	}
	if gen.calls != 0 {
		t.Error("generator must never run for crisis messages")
	}
}

func TestRespondCrisisStoresTrigger(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	eng.Respond(ctx, 1, 1, "I want to kill myself right now")

	records, err := mem.Retrieve(ctx, 1, "crisis indicators detected", []memory.Category{memory.CategoryTrigger}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 trigger memory, got %d", len(records))
	}
	if records[0].Importance != memory.ImportanceCritical {
		t.Errorf("expected critical importance, got %s", records[0].Importance)
	}

	convs, err := mem.RecentConversations(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || !convs[0].NeedsFollowup {
		t.Error("crisis conversation must be flagged for followup")
	}
}

func TestRespondMediumUrgencyCrisisStoresTrigger(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	res := eng.Respond(ctx, 1, 1, "I feel hopeless right now")

	if !res.CrisisDetected {
		t.Fatal("expected gated medium-risk message to be treated as crisis")
	}
	if res.UrgencyLevel != classify.UrgencyMedium {
		t.Fatalf("expected medium urgency, got %s", res.UrgencyLevel)
	}

	records, err := mem.Retrieve(ctx, 1, "crisis indicators detected", []memory.Category{memory.CategoryTrigger}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 trigger memory, got %d", len(records))
	}
	if records[0].Importance != memory.ImportanceHigh {
		t.Errorf("expected high importance, got %s", records[0].Importance)
	}
}

func TestRespondInformational(t *testing.T) {
	gen := &fakeGenerator{reply: "generated support"}
	eng, _, kb := testEngine(t, gen)
	ctx := context.Background()

	if err := kb.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	res := eng.Respond(ctx, 1, 1, "What are the symptoms of anxiety?")

	if res.CrisisDetected {
		t.Error("informational question must not trip crisis detection")
	}
	if !strings.Contains(res.Response, "Understanding Anxiety Disorders") {
		t.Errorf("expected knowledge title in response, got %q", res.Response[:min(120, len(res.Response))])
	}
	if strings.Contains(res.Response, "difficult time") {
		t.Error("informational answers must not deflect into emotional support")
	}
	if gen.calls != 0 {
		t.Error("informational branch must not call the generator")
	}

	// Serving the item counts as usage.
	item, err := kb.Get(ctx, "Understanding Anxiety Disorders")
	if err != nil {
		t.Fatal(err)
	}
	if item.UsageCount == 0 {
		t.Error("expected usage recorded for served knowledge")
	}
}

func TestRespondInformationalNoKnowledge(t *testing.T) {
	eng, _, _ := testEngine(t, nil)
	res := eng.Respond(context.Background(), 1, 1, "What are the symptoms of anxiety?")
	if !strings.Contains(res.Response, "more specific") {
		t.Errorf("expected specificity fallback, got %q", res.Response)
	}
}

func TestRespondMemoryRecall(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	if _, err := mem.Store(ctx, 1, "User works as a nurse", memory.CategoryPersonalInfo, memory.ImportanceMedium, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Store(ctx, 1, "Prefers evening check-ins", memory.CategoryPreference, memory.ImportanceMedium, nil, ""); err != nil {
		t.Fatal(err)
	}

	res := eng.Respond(ctx, 1, 1, "What do you remember about me?")

	if !strings.Contains(res.Response, "About You") || !strings.Contains(res.Response, "nurse") {
		t.Error("expected grouped personal info in recall response")
	}
	if !strings.Contains(res.Response, "Your Preferences") {
		t.Error("expected preferences group in recall response")
	}
	if res.MemoryUsed != 2 {
		t.Errorf("expected 2 memories used, got %d", res.MemoryUsed)
	}
}

func TestRespondMemoryRecallEmpty(t *testing.T) {
	eng, _, _ := testEngine(t, nil)
	res := eng.Respond(context.Background(), 9, 1, "What do you remember about me?")
	if !strings.Contains(res.Response, "don't have any specific information") {
		t.Errorf("recall with no memories must say so, got %q", res.Response)
	}
	if res.MemoryUsed != 0 {
		t.Errorf("expected 0 memories used, got %d", res.MemoryUsed)
	}
}

func TestRespondSupportUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "That sounds genuinely hard. Be kind to yourself tonight and consider a short walk before bed."}
	eng, _, _ := testEngine(t, gen)

	res := eng.Respond(context.Background(), 1, 1, "I feel anxious today")

	if res.Response != gen.reply {
		t.Errorf("expected generator reply, got %q", res.Response)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.calls)
	}
	if !res.Personalized {
		t.Error("generator path with a profile loaded must be personalized")
	}
}

func TestRespondSupportGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("backend down")}
	eng, _, _ := testEngine(t, gen)

	res := eng.Respond(context.Background(), 1, 1, "I feel anxious today")

	if !strings.Contains(res.Response, "For anxiety specifically:") {
		t.Errorf("expected template with anxiety coping strategy, got %q", res.Response)
	}
}

func TestRespondSupportDegenerateGeneration(t *testing.T) {
	for _, reply := range []string{"ok", "As an AI I can't help with feelings."} {
		gen := &fakeGenerator{reply: reply}
		eng, _, _ := testEngine(t, gen)
		res := eng.Respond(context.Background(), 1, 1, "I feel anxious today")
		if res.Response == reply {
			t.Errorf("degenerate reply %q must not be served", reply)
		}
	}
}

func TestRespondSupportNilGenerator(t *testing.T) {
	eng, _, _ := testEngine(t, nil)
	res := eng.Respond(context.Background(), 1, 1, "I feel happy and grateful today")
	if res.Response == "" || res.Response == fallbackLine {
		t.Error("template path must compose a real response without a generator")
	}
	if res.Sentiment != classify.SentimentPositive {
		t.Errorf("expected positive sentiment, got %s", res.Sentiment)
	}
}

func TestRespondStoresPersonalInfoAndLearns(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	eng.Respond(ctx, 1, 1, "I feel anxious today")

	prof, err := mem.GetProfile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if prof.InteractionCount != 1 {
		t.Errorf("expected interaction recorded, got %d", prof.InteractionCount)
	}

	records, err := mem.Retrieve(ctx, 1, "anxious today feelings", []memory.Category{memory.CategoryPersonalInfo}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("expected first-person message stored as personal info, got %d", len(records))
	}
}

func TestRespondCopingFeedbackStoresPreference(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	eng.Respond(ctx, 1, 1, "The breathing exercise really helped me yesterday")

	records, err := mem.Retrieve(ctx, 1, "breathing exercise helped", []memory.Category{memory.CategoryPreference}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("expected coping feedback stored as preference, got %d", len(records))
	}
}

func TestRespondDeterministicWithSeed(t *testing.T) {
	first, _, _ := testEngine(t, nil)
	res1 := first.Respond(context.Background(), 1, 1, "I feel sad today")

	// Same seed, fresh engine: template choice must repeat.
	second := NewEngine(first.memories, first.kb, nil, rand.New(rand.NewSource(1)), 5, 3)
	res2 := second.Respond(context.Background(), 2, 2, "I feel sad today")

	if res1.Response != res2.Response {
		t.Error("seeded engines must pick the same templates")
	}
}

func TestCheckCrisis(t *testing.T) {
	eng, _, _ := testEngine(t, nil)

	check := eng.CheckCrisis("I want to end my life")
	if !check.IsCrisis || len(check.Keywords) == 0 {
		t.Errorf("expected crisis verdict, got %+v", check)
	}

	check = eng.CheckCrisis("What are the symptoms of anxiety?")
	if check.IsCrisis {
		t.Errorf("informational question flagged as crisis: %+v", check)
	}
}

func TestMemorySummary(t *testing.T) {
	eng, mem, _ := testEngine(t, nil)
	ctx := context.Background()

	if _, err := mem.Store(ctx, 1, "likes rain", memory.CategoryPreference, memory.ImportanceLow, nil, ""); err != nil {
		t.Fatal(err)
	}
	stats, err := eng.MemorySummary(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Errorf("expected 1 memory, got %d", stats.Total)
	}
}
