package composer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"haven/internal/classify"
	"haven/internal/knowledge"
	"haven/internal/llm"
	"haven/internal/memory"
)

// Engine assembles responses from the classifier verdict, the user's
// memories, the shared knowledge base and an optional text generator.
// It never returns an error to the caller: every internal failure
// degrades to a safe supportive line.
type Engine struct {
	memories  *memory.Service
	kb        *knowledge.Base
	generator llm.Generator // may be nil

	mu  sync.Mutex
	rng *rand.Rand

	memoryLimit    int
	knowledgeLimit int
}

// NewEngine wires the composer. rng may be seeded for deterministic
// template selection in tests; a nil rng gets a time-seeded one.
func NewEngine(memories *memory.Service, kb *knowledge.Base, generator llm.Generator, rng *rand.Rand, memoryLimit, knowledgeLimit int) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if memoryLimit <= 0 {
		memoryLimit = 5
	}
	if knowledgeLimit <= 0 {
		knowledgeLimit = 3
	}
	return &Engine{
		memories:       memories,
		kb:             kb,
		generator:      generator,
		rng:            rng,
		memoryLimit:    memoryLimit,
		knowledgeLimit: knowledgeLimit,
	}
}

// Result is a composed response plus the signals that shaped it.
type Result struct {
	Response       string             `json:"response"`
	CrisisDetected bool               `json:"crisis_detected"`
	UrgencyLevel   classify.Urgency   `json:"urgency_level"`
	Sentiment      classify.Sentiment `json:"sentiment"`
	KnowledgeUsed  []knowledge.Result `json:"knowledge_used,omitempty"`
	MemoryUsed     int                `json:"memories_used"`
	Personalized   bool               `json:"personalized"`
}

// CrisisCheck is the classifier verdict exposed without composing a
// response.
type CrisisCheck struct {
	IsCrisis bool             `json:"is_crisis"`
	Keywords []string         `json:"keywords"`
	Urgency  classify.Urgency `json:"urgency_level"`
}

// Respond composes the reply for one user message. Panics and errors
// from collaborators never escape: the worst case is the fixed
// supportive fallback.
func (e *Engine) Respond(ctx context.Context, userID uint, roomID uint, msg string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Composer] ERROR: recovered from panic: %v", r)
			res = Result{Response: fallbackLine, UrgencyLevel: classify.UrgencyLow, Sentiment: classify.SentimentNeutral}
		}
	}()

	cls := classify.Classify(msg)
	res = Result{
		UrgencyLevel: cls.Urgency,
		Sentiment:    cls.Sentiment,
	}

	switch {
	case len(cls.CrisisKeywords) > 0 || cls.Sentiment == classify.SentimentCrisis:
		res.CrisisDetected = true
		res.Response = e.crisisResponse(cls)

	case classify.IsMemoryQuery(msg):
		res.Response, res.MemoryUsed = e.memoryRecallResponse(ctx, userID, msg)

	default:
		e.supportOrInformational(ctx, userID, msg, cls, &res)
	}

	if res.Response == "" {
		res.Response = fallbackLine
	}

	e.recordInteraction(ctx, userID, roomID, msg, cls, &res)
	return res
}

// crisisResponse always comes from the fixed template bank. Critical
// urgency pins the most direct template; the generator is never
// consulted in this branch.
func (e *Engine) crisisResponse(cls classify.Classification) string {
	var response string
	if cls.Urgency == classify.UrgencyCritical {
		response = crisisTemplates[0]
	} else {
		response = e.pick(crisisTemplates)
	}

	if len(cls.CrisisKeywords) > 0 {
		shown := cls.CrisisKeywords
		if len(shown) > 3 {
			shown = shown[:3]
		}
		response += fmt.Sprintf("\n\n*I noticed you mentioned: %s. These feelings are serious, and I want to make sure you get the help you deserve.*", strings.Join(shown, ", "))
	}

	response += "\n\n**Immediate Resources:**"
	for _, r := range EmergencyResources() {
		response += fmt.Sprintf("\n- **%s**: %s - %s", r.Name, r.Contact, r.Description)
	}
	return response
}

// memoryRecallResponse answers "what do you know about me" from stored
// memories only. It never fabricates: with nothing stored it says so.
func (e *Engine) memoryRecallResponse(ctx context.Context, userID uint, msg string) (string, int) {
	records, err := e.memories.Retrieve(ctx, userID, msg, nil, e.memoryLimit)
	if err != nil {
		log.Printf("[Composer] WARNING: memory recall failed: %v", err)
		return "I'm having trouble accessing our conversation history right now, but I'm here to listen and support you. What would you like to talk about?", 0
	}
	if len(records) == 0 {
		return "I don't have any specific information about you stored from our previous conversations. Feel free to share anything you'd like me to know about you!", 0
	}

	var personal, prefs, moods, other []string
	for _, rec := range records {
		switch rec.Category {
		case memory.CategoryPersonalInfo:
			personal = append(personal, rec.Content)
		case memory.CategoryPreference:
			prefs = append(prefs, rec.Content)
		case memory.CategoryMoodPattern:
			moods = append(moods, rec.Content)
		default:
			other = append(other, rec.Content)
		}
	}

	var sb strings.Builder
	sb.WriteString("Based on what you've shared with me:")
	writeGroup(&sb, "About You", personal)
	writeGroup(&sb, "Your Preferences", prefs)
	writeGroup(&sb, "Recent Mood Context", moods)
	if len(other) > 2 {
		other = other[:2]
	}
	writeGroup(&sb, "Additional Context", other)
	sb.WriteString("\n\nIs there anything else you'd like me to know about you or anything you'd like to talk about?")
	return sb.String(), len(records)
}

func writeGroup(sb *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n\n**%s:**", heading)
	for _, line := range lines {
		fmt.Fprintf(sb, "\n- %s", line)
	}
}

// supportOrInformational handles the two knowledge-backed branches.
func (e *Engine) supportOrInformational(ctx context.Context, userID uint, msg string, cls classify.Classification, res *Result) {
	hits, err := e.kb.Search(ctx, msg, nil, nil, e.knowledgeLimit)
	if err != nil {
		log.Printf("[Composer] WARNING: knowledge search failed: %v", err)
	}
	res.KnowledgeUsed = hits

	if classify.IsInformationalQuery(msg) {
		res.Response = e.informationalResponse(msg, hits)
		return
	}

	res.Response = e.supportResponse(ctx, userID, msg, cls, hits, res)
}

// informationalResponse answers a factual question directly from
// retrieved knowledge: no emotional-support deflection.
func (e *Engine) informationalResponse(msg string, hits []knowledge.Result) string {
	if len(hits) == 0 {
		return "I want to give you accurate information. Could you be more specific about what aspect you'd like to know more about?"
	}

	var sb strings.Builder
	sb.WriteString("Here's what I can share on that:\n")
	for _, hit := range hits {
		if hit.Title != "" {
			fmt.Fprintf(&sb, "\n**%s**\n", hit.Title)
		}
		sb.WriteString(strings.TrimSpace(hit.Content))
		sb.WriteString("\n")
	}
	sb.WriteString("\nIf anything here raises more questions, ask away. And if this is affecting your daily life, a mental health professional can give you personalized guidance.")
	return sb.String()
}

// supportResponse builds a generation prompt from everything known
// about the user and falls back to the template banks when the
// generator is missing, failing, or evasive.
func (e *Engine) supportResponse(ctx context.Context, userID uint, msg string, cls classify.Classification, hits []knowledge.Result, res *Result) string {
	profile, err := e.memories.GetProfile(ctx, userID)
	if err != nil {
		log.Printf("[Composer] WARNING: failed to load profile: %v", err)
		profile = nil
	}

	records, err := e.memories.Retrieve(ctx, userID, msg, nil, 2)
	if err != nil {
		log.Printf("[Composer] WARNING: memory retrieval failed: %v", err)
	}
	res.MemoryUsed = len(records)

	if e.generator != nil {
		prompt := e.buildPrompt(msg, cls, profile, records, hits)
		text, err := e.generator.Generate(ctx, supportSystemPrompt(profile), prompt)
		if err != nil {
			log.Printf("[Composer] WARNING: generation failed, using template: %v", err)
		} else if degenerate(text) {
			log.Printf("[Composer] WARNING: degenerate generation, using template")
		} else {
			res.Personalized = profile != nil
			return text
		}
	}

	return e.templateResponse(msg, cls, profile)
}

// buildPrompt assembles the user-turn context block for the generator.
func (e *Engine) buildPrompt(msg string, cls classify.Classification, profile *memory.Profile, records []memory.Record, hits []knowledge.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User message: %s\n", msg)
	fmt.Fprintf(&sb, "Detected sentiment: %s (confidence %.1f)\n", cls.Sentiment, cls.Confidence)

	if len(records) > 0 {
		sb.WriteString("\nWhat you know about this user:\n")
		for _, rec := range records {
			fmt.Fprintf(&sb, "- %s\n", rec.Content)
		}
	}

	if profile != nil {
		strategies := memory.DecodeList(profile.EffectiveStrategies)
		if len(strategies) > 3 {
			strategies = strategies[:3]
		}
		if len(strategies) > 0 {
			fmt.Fprintf(&sb, "\nStrategies that have helped this user before: %s\n", strings.Join(strategies, "; "))
		}
	}

	if len(hits) > 0 {
		sb.WriteString("\nRelevant knowledge:\n")
		for i, hit := range hits {
			if i == 2 {
				break
			}
			snippet := hit.Content
			if len(snippet) > 300 {
				snippet = snippet[:300]
			}
			fmt.Fprintf(&sb, "- %s\n", snippet)
		}
	}
	return sb.String()
}

func supportSystemPrompt(profile *memory.Profile) string {
	tone, length := "supportive", "medium"
	if profile != nil {
		if profile.PreferredTone != "" {
			tone = profile.PreferredTone
		}
		if profile.ResponseLength != "" {
			length = profile.ResponseLength
		}
	}
	return fmt.Sprintf("You are a compassionate mental health support companion. Respond in a %s tone with a %s-length reply. Validate feelings first, then offer at most two concrete suggestions. Never diagnose. Encourage professional help when struggles persist.", tone, length)
}

// degenerate flags generator output too short or evasive to send to
// someone seeking support.
func degenerate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 20 {
		return true
	}
	lower := strings.ToLower(trimmed)
	refusals := []string{"i can't help", "i cannot help", "i am not able to", "i'm not able to", "as an ai"}
	for _, phrase := range refusals {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// templateResponse picks from the sentiment-matched template bank and
// appends a topic-specific coping strategy when one applies.
func (e *Engine) templateResponse(msg string, cls classify.Classification, profile *memory.Profile) string {
	var response string
	switch cls.Sentiment {
	case classify.SentimentNegative, classify.SentimentSlightlyNegative:
		response = e.pick(supportiveTemplates)
	case classify.SentimentPositive:
		response = e.pick(positiveTemplates)
	default:
		response = e.pick(neutralTemplates)
	}

	if topic := classify.DetectTopic(msg); topic != "" {
		if strategies, ok := copingStrategies[topic]; ok {
			response += fmt.Sprintf("\n\n**For %s specifically:** %s", topic, e.pick(strategies))
		}
	}

	if profile != nil {
		if effective := memory.DecodeList(profile.EffectiveStrategies); len(effective) > 0 {
			shown := effective
			if len(shown) > 2 {
				shown = shown[:2]
			}
			response += fmt.Sprintf("\n\nBased on what has worked for you before, you might try: %s", strings.Join(shown, ", "))
		}
	}
	return response
}

func (e *Engine) pick(options []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return options[e.rng.Intn(len(options))]
}

// recordInteraction applies the side effects of one exchange. All of
// it is best-effort: a failed write is logged and the response ships
// anyway.
func (e *Engine) recordInteraction(ctx context.Context, userID uint, roomID uint, msg string, cls classify.Classification, res *Result) {
	// Every crisis leaves a trigger memory; urgency only raises the
	// importance, it never gates the write.
	if res.CrisisDetected {
		importance := memory.ImportanceHigh
		if cls.Urgency == classify.UrgencyCritical {
			importance = memory.ImportanceCritical
		}
		content := fmt.Sprintf("Crisis indicators detected: %s", strings.Join(cls.CrisisKeywords, ", "))
		if _, err := e.memories.Store(ctx, userID, content, memory.CategoryTrigger, importance, map[string]interface{}{"urgency": string(cls.Urgency)}, ""); err != nil {
			log.Printf("[Composer] WARNING: failed to store trigger memory: %v", err)
		}
	}

	if cls.Confidence > 0.6 {
		content := fmt.Sprintf("User mood: %s", cls.Sentiment)
		if _, err := e.memories.Store(ctx, userID, content, memory.CategoryMoodPattern, memory.ImportanceMedium, map[string]interface{}{"confidence": cls.Confidence}, ""); err != nil {
			log.Printf("[Composer] WARNING: failed to store mood memory: %v", err)
		}
	}

	if hasCopingFeedback(msg) {
		if _, err := e.memories.Store(ctx, userID, msg, memory.CategoryPreference, memory.ImportanceMedium, nil, ""); err != nil {
			log.Printf("[Composer] WARNING: failed to store preference memory: %v", err)
		}
	} else if classify.HasFirstPerson(msg) && !classify.HasSensitiveTerms(msg) && !res.CrisisDetected {
		if _, err := e.memories.Store(ctx, userID, msg, memory.CategoryPersonalInfo, memory.ImportanceMedium, nil, ""); err != nil {
			log.Printf("[Composer] WARNING: failed to store personal info memory: %v", err)
		}
	}

	topics := []string{}
	if topic := classify.DetectTopic(msg); topic != "" {
		topics = append(topics, topic)
	}
	for _, hit := range res.KnowledgeUsed {
		if hit.Title != "" {
			topics = append(topics, hit.Title)
		}
	}
	upd := memory.ConversationUpdate{
		KeyTopics: topics,
		EmotionalState: map[string]interface{}{
			"sentiment":  string(cls.Sentiment),
			"confidence": cls.Confidence,
			"at":         time.Now().Format(time.RFC3339),
		},
		Concerns:      classify.ExtractConcerns(msg, 5),
		NeedsFollowup: res.CrisisDetected,
	}
	if res.CrisisDetected {
		upd.FollowupNotes = "Crisis indicators in conversation, check in on next contact"
	}
	if _, err := e.memories.UpdateConversation(ctx, userID, roomID, upd); err != nil {
		log.Printf("[Composer] WARNING: failed to update conversation: %v", err)
	}

	if err := e.memories.Learn(ctx, userID, msg, cls); err != nil {
		log.Printf("[Composer] WARNING: failed to update profile: %v", err)
	}

	for _, hit := range res.KnowledgeUsed {
		if hit.Title == "" {
			continue
		}
		if err := e.kb.RecordUsage(ctx, hit.Title); err != nil {
			log.Printf("[Composer] WARNING: failed to record knowledge usage: %v", err)
		}
	}
}

var copingFeedbackPhrases = []string{
	"helped me", "helps me", "worked for me", "works for me",
	"made me feel better", "makes me feel better", "found it helpful",
}

func hasCopingFeedback(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range copingFeedbackPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// CheckCrisis exposes the classifier verdict without composing a
// response or touching storage.
func (e *Engine) CheckCrisis(msg string) CrisisCheck {
	cls := classify.Classify(msg)
	return CrisisCheck{
		IsCrisis: len(cls.CrisisKeywords) > 0 || cls.Sentiment == classify.SentimentCrisis,
		Keywords: cls.CrisisKeywords,
		Urgency:  cls.Urgency,
	}
}

// RecordFeedback forwards knowledge feedback to the base.
func (e *Engine) RecordFeedback(ctx context.Context, title string, helpful bool) error {
	return e.kb.RecordFeedback(ctx, title, helpful)
}

// MemorySummary returns the user's memory statistics.
func (e *Engine) MemorySummary(ctx context.Context, userID uint) (*memory.Stats, error) {
	return e.memories.GetStats(ctx, userID)
}
