package classify

import (
	"regexp"
	"strings"
)

// Sentiment is a coarse mood label for a single message.
type Sentiment string

const (
	SentimentCrisis           Sentiment = "crisis"
	SentimentNegative         Sentiment = "negative"
	SentimentSlightlyNegative Sentiment = "slightly_negative"
	SentimentNeutral          Sentiment = "neutral"
	SentimentPositive         Sentiment = "positive"
)

// Urgency orders how quickly a message needs attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Classification is the full signal set for one message.
type Classification struct {
	CrisisKeywords     []string
	Sentiment          Sentiment
	Confidence         float64
	Urgency            Urgency
	PositiveIndicators int
	NegativeIndicators int
}

// Classify runs crisis, sentiment and urgency detection over raw text.
// Deterministic and side-effect free.
func Classify(text string) Classification {
	sentiment, confidence, pos, neg := analyzeSentiment(text)
	return Classification{
		CrisisKeywords:     DetectCrisisKeywords(text),
		Sentiment:          sentiment,
		Confidence:         confidence,
		Urgency:            CheckUrgency(text),
		PositiveIndicators: pos,
		NegativeIndicators: neg,
	}
}

// DetectCrisisKeywords returns crisis lexicon hits for the text.
//
// High-risk hits are always reported. Medium-risk hits pass a two-stage
// context gate: the text must not read as an informational question, and
// it must carry either first-person or urgency framing. The gate trades
// recall for precision so "what are the symptoms of anxiety" is not
// flagged, while "i feel hopeless right now" is. The gate never
// suppresses a high-risk hit.
func DetectCrisisKeywords(text string) []string {
	lower := strings.ToLower(text)
	var detected []string

	for _, kw := range highRiskKeywords {
		if strings.Contains(lower, kw) {
			detected = append(detected, kw)
		}
	}
	if len(detected) > 0 {
		return detected
	}

	if IsInformationalQuery(text) {
		return nil
	}
	if !hasAny(lower, firstPersonIndicators) && !hasAny(lower, urgencyIndicators) {
		return nil
	}
	for _, kw := range mediumRiskKeywords {
		if strings.Contains(lower, kw) {
			detected = append(detected, kw)
		}
	}
	return detected
}

// analyzeSentiment counts positive-lexicon hits against combined
// crisis-lexicon hits. Confidence values are fixed constants tied to the
// branch taken, not computed from the counts.
func analyzeSentiment(text string) (Sentiment, float64, int, int) {
	lower := strings.ToLower(text)

	pos := countHits(lower, positiveKeywords)
	neg := countHits(lower, highRiskKeywords) +
		countHits(lower, mediumRiskKeywords) +
		countHits(lower, lowRiskKeywords)

	switch {
	case neg > pos:
		if hasAny(lower, highRiskKeywords) {
			return SentimentCrisis, 0.9, pos, neg
		}
		if hasAny(lower, mediumRiskKeywords) {
			return SentimentNegative, 0.7, pos, neg
		}
		return SentimentSlightlyNegative, 0.5, pos, neg
	case pos > neg:
		return SentimentPositive, 0.6, pos, neg
	default:
		return SentimentNeutral, 0.4, pos, neg
	}
}

// AnalyzeSentiment exposes the sentiment branch and its fixed confidence.
func AnalyzeSentiment(text string) (Sentiment, float64) {
	s, c, _, _ := analyzeSentiment(text)
	return s, c
}

// CheckUrgency combines high-risk keyword presence with immediacy
// phrases: critical > high > medium > low.
func CheckUrgency(text string) Urgency {
	lower := strings.ToLower(text)
	highRisk := hasAny(lower, highRiskKeywords)
	immediate := hasAny(lower, immediacyPhrases)

	switch {
	case highRisk && immediate:
		return UrgencyCritical
	case highRisk:
		return UrgencyHigh
	case hasAny(lower, mediumRiskKeywords):
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// IsInformationalQuery reports whether the text reads as an educational
// question ("what are the symptoms of ...") rather than a disclosure.
func IsInformationalQuery(text string) bool {
	return hasAny(strings.ToLower(text), informationalPatterns)
}

// IsMemoryQuery reports whether the user is asking what the assistant
// knows about them.
func IsMemoryQuery(text string) bool {
	return hasAny(strings.ToLower(text), memoryQueryPatterns)
}

// HasFirstPerson reports first-person framing ("i feel", "my ...").
func HasFirstPerson(text string) bool {
	return hasAny(strings.ToLower(text), firstPersonIndicators)
}

// HasSensitiveTerms reports whether the text touches topics that should
// never be captured as plain personal-info memories.
func HasSensitiveTerms(text string) bool {
	return hasAny(strings.ToLower(text), sensitiveTerms)
}

// DetectTopic maps the text onto a coping-strategy bucket
// (anxiety, depression, stress, anger). Empty when nothing matches.
func DetectTopic(text string) string {
	lower := strings.ToLower(text)
	// Fixed evaluation order keeps the result deterministic when a
	// message matches several buckets.
	for _, topic := range []string{"anxiety", "depression", "stress", "anger"} {
		if hasAny(lower, topicKeywords[topic]) {
			return topic
		}
	}
	return ""
}

var concernPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)worried about ([a-z0-9' ]{2,40}?)(?:[.,;!?]| and | but |$)`),
	regexp.MustCompile(`(?i)struggling with ([a-z0-9' ]{2,40}?)(?:[.,;!?]| and | but |$)`),
	regexp.MustCompile(`(?i)afraid of ([a-z0-9' ]{2,40}?)(?:[.,;!?]| and | but |$)`),
	regexp.MustCompile(`(?i)stressed about ([a-z0-9' ]{2,40}?)(?:[.,;!?]| and | but |$)`),
	regexp.MustCompile(`(?i)problems? with ([a-z0-9' ]{2,40}?)(?:[.,;!?]| and | but |$)`),
}

// ExtractConcerns pulls specific concerns out of text using phrase
// patterns like "worried about X", capped at max entries.
func ExtractConcerns(text string, max int) []string {
	var concerns []string
	seen := make(map[string]bool)
	for _, re := range concernPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			c := strings.TrimSpace(strings.ToLower(m[1]))
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			concerns = append(concerns, c)
			if len(concerns) >= max {
				return concerns
			}
		}
	}
	return concerns
}

func hasAny(lower string, table []string) bool {
	for _, kw := range table {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func countHits(lower string, table []string) int {
	n := 0
	for _, kw := range table {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
