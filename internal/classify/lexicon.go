package classify

// Lexicon tables are static configuration data, not behavior. They are
// deliberately package-level and flat so recalibration by a clinician is
// a data edit, not a code change.

var highRiskKeywords = []string{
	"suicide", "kill myself", "end my life", "want to die", "better off dead",
	"end it all", "take my own life", "not worth living", "want to disappear",
	"hurt myself", "self harm", "cut myself", "overdose", "pills",
}

var mediumRiskKeywords = []string{
	"depressed", "hopeless", "worthless", "alone", "trapped", "desperate",
	"can't go on", "giving up", "no point", "burden", "hate myself",
	"anxiety", "panic", "scared", "terrified", "overwhelmed",
}

var lowRiskKeywords = []string{
	"sad", "upset", "worried", "stressed", "tired", "frustrated",
	"angry", "confused", "lonely", "disappointed",
}

var positiveKeywords = []string{
	"happy", "good", "great", "wonderful", "excited", "joyful", "grateful",
	"peaceful", "calm", "content", "hopeful", "optimistic", "blessed",
}

// informationalPatterns mark a message as an educational question rather
// than a personal disclosure. A medium-risk keyword inside such a
// question is not treated as a crisis signal.
var informationalPatterns = []string{
	"list", "what are", "tell me about", "explain", "describe", "causes of",
	"symptoms of", "types of", "examples of", "how to", "ways to", "methods",
	"techniques", "strategies for", "signs of", "reasons for", "factors",
	"what causes", "why do", "what is", "define", "difference between",
}

// memoryQueryPatterns identify the user asking what the assistant has
// stored about them.
var memoryQueryPatterns = []string{
	"what do you know", "tell me about me", "remember about me",
	"what do you remember", "my information", "about me", "know about me",
}

var firstPersonIndicators = []string{
	"i am", "i'm", "i feel", "i've been", "i have been", "my ", "me ",
	"i can't", "i cant", "i want", "i need", "i keep",
}

var urgencyIndicators = []string{
	"right now", "today", "tonight", "can't", "cant", "anymore",
	"always", "never", "constantly",
}

// immediacyPhrases signal imminent danger when combined with a
// high-risk keyword.
var immediacyPhrases = []string{
	"right now", "tonight", "today", "going to", "plan to",
	"have the", "ready to", "can't wait",
}

// topicKeywords route to a coping-strategy bucket.
var topicKeywords = map[string][]string{
	"anxiety":    {"anxious", "anxiety", "panic", "worry", "worried"},
	"depression": {"depressed", "depression", "hopeless", "empty"},
	"stress":     {"stressed", "stress", "pressure", "overwhelmed"},
	"anger":      {"angry", "anger", "furious", "rage"},
}

// sensitiveTerms block automatic personal-info capture; disclosures
// containing these are handled by the crisis and mood paths instead.
var sensitiveTerms = []string{
	"suicide", "kill", "die", "hurt myself", "self harm", "overdose",
	"abuse", "assault",
}

// HighRiskKeywords returns a copy of the high-risk lexicon for callers
// that need to display or audit it.
func HighRiskKeywords() []string {
	out := make([]string, len(highRiskKeywords))
	copy(out, highRiskKeywords)
	return out
}
