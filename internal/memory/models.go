package memory

import (
	"time"

	"gorm.io/datatypes"
)

// Category tags what kind of fact a memory record holds.
type Category string

const (
	CategoryPreference     Category = "preference"
	CategoryPersonalInfo   Category = "personal_info"
	CategoryMoodPattern    Category = "mood_pattern"
	CategoryTrigger        Category = "trigger"
	CategoryCopingStrategy Category = "coping_strategy"
	CategoryGoal           Category = "goal"
	CategoryProgress       Category = "progress"
	CategorySessionNote    Category = "session_note"
)

// Importance strictly orders retrieval preference.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// Rank maps importance onto its ordinal (critical > high > medium > low).
func (i Importance) Rank() int {
	switch i {
	case ImportanceCritical:
		return 4
	case ImportanceHigh:
		return 3
	case ImportanceMedium:
		return 2
	default:
		return 1
	}
}

// Record is one fact, pattern or event worth recalling about a user.
// Records are never physically deleted; they are deactivated when
// expired or superseded.
type Record struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UserID     uint           `json:"user_id" gorm:"index:idx_record_user_cat;index:idx_record_user_active"`
	Category   Category       `json:"category" gorm:"size:20;index:idx_record_user_cat"`
	Content    string         `json:"content"`
	Context    datatypes.JSON `json:"context"`
	Importance Importance     `json:"importance" gorm:"size:10;default:medium;index"`
	SourceRef  string         `json:"source_ref" gorm:"size:100"`
	SessionID  string         `json:"session_id" gorm:"size:100"`

	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	LastAccessed time.Time  `json:"last_accessed"`
	AccessCount  int        `json:"access_count"`

	Active     bool    `json:"active" gorm:"default:true;index:idx_record_user_active"`
	Confidence float64 `json:"confidence" gorm:"default:1"`

	EmbeddingID string `json:"embedding_id" gorm:"size:100"`
}

// Expired reports whether the record is past its expiry timestamp.
func (r *Record) Expired() bool {
	return r.ExpiresAt != nil && time.Now().After(*r.ExpiresAt)
}

// Conversation summarizes one ongoing session for a (user, room) pair.
// At most one row per pair has no end time; that row is the open
// conversation every new turn merges into. The partial unique index is
// what enforces the invariant — get-or-create races resolve at the
// storage layer, not with application mutexes.
type Conversation struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"uniqueIndex:idx_open_conversation,where:end_time IS NULL"`
	RoomID uint `json:"room_id" gorm:"uniqueIndex:idx_open_conversation,where:end_time IS NULL"`

	Summary        string         `json:"summary"`
	KeyTopics      datatypes.JSON `json:"key_topics"`
	EmotionalState datatypes.JSON `json:"emotional_state"`
	Concerns       datatypes.JSON `json:"concerns"`

	MessageCount int        `json:"message_count"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`

	NeedsFollowup bool   `json:"needs_followup" gorm:"index"`
	FollowupNotes string `json:"followup_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile holds one user's learned personalization state. Created
// lazily on first access; updated by append-only merges.
type Profile struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"uniqueIndex"`

	PreferredTone     string `json:"preferred_tone" gorm:"size:20;default:supportive"`
	ResponseLength    string `json:"response_length" gorm:"size:20;default:medium"`
	CrisisSensitivity string `json:"crisis_sensitivity" gorm:"size:20;default:high"`

	EffectiveStrategies datatypes.JSON `json:"effective_strategies"`
	TriggerPatterns     datatypes.JSON `json:"trigger_patterns"`
	MoodPatterns        datatypes.JSON `json:"mood_patterns"`
	InteractionTimes    datatypes.JSON `json:"interaction_times"`

	RetentionDays    int     `json:"retention_days" gorm:"default:90"`
	AdaptationScore  float64 `json:"adaptation_score" gorm:"default:0.5"`
	InteractionCount int     `json:"interaction_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentType tags the source kind of an embedded chunk.
type ContentType string

const (
	ContentMessage  ContentType = "message"
	ContentDocument ContentType = "document"
	ContentResource ContentType = "resource"
	ContentStrategy ContentType = "strategy"
	ContentMemory   ContentType = "memory"
)

// VectorRef is the database-side ledger row for one embedded chunk:
// every chunk in the vector index has exactly one ref. UserID is nil
// for shared knowledge.
type VectorRef struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	ContentType ContentType `json:"content_type" gorm:"size:20;index:idx_vref_type_user"`
	ContentID   string      `json:"content_id" gorm:"size:100"`
	ContentText string      `json:"content_text"`

	VectorID  string `json:"vector_id" gorm:"size:100;uniqueIndex"`
	Namespace string `json:"namespace" gorm:"size:100;index"`

	UserID *uint          `json:"user_id" gorm:"index:idx_vref_type_user"`
	Tags   datatypes.JSON `json:"tags"`
	Meta   datatypes.JSON `json:"meta"`

	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
