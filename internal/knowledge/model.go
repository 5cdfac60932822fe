package knowledge

import (
	"time"

	"gorm.io/datatypes"
)

// Kind distinguishes what a knowledge item is for.
type Kind string

const (
	KindTechnique      Kind = "technique"
	KindInformation    Kind = "information"
	KindResource       Kind = "resource"
	KindCrisisResponse Kind = "crisis_response"
	KindTherapyNote    Kind = "therapy_note"
	KindResearch       Kind = "research"
)

// Item is one curated knowledge base entry. Titles are unique so
// seeding and imports stay idempotent.
type Item struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"uniqueIndex;not null" json:"title"`
	Content          string         `gorm:"not null" json:"content"`
	Kind             Kind           `gorm:"index:idx_kind_active;not null" json:"kind"`
	Topics           datatypes.JSON `json:"topics"`
	Difficulty       string         `gorm:"default:beginner" json:"difficulty"`
	TargetConditions datatypes.JSON `json:"target_conditions"`
	Source           string         `json:"source"`
	EvidenceBased    bool           `gorm:"default:true" json:"evidence_based"`

	// EffectivenessRating is the curator's 0-10 baseline; feedback
	// counters refine it through EffectivenessScore.
	EffectivenessRating float64 `gorm:"index;default:0" json:"effectiveness_rating"`
	UsageCount          int     `gorm:"default:0" json:"usage_count"`
	PositiveFeedback    int     `gorm:"default:0" json:"positive_feedback"`
	NegativeFeedback    int     `gorm:"default:0" json:"negative_feedback"`

	Active    bool      `gorm:"index:idx_kind_active;default:true" json:"active"`
	VectorID  string    `json:"vector_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivenessScore blends the curated rating with observed feedback.
// Computed on demand, never stored, so it always reflects the current
// counters. An unused item falls back to its curated rating.
func (i *Item) EffectivenessScore() float64 {
	if i.UsageCount == 0 {
		return i.EffectivenessRating
	}
	ratio := float64(i.PositiveFeedback-i.NegativeFeedback) / float64(i.UsageCount)
	return (i.EffectivenessRating + ratio*5) / 2
}
