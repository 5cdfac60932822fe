package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"haven/internal/classify"
	"haven/internal/config"
)

// GetProfile returns the personalization profile for a user, creating
// one with defaults on first access.
func (s *Service) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	var prof Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prof).Error
	if err == nil {
		return &prof, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	retention := 90
	if c := config.GetConfig(); c != nil && c.Engine.DefaultRetentionDays > 0 {
		retention = c.Engine.DefaultRetentionDays
	}
	prof = Profile{
		UserID:            userID,
		PreferredTone:     "supportive",
		ResponseLength:    "medium",
		CrisisSensitivity: "high",
		RetentionDays:     retention,
		AdaptationScore:   0.5,
	}
	if err := s.db.WithContext(ctx).Create(&prof).Error; err != nil {
		// Lost a create race; the winner's row satisfies the caller.
		var again Profile
		if err2 := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&again).Error; err2 == nil {
			return &again, nil
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &prof, nil
}

// UpdateProfile applies explicit preference changes. Empty fields are
// left untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, tone, length, sensitivity string, retentionDays int) (*Profile, error) {
	prof, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if tone != "" {
		updates["preferred_tone"] = tone
	}
	if length != "" {
		updates["response_length"] = length
	}
	if sensitivity != "" {
		updates["crisis_sensitivity"] = sensitivity
	}
	if retentionDays > 0 {
		updates["retention_days"] = retentionDays
	}
	if len(updates) == 0 {
		return prof, nil
	}
	if err := s.db.WithContext(ctx).Model(prof).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return prof, nil
}

// Learn folds one classified message into the profile: new crisis
// keywords extend the trigger list, the sentiment extends the mood
// history, and the day-of-week/hour bucket counter advances. The
// interaction counter increments atomically.
func (s *Service) Learn(ctx context.Context, userID uint, message string, cls classify.Classification) error {
	prof, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"interaction_count": gorm.Expr("interaction_count + 1"),
	}

	if len(cls.CrisisKeywords) > 0 {
		triggers := unionList(decodeList(prof.TriggerPatterns), cls.CrisisKeywords)
		updates["trigger_patterns"] = encodeList(triggers)
	}

	moods := decodeMap(prof.MoodPatterns)
	history, _ := moods["history"].([]interface{})
	history = append(history, map[string]interface{}{
		"sentiment":  string(cls.Sentiment),
		"confidence": cls.Confidence,
		"at":         time.Now().Format(time.RFC3339),
	})
	if len(history) > 50 {
		history = history[len(history)-50:]
	}
	moods["history"] = history
	updates["mood_patterns"] = encodeMap(moods)

	now := time.Now()
	bucket := fmt.Sprintf("%s_%02d", now.Weekday().String()[:3], now.Hour())
	times := decodeMap(prof.InteractionTimes)
	switch n := times[bucket].(type) {
	case float64:
		times[bucket] = n + 1
	default:
		times[bucket] = float64(1)
	}
	updates["interaction_times"] = encodeMap(times)

	if err := s.db.WithContext(ctx).Model(prof).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update profile from message: %w", err)
	}
	return nil
}

// RecordStrategy remembers that a coping strategy landed well (or not)
// and nudges the adaptation score toward the outcome.
func (s *Service) RecordStrategy(ctx context.Context, userID uint, strategy string, helpful bool) error {
	prof, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if helpful {
		effective := appendIfNew(decodeList(prof.EffectiveStrategies), strategy)
		updates["effective_strategies"] = encodeList(effective)
	}

	// Exponential moving average keeps the score in (0, 1).
	target := 0.0
	if helpful {
		target = 1.0
	}
	updates["adaptation_score"] = prof.AdaptationScore*0.9 + target*0.1

	if err := s.db.WithContext(ctx).Model(prof).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record strategy outcome: %w", err)
	}
	return nil
}
