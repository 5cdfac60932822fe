package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConversationUpdate is one message's contribution to the running
// conversation summary.
type ConversationUpdate struct {
	Summary        string
	KeyTopics      []string
	EmotionalState map[string]interface{}
	Concerns       []string
	NeedsFollowup  bool
	FollowupNotes  string
}

// maxConcerns caps the stored concern list per conversation.
const maxConcerns = 5

// UpdateConversation folds a message into the open conversation for
// (user, room), creating one if none is open. List fields merge as
// order-preserving unions; the message counter increments atomically.
func (s *Service) UpdateConversation(ctx context.Context, userID uint, roomID uint, upd ConversationUpdate) (*Conversation, error) {
	conv, err := s.openConversation(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"message_count": gorm.Expr("message_count + 1"),
	}
	if upd.Summary != "" {
		updates["summary"] = upd.Summary
	}
	if len(upd.EmotionalState) > 0 {
		state := decodeMap(conv.EmotionalState)
		for k, v := range upd.EmotionalState {
			state[k] = v
		}
		updates["emotional_state"] = encodeMap(state)
	}
	if len(upd.KeyTopics) > 0 {
		merged := unionList(decodeList(conv.KeyTopics), upd.KeyTopics)
		updates["key_topics"] = encodeList(merged)
	}
	if len(upd.Concerns) > 0 {
		merged := unionList(decodeList(conv.Concerns), upd.Concerns)
		if len(merged) > maxConcerns {
			merged = merged[len(merged)-maxConcerns:]
		}
		updates["concerns"] = encodeList(merged)
	}
	if upd.NeedsFollowup {
		updates["needs_followup"] = true
		if upd.FollowupNotes != "" {
			updates["followup_notes"] = upd.FollowupNotes
		}
	}

	if err := s.db.WithContext(ctx).Model(conv).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if err := s.db.WithContext(ctx).First(conv, conv.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}
	return conv, nil
}

// openConversation fetches the open row for (user, room) or creates
// one. The partial unique index makes concurrent creates race-safe:
// a conflicting insert retries the lookup.
func (s *Service) openConversation(ctx context.Context, userID uint, roomID uint) (*Conversation, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var conv Conversation
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND room_id = ? AND end_time IS NULL", userID, roomID).
			First(&conv).Error
		if err == nil {
			return &conv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up conversation: %w", err)
		}

		conv = Conversation{UserID: userID, RoomID: roomID, StartTime: time.Now()}
		if err := s.db.WithContext(ctx).Create(&conv).Error; err == nil {
			return &conv, nil
		}
		// Lost the insert race; the winner's row is found next pass.
	}
	return nil, fmt.Errorf("failed to open conversation for user %d room %d", userID, roomID)
}

// EndConversation closes the open conversation, if any. Closing twice
// is a no-op.
func (s *Service) EndConversation(ctx context.Context, userID uint, roomID uint) error {
	err := s.db.WithContext(ctx).Model(&Conversation{}).
		Where("user_id = ? AND room_id = ? AND end_time IS NULL", userID, roomID).
		Update("end_time", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}
	return nil
}

// RecentConversations returns the latest conversations for a user,
// newest first.
func (s *Service) RecentConversations(ctx context.Context, userID uint, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 5
	}
	var convs []Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}
