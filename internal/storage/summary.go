package storage

import (
	"sort"

	"carelink/backend/internal/models"
)

// buildSummaries joins conversations with their last message and the other
// participant. Conversations whose counterpart no longer resolves are skipped,
// and the result is ordered by LastMessageAt, newest first.
func buildSummaries(userID string, convs []models.Conversation, lastMessages map[string]*models.Message, users map[string]*models.User) []models.ConversationSummary {
	out := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		other, ok := users[c.Other(userID)]
		if !ok {
			continue
		}

		summary := models.ConversationSummary{
			ID:            c.ID,
			Participants:  []string(c.Participants),
			LastMessageAt: c.LastMessageAt,
			User:          other.Public(),
		}
		if c.LastMessageID != nil {
			summary.LastMessage = lastMessages[*c.LastMessageID]
		}
		out = append(out, summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}
