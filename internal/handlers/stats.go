package handlers

import (
	"net/http"
	"time"
)

// TopicSummary represents a recently active topic.
type TopicSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalTopics   int64          `json:"total_topics"`
	TotalMessages int64          `json:"total_messages"`
	LastActivity  string         `json:"last_activity"`
	RecentTopics  []TopicSummary `json:"recent_topics"`
}

// Stats returns aggregate usage statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalTopics, err := h.db.CountTopics(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count topics")
		return
	}

	totalMessages, err := h.db.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	recent, err := h.db.ListRecentTopics(ctx, 5)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list recent topics")
		return
	}

	lastActivity := "no activity yet"
	if len(recent) > 0 {
		lastActivity = formatTimeAgo(recent[0].UpdatedAt)
	}

	recentTopics := make([]TopicSummary, 0, len(recent))
	for _, t := range recent {
		recentTopics = append(recentTopics, TopicSummary{
			ID:        t.ID,
			Name:      t.Name,
			UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalTopics:   totalTopics,
		TotalMessages: totalMessages,
		LastActivity:  lastActivity,
		RecentTopics:  recentTopics,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return formatInt(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return formatInt(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return formatInt(days) + " days ago"
	}
}

// formatInt converts an int to string without importing strconv.
func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
