package models

import (
	"encoding/json"
	"time"
)

// Topic represents a conversation container. Its message set forms a tree;
// ActiveNodeID points at the message the conversation is currently viewed
// and continued from.
type Topic struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ActiveNodeID  *string         `json:"active_node_id,omitempty"`
	AssistantID   string          `json:"assistant_id,omitempty"`
	AssistantMeta json.RawMessage `json:"assistant_meta,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	GroupID       string          `json:"group_id,omitempty"`
	Pinned        bool            `json:"pinned"`
	SortOrder     int64           `json:"sort_order"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
