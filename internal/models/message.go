package models

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// UngroupedSiblings is the sentinel SiblingsGroupID for messages that are not
// part of an alternatives group.
const UngroupedSiblings int64 = 0

// Message represents one node in a topic's conversation tree.
// A nil ParentID marks a tree root. Messages sharing a nonzero
// SiblingsGroupID under the same parent are alternative responses
// to that parent.
type Message struct {
	ID              string          `json:"id"` // ULID
	TopicID         string          `json:"topic_id"`
	ParentID        *string         `json:"parent_id,omitempty"`
	Role            string          `json:"role"`
	Data            json.RawMessage `json:"data,omitempty"` // opaque content payload
	Status          string          `json:"status"`
	SiblingsGroupID int64           `json:"siblings_group_id"`
	AssistantID     string          `json:"assistant_id,omitempty"`
	ModelID         string          `json:"model_id,omitempty"`
	ModelMeta       json.RawMessage `json:"model_meta,omitempty"`
	TraceID         string          `json:"trace_id,omitempty"`
	Stats           json.RawMessage `json:"stats,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsRoot reports whether the message is a tree root.
func (m *Message) IsRoot() bool {
	return m.ParentID == nil
}
