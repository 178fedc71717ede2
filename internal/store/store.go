package store

import (
	"context"
	"encoding/json"

	"github.com/eldtechnologies/grove/internal/models"
)

// TopicUpdate describes a partial topic update. Nil fields are left
// untouched. SetActiveNode distinguishes "write active_node_id, possibly to
// NULL" from "leave it alone".
type TopicUpdate struct {
	Name          *string
	AssistantID   *string
	AssistantMeta json.RawMessage
	Prompt        *string
	GroupID       *string
	Pinned        *bool
	SortOrder     *int64
	ActiveNodeID  *string
	SetActiveNode bool
}

// MessageUpdate describes a partial message update. Nil fields are left
// untouched. ParentID can only be moved to another message, never cleared;
// roots are only created by inserting with a nil parent.
type MessageUpdate struct {
	ParentID        *string
	Role            *string
	Data            json.RawMessage
	Status          *string
	SiblingsGroupID *int64
	AssistantID     *string
	ModelID         *string
	ModelMeta       json.RawMessage
	TraceID         *string
	Stats           json.RawMessage
}

// DataStore defines the interface for persistent storage of topics and
// messages. SQLiteStore, PostgresStore and MemoryStore implement it.
//
// Lookups return (nil, nil) when the row does not exist. Multi-row mutations
// (InsertMessages, ReparentMessages, DeleteMessages, DeleteTopicMessages)
// execute as a single statement or a single transaction, so readers never
// observe a partial write.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Topic operations
	CreateTopic(ctx context.Context, t *models.Topic) (*models.Topic, error)
	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	ListTopics(ctx context.Context, limit, offset int) ([]models.Topic, int, error)
	ListRecentTopics(ctx context.Context, limit int) ([]models.Topic, error)
	UpdateTopic(ctx context.Context, id string, upd TopicUpdate) error
	DeleteTopic(ctx context.Context, id string) error
	CountTopics(ctx context.Context) (int64, error)

	// Message operations
	InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	InsertMessages(ctx context.Context, msgs []*models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListTopicMessages(ctx context.Context, topicID string) ([]models.Message, error)
	ListChildren(ctx context.Context, parentID string) ([]models.Message, error)
	UpdateMessage(ctx context.Context, id string, upd MessageUpdate) error
	ReparentMessages(ctx context.Context, ids []string, parentID *string) error
	DeleteMessages(ctx context.Context, ids []string) error
	DeleteTopicMessages(ctx context.Context, topicID string) error
	DescendantIDs(ctx context.Context, messageID string) ([]string, error)
	CountMessages(ctx context.Context) (int64, error)
}
