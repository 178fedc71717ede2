package conversation

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/grove/internal/ids"
	"github.com/eldtechnologies/grove/internal/models"
	"github.com/eldtechnologies/grove/internal/store"
)

// MessageService is the mutation engine and read surface for message nodes.
// It is stateless: all state lives behind the injected DataStore.
type MessageService struct {
	store store.DataStore
	log   zerolog.Logger
}

// NewMessageService creates a message service over the given store.
func NewMessageService(st store.DataStore, logger zerolog.Logger) *MessageService {
	return &MessageService{store: st, log: logger}
}

// CreateMessageInput is the DTO for creating a message. SetAsActive defaults
// to true when nil: creating a message normally advances the topic's view
// pointer to it.
type CreateMessageInput struct {
	ParentID        *string         `json:"parent_id,omitempty"`
	Role            string          `json:"role"`
	Data            json.RawMessage `json:"data,omitempty"`
	Status          string          `json:"status,omitempty"`
	SiblingsGroupID int64           `json:"siblings_group_id,omitempty"`
	SetAsActive     *bool           `json:"set_as_active,omitempty"`
	AssistantID     string          `json:"assistant_id,omitempty"`
	ModelID         string          `json:"model_id,omitempty"`
	ModelMeta       json.RawMessage `json:"model_meta,omitempty"`
	TraceID         string          `json:"trace_id,omitempty"`
	Stats           json.RawMessage `json:"stats,omitempty"`
}

// UpdateMessageInput is the DTO for a partial message update. Nil fields are
// left untouched.
type UpdateMessageInput struct {
	ParentID        *string         `json:"parent_id,omitempty"`
	Role            *string         `json:"role,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	Status          *string         `json:"status,omitempty"`
	SiblingsGroupID *int64          `json:"siblings_group_id,omitempty"`
	AssistantID     *string         `json:"assistant_id,omitempty"`
	ModelID         *string         `json:"model_id,omitempty"`
	ModelMeta       json.RawMessage `json:"model_meta,omitempty"`
	TraceID         *string         `json:"trace_id,omitempty"`
	Stats           json.RawMessage `json:"stats,omitempty"`
}

// DeleteResult reports which messages a delete removed and, for non-cascade
// deletes, which children were re-attached one level up.
type DeleteResult struct {
	DeletedIDs    []string `json:"deleted_ids"`
	ReparentedIDs []string `json:"reparented_ids,omitempty"`
}

// GetByID retrieves a single message.
func (s *MessageService) GetByID(ctx context.Context, id string) (*models.Message, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound("message", id)
	}
	return m, nil
}

// Create validates and inserts a new message node, then advances the topic's
// active node to it unless the DTO opts out.
func (s *MessageService) Create(ctx context.Context, topicID string, in CreateMessageInput) (*models.Message, error) {
	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrNotFound("topic", topicID)
	}

	if in.ParentID != nil {
		parent, err := s.store.GetMessage(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrNotFound("message", *in.ParentID)
		}
		if parent.TopicID != topicID {
			return nil, ErrInvalidOp("create message", "parent belongs to a different topic")
		}
	}

	status := in.Status
	if status == "" {
		status = models.StatusPending
	}

	m := &models.Message{
		ID:              ids.NewMessageID(),
		TopicID:         topicID,
		ParentID:        in.ParentID,
		Role:            in.Role,
		Data:            in.Data,
		Status:          status,
		SiblingsGroupID: in.SiblingsGroupID,
		AssistantID:     in.AssistantID,
		ModelID:         in.ModelID,
		ModelMeta:       in.ModelMeta,
		TraceID:         in.TraceID,
		Stats:           in.Stats,
	}

	created, err := s.store.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}

	if in.SetAsActive == nil || *in.SetAsActive {
		err := s.store.UpdateTopic(ctx, topicID, store.TopicUpdate{
			ActiveNodeID:  &created.ID,
			SetActiveNode: true,
		})
		if err != nil {
			return nil, err
		}
	}

	s.log.Debug().
		Str("topic_id", topicID).
		Str("message_id", created.ID).
		Str("role", created.Role).
		Msg("message created")

	return created, nil
}

// Update applies a partial update. Moving a message under a new parent runs
// the cycle check first: the new parent must not be the message itself or
// any of its descendants.
func (s *MessageService) Update(ctx context.Context, id string, in UpdateMessageInput) (*models.Message, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound("message", id)
	}

	if in.ParentID != nil && (m.ParentID == nil || *in.ParentID != *m.ParentID) {
		if err := s.checkReparent(ctx, m, *in.ParentID); err != nil {
			return nil, err
		}
	}

	upd := store.MessageUpdate{
		ParentID:        in.ParentID,
		Role:            in.Role,
		Data:            in.Data,
		Status:          in.Status,
		SiblingsGroupID: in.SiblingsGroupID,
		AssistantID:     in.AssistantID,
		ModelID:         in.ModelID,
		ModelMeta:       in.ModelMeta,
		TraceID:         in.TraceID,
		Stats:           in.Stats,
	}
	if err := s.store.UpdateMessage(ctx, id, upd); err != nil {
		return nil, err
	}

	return s.store.GetMessage(ctx, id)
}

// checkReparent validates that moving m under newParentID keeps the topic's
// parent graph acyclic. All checks run before any write.
func (s *MessageService) checkReparent(ctx context.Context, m *models.Message, newParentID string) error {
	if newParentID == m.ID {
		return ErrInvalidOp("update message", "would create cycle")
	}

	parent, err := s.store.GetMessage(ctx, newParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return ErrNotFound("message", newParentID)
	}
	if parent.TopicID != m.TopicID {
		return ErrInvalidOp("update message", "new parent belongs to a different topic")
	}

	descendants, err := s.store.DescendantIDs(ctx, m.ID)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if d == newParentID {
			return ErrInvalidOp("update message", "would create cycle")
		}
	}
	return nil
}

// Delete removes a message. With cascade the whole subtree goes; without it
// the node's direct children are re-attached to its former parent and only
// the node itself is removed. Deleting a root requires cascade, since roots
// have no parent to hand children to.
func (s *MessageService) Delete(ctx context.Context, id string, cascade bool) (*DeleteResult, error) {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound("message", id)
	}

	if m.IsRoot() && !cascade {
		return nil, ErrInvalidOp("delete message", "cascade required to delete a root message")
	}

	var result *DeleteResult
	if cascade {
		descendants, err := s.store.DescendantIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		deleted := append([]string{id}, descendants...)
		if err := s.store.DeleteMessages(ctx, deleted); err != nil {
			return nil, err
		}
		result = &DeleteResult{DeletedIDs: deleted}
	} else {
		children, err := s.store.ListChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		childIDs := make([]string, 0, len(children))
		for _, c := range children {
			childIDs = append(childIDs, c.ID)
		}
		if err := s.store.ReparentMessages(ctx, childIDs, m.ParentID); err != nil {
			return nil, err
		}
		if err := s.store.DeleteMessages(ctx, []string{id}); err != nil {
			return nil, err
		}
		result = &DeleteResult{DeletedIDs: []string{id}, ReparentedIDs: childIDs}
	}

	if err := s.repointActiveNode(ctx, m, result.DeletedIDs); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("topic_id", m.TopicID).
		Str("message_id", id).
		Bool("cascade", cascade).
		Int("deleted", len(result.DeletedIDs)).
		Msg("message deleted")

	return result, nil
}

// repointActiveNode moves the topic's active node to the deleted target's
// parent when the delete removed the node currently in view. Leaving the
// pointer dangling would trip the active-node invariant on the next read.
func (s *MessageService) repointActiveNode(ctx context.Context, target *models.Message, deletedIDs []string) error {
	topic, err := s.store.GetTopic(ctx, target.TopicID)
	if err != nil {
		return err
	}
	if topic == nil || topic.ActiveNodeID == nil {
		return nil
	}

	for _, id := range deletedIDs {
		if id == *topic.ActiveNodeID {
			return s.store.UpdateTopic(ctx, topic.ID, store.TopicUpdate{
				ActiveNodeID:  target.ParentID,
				SetActiveNode: true,
			})
		}
	}
	return nil
}

// GetPathToNode returns the ancestor chain of a message in root→leaf order.
func (s *MessageService) GetPathToNode(ctx context.Context, nodeID string) ([]models.Message, error) {
	m, err := s.store.GetMessage(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound("message", nodeID)
	}

	msgs, err := s.store.ListTopicMessages(ctx, m.TopicID)
	if err != nil {
		return nil, err
	}

	path, err := newMessageIndex(msgs).pathToRoot(nodeID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Message, len(path))
	for i, p := range path {
		out[i] = *p
	}
	return out, nil
}
