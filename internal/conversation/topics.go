package conversation

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/grove/internal/ids"
	"github.com/eldtechnologies/grove/internal/models"
	"github.com/eldtechnologies/grove/internal/store"
)

// TopicService manages conversation containers, including the fork engine.
type TopicService struct {
	store store.DataStore
	log   zerolog.Logger
}

// NewTopicService creates a topic service over the given store.
func NewTopicService(st store.DataStore, logger zerolog.Logger) *TopicService {
	return &TopicService{store: st, log: logger}
}

// CreateTopicInput is the DTO for creating a topic. When SourceNodeID is
// set, the new topic is forked: its message chain is a deep copy of the
// ancestor path root→source from the source node's topic.
type CreateTopicInput struct {
	Name          string          `json:"name"`
	AssistantID   string          `json:"assistant_id,omitempty"`
	AssistantMeta json.RawMessage `json:"assistant_meta,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	GroupID       string          `json:"group_id,omitempty"`
	SourceNodeID  string          `json:"source_node_id,omitempty"`
}

// UpdateTopicInput is the DTO for a partial topic update. Nil fields are
// left untouched.
type UpdateTopicInput struct {
	Name          *string         `json:"name,omitempty"`
	AssistantID   *string         `json:"assistant_id,omitempty"`
	AssistantMeta json.RawMessage `json:"assistant_meta,omitempty"`
	Prompt        *string         `json:"prompt,omitempty"`
	GroupID       *string         `json:"group_id,omitempty"`
	Pinned        *bool           `json:"pinned,omitempty"`
	SortOrder     *int64          `json:"sort_order,omitempty"`
}

// Get retrieves a topic by ID.
func (s *TopicService) Get(ctx context.Context, id string) (*models.Topic, error) {
	t, err := s.store.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound("topic", id)
	}
	return t, nil
}

// List retrieves topics with pagination.
func (s *TopicService) List(ctx context.Context, limit, offset int) ([]models.Topic, int, error) {
	return s.store.ListTopics(ctx, limit, offset)
}

// Create makes a new topic: empty by default, or forked from an existing
// node when the DTO carries a source node id.
func (s *TopicService) Create(ctx context.Context, in CreateTopicInput) (*models.Topic, error) {
	if in.SourceNodeID != "" {
		return s.fork(ctx, in)
	}

	t := &models.Topic{
		ID:            ids.NewTopicID(),
		Name:          in.Name,
		AssistantID:   in.AssistantID,
		AssistantMeta: in.AssistantMeta,
		Prompt:        in.Prompt,
		GroupID:       in.GroupID,
	}

	created, err := s.store.CreateTopic(ctx, t)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("topic_id", created.ID).Msg("topic created")
	return created, nil
}

// fork deep-copies the ancestor path root→source into a fresh topic. Copies
// get new IDs with parents resolved through an incrementally built remap
// table, sibling groups collapse to a single linear chain, and trace/stats
// provenance is cleared: a fork starts a new lineage, not a continuation of
// the original run.
func (s *TopicService) fork(ctx context.Context, in CreateTopicInput) (*models.Topic, error) {
	src, err := s.store.GetMessage(ctx, in.SourceNodeID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNotFound("message", in.SourceNodeID)
	}

	msgs, err := s.store.ListTopicMessages(ctx, src.TopicID)
	if err != nil {
		return nil, err
	}
	path, err := newMessageIndex(msgs).pathToRoot(src.ID)
	if err != nil {
		return nil, err
	}

	topic, err := s.store.CreateTopic(ctx, &models.Topic{
		ID:            ids.NewTopicID(),
		Name:          in.Name,
		AssistantID:   in.AssistantID,
		AssistantMeta: in.AssistantMeta,
		Prompt:        in.Prompt,
		GroupID:       in.GroupID,
	})
	if err != nil {
		return nil, err
	}

	idMap := make(map[string]string, len(path))
	copies := make([]*models.Message, 0, len(path))
	for _, orig := range path {
		c := &models.Message{
			ID:              ids.NewMessageID(),
			TopicID:         topic.ID,
			Role:            orig.Role,
			Data:            orig.Data,
			Status:          orig.Status,
			SiblingsGroupID: models.UngroupedSiblings,
			AssistantID:     orig.AssistantID,
			ModelID:         orig.ModelID,
			ModelMeta:       orig.ModelMeta,
		}
		if orig.ParentID != nil {
			// The path is walked root→leaf, so the parent's copy already
			// exists in the remap table.
			mapped := idMap[*orig.ParentID]
			c.ParentID = &mapped
		}
		idMap[orig.ID] = c.ID
		copies = append(copies, c)
	}

	if err := s.store.InsertMessages(ctx, copies); err != nil {
		// The batch insert is atomic; dropping the empty topic row restores
		// the pre-fork state.
		_ = s.store.DeleteTopic(ctx, topic.ID)
		return nil, err
	}

	last := copies[len(copies)-1]
	err = s.store.UpdateTopic(ctx, topic.ID, store.TopicUpdate{
		ActiveNodeID:  &last.ID,
		SetActiveNode: true,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("topic_id", topic.ID).
		Str("source_node_id", in.SourceNodeID).
		Int("copied", len(copies)).
		Msg("topic forked")

	return s.store.GetTopic(ctx, topic.ID)
}

// Update applies a partial update to a topic.
func (s *TopicService) Update(ctx context.Context, id string, in UpdateTopicInput) (*models.Topic, error) {
	t, err := s.store.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound("topic", id)
	}

	upd := store.TopicUpdate{
		Name:          in.Name,
		AssistantID:   in.AssistantID,
		AssistantMeta: in.AssistantMeta,
		Prompt:        in.Prompt,
		GroupID:       in.GroupID,
		Pinned:        in.Pinned,
		SortOrder:     in.SortOrder,
	}
	if err := s.store.UpdateTopic(ctx, id, upd); err != nil {
		return nil, err
	}

	return s.store.GetTopic(ctx, id)
}

// Delete removes a topic and every message it owns.
func (s *TopicService) Delete(ctx context.Context, id string) error {
	t, err := s.store.GetTopic(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound("topic", id)
	}

	if err := s.store.DeleteTopicMessages(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteTopic(ctx, id); err != nil {
		return err
	}

	s.log.Debug().Str("topic_id", id).Msg("topic deleted")
	return nil
}

// SetActiveNode points the topic's view at an existing message. The message
// must belong to the topic.
func (s *TopicService) SetActiveNode(ctx context.Context, topicID, nodeID string) (*models.Topic, error) {
	t, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound("topic", topicID)
	}

	m, err := s.store.GetMessage(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound("message", nodeID)
	}
	if m.TopicID != topicID {
		return nil, ErrInvalidOp("set active node", "message belongs to a different topic")
	}

	err = s.store.UpdateTopic(ctx, topicID, store.TopicUpdate{
		ActiveNodeID:  &nodeID,
		SetActiveNode: true,
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetTopic(ctx, topicID)
}
