package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eldtechnologies/grove/internal/models"
)

// MemoryStore is an in-memory DataStore used by tests and ephemeral
// development runs. It mirrors the SQL stores' semantics: lookups return
// (nil, nil) when absent, list results are ordered by id, and multi-row
// mutations are applied under one lock acquisition.
type MemoryStore struct {
	mu       sync.RWMutex
	topics   map[string]*models.Topic
	messages map[string]*models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		topics:   make(map[string]*models.Topic),
		messages: make(map[string]*models.Message),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func copyTopic(t *models.Topic) *models.Topic {
	c := *t
	if t.ActiveNodeID != nil {
		v := *t.ActiveNodeID
		c.ActiveNodeID = &v
	}
	return &c
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	if m.ParentID != nil {
		v := *m.ParentID
		c.ParentID = &v
	}
	return &c
}

// CreateTopic inserts a new topic.
func (s *MemoryStore) CreateTopic(ctx context.Context, t *models.Topic) (*models.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := copyTopic(t)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	s.topics[c.ID] = c
	return copyTopic(c), nil
}

// GetTopic retrieves a topic by ID.
func (s *MemoryStore) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[id]
	if !ok {
		return nil, nil
	}
	return copyTopic(t), nil
}

// ListTopics retrieves topics with pagination, ordered by id.
func (s *MemoryStore) ListTopics(ctx context.Context, limit, offset int) ([]models.Topic, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedTopics()
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// ListRecentTopics retrieves the most recently updated topics.
func (s *MemoryStore) ListRecentTopics(ctx context.Context, limit int) ([]models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedTopics()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) sortedTopics() []models.Topic {
	all := make([]models.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		all = append(all, *copyTopic(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// UpdateTopic applies a partial update to a topic.
func (s *MemoryStore) UpdateTopic(ctx context.Context, id string, upd TopicUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[id]
	if !ok {
		return nil
	}

	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.AssistantID != nil {
		t.AssistantID = *upd.AssistantID
	}
	if upd.AssistantMeta != nil {
		t.AssistantMeta = upd.AssistantMeta
	}
	if upd.Prompt != nil {
		t.Prompt = *upd.Prompt
	}
	if upd.GroupID != nil {
		t.GroupID = *upd.GroupID
	}
	if upd.Pinned != nil {
		t.Pinned = *upd.Pinned
	}
	if upd.SortOrder != nil {
		t.SortOrder = *upd.SortOrder
	}
	if upd.SetActiveNode {
		if upd.ActiveNodeID != nil {
			v := *upd.ActiveNodeID
			t.ActiveNodeID = &v
		} else {
			t.ActiveNodeID = nil
		}
	}
	t.UpdatedAt = time.Now()
	return nil
}

// DeleteTopic removes a topic.
func (s *MemoryStore) DeleteTopic(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.topics, id)
	return nil
}

// CountTopics returns the total number of topics.
func (s *MemoryStore) CountTopics(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.topics)), nil
}

// InsertMessage inserts a single message.
func (s *MemoryStore) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(m)
	return copyMessage(s.messages[m.ID]), nil
}

// InsertMessages inserts a batch of messages atomically.
func (s *MemoryStore) InsertMessages(ctx context.Context, msgs []*models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		s.insertLocked(m)
	}
	return nil
}

func (s *MemoryStore) insertLocked(m *models.Message) {
	now := time.Now()
	c := copyMessage(m)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	s.messages[c.ID] = c
}

// GetMessage retrieves a message by ID.
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

// ListTopicMessages retrieves all messages belonging to a topic, ordered by id.
func (s *MemoryStore) ListTopicMessages(ctx context.Context, topicID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []models.Message
	for _, m := range s.messages {
		if m.TopicID == topicID {
			msgs = append(msgs, *copyMessage(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// ListChildren retrieves the direct children of a message, ordered by id.
func (s *MemoryStore) ListChildren(ctx context.Context, parentID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []models.Message
	for _, m := range s.messages {
		if m.ParentID != nil && *m.ParentID == parentID {
			msgs = append(msgs, *copyMessage(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// UpdateMessage applies a partial update to a message.
func (s *MemoryStore) UpdateMessage(ctx context.Context, id string, upd MessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil
	}

	if upd.ParentID != nil {
		v := *upd.ParentID
		m.ParentID = &v
	}
	if upd.Role != nil {
		m.Role = *upd.Role
	}
	if upd.Data != nil {
		m.Data = upd.Data
	}
	if upd.Status != nil {
		m.Status = *upd.Status
	}
	if upd.SiblingsGroupID != nil {
		m.SiblingsGroupID = *upd.SiblingsGroupID
	}
	if upd.AssistantID != nil {
		m.AssistantID = *upd.AssistantID
	}
	if upd.ModelID != nil {
		m.ModelID = *upd.ModelID
	}
	if upd.ModelMeta != nil {
		m.ModelMeta = upd.ModelMeta
	}
	if upd.TraceID != nil {
		m.TraceID = *upd.TraceID
	}
	if upd.Stats != nil {
		m.Stats = upd.Stats
	}
	m.UpdatedAt = time.Now()
	return nil
}

// ReparentMessages moves a set of messages under a new parent.
func (s *MemoryStore) ReparentMessages(ctx context.Context, ids []string, parentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if parentID != nil {
			v := *parentID
			m.ParentID = &v
		} else {
			m.ParentID = nil
		}
		m.UpdatedAt = now
	}
	return nil
}

// DeleteMessages removes a set of messages.
func (s *MemoryStore) DeleteMessages(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.messages, id)
	}
	return nil
}

// DeleteTopicMessages removes all messages belonging to a topic.
func (s *MemoryStore) DeleteTopicMessages(ctx context.Context, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.messages {
		if m.TopicID == topicID {
			delete(s.messages, id)
		}
	}
	return nil
}

// DescendantIDs returns the IDs of every descendant of a message, excluding
// the message itself.
func (s *MemoryStore) DescendantIDs(ctx context.Context, messageID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make(map[string][]string)
	for id, m := range s.messages {
		if m.ParentID != nil {
			children[*m.ParentID] = append(children[*m.ParentID], id)
		}
	}

	var ids []string
	queue := append([]string(nil), children[messageID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ids = append(ids, id)
		queue = append(queue, children[id]...)
	}
	sort.Strings(ids)
	return ids, nil
}

// CountMessages returns the total number of messages across all topics.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.messages)), nil
}
