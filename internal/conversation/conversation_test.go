package conversation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/grove/internal/models"
	"github.com/eldtechnologies/grove/internal/store"
)

func newTestEnv(t *testing.T) (*TopicService, *MessageService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := zerolog.Nop()
	return NewTopicService(st, logger), NewMessageService(st, logger), st
}

func mustCreateTopic(t *testing.T, ts *TopicService, name string) *models.Topic {
	t.Helper()
	topic, err := ts.Create(context.Background(), CreateTopicInput{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return topic
}

func mustCreateMessage(t *testing.T, ms *MessageService, topicID string, in CreateMessageInput) *models.Message {
	t.Helper()
	m, err := ms.Create(context.Background(), topicID, in)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// mustCreateChain builds a linear user/assistant chain of n messages under a
// topic and returns them in root→leaf order. The last one ends up active.
func mustCreateChain(t *testing.T, ms *MessageService, topicID string, n int) []*models.Message {
	t.Helper()
	chain := make([]*models.Message, 0, n)
	var parent *string
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		m := mustCreateMessage(t, ms, topicID, CreateMessageInput{
			ParentID: parent,
			Role:     role,
			Data:     textPayload("message"),
		})
		chain = append(chain, m)
		parent = &m.ID
	}
	return chain
}

func textPayload(text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{
		"blocks": []map[string]string{{"type": "text", "text": text}},
	})
	return raw
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
