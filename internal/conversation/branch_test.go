package conversation

import (
	"context"
	"testing"

	"github.com/eldtechnologies/grove/internal/ids"
	"github.com/eldtechnologies/grove/internal/models"
	"github.com/eldtechnologies/grove/internal/store"
)

func TestBranchFullChain(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 5)

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(result.Messages))
	}
	for i, m := range chain {
		if result.Messages[i].Message.ID != m.ID {
			t.Fatalf("position %d: expected %s, got %s", i, m.ID, result.Messages[i].Message.ID)
		}
	}
	if result.ActiveNodeID == nil || *result.ActiveNodeID != chain[4].ID {
		t.Fatal("branch should resolve against the topic's active node")
	}
}

func TestBranchLimitReturnsTail(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 10)

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result.Messages))
	}
	for i, want := range chain[7:] {
		if result.Messages[i].Message.ID != want.ID {
			t.Fatalf("position %d: expected %s, got %s", i, want.ID, result.Messages[i].Message.ID)
		}
	}
}

func TestBranchBeforePagesBackwards(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 10)

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{
		BeforeNodeID: chain[4].ID,
		Limit:        2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].Message.ID != chain[2].ID || result.Messages[1].Message.ID != chain[3].ID {
		t.Fatal("window should end just before the cursor node")
	}
}

func TestBranchBeforeClampsAtRoot(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 4)

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{
		BeforeNodeID: chain[1].ID,
		Limit:        5,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 1 || result.Messages[0].Message.ID != chain[0].ID {
		t.Fatal("window before the second node should contain only the root")
	}
}

func TestBranchBeforeUnknownNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	mustCreateChain(t, ms, topic.ID, 3)

	_, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{BeforeNodeID: "missing"})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBranchNodeIDOverridesActive(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 5)

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{NodeID: chain[2].ID})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result.Messages))
	}
	if result.Messages[2].Message.ID != chain[2].ID {
		t.Fatal("branch should end at the override node")
	}
}

func TestBranchIncludeSiblings(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	p := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})
	s1 := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &p.ID, Role: models.RoleAssistant, SiblingsGroupID: 3})
	s2 := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &p.ID, Role: models.RoleAssistant, SiblingsGroupID: 3})
	s3 := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &p.ID, Role: models.RoleAssistant, SiblingsGroupID: 3})
	leaf := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &s2.ID, Role: models.RoleUser})

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{IncludeSiblings: true})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Messages) != 3 {
		t.Fatalf("expected p→s2→leaf, got %d messages", len(result.Messages))
	}
	entry := result.Messages[1]
	if entry.Message.ID != s2.ID {
		t.Fatalf("expected branch through %s, got %s", s2.ID, entry.Message.ID)
	}
	if len(entry.Siblings) != 2 {
		t.Fatalf("expected 2 siblings, got %d", len(entry.Siblings))
	}
	if entry.Siblings[0].ID != s1.ID || entry.Siblings[1].ID != s3.ID {
		t.Fatal("siblings should be the other group members in creation order")
	}
	if len(result.Messages[2].Siblings) != 0 {
		t.Fatalf("ungrouped message %s should have no siblings", leaf.ID)
	}
}

func TestBranchEmptyTopic(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "empty")

	result, err := ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Messages) != 0 {
		t.Fatal("empty topic should yield an empty branch")
	}
}

func TestBranchMissingActiveNodeIsInconsistent(t *testing.T) {
	ts, ms, st := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	// Insert behind the service's back: the topic now has messages but no
	// recorded active node.
	_, err := st.InsertMessage(context.Background(), &models.Message{
		ID:      ids.NewMessageID(),
		TopicID: topic.ID,
		Role:    models.RoleUser,
		Status:  models.StatusSuccess,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{})
	if !IsDataInconsistent(err) {
		t.Fatalf("expected data inconsistency, got %v", err)
	}
}

func TestBranchDanglingActiveNodeIsInconsistent(t *testing.T) {
	ts, ms, st := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	mustCreateChain(t, ms, topic.ID, 2)

	err := st.UpdateTopic(context.Background(), topic.ID, store.TopicUpdate{
		ActiveNodeID:  strPtr(ids.NewMessageID()),
		SetActiveNode: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ms.GetBranchMessages(context.Background(), topic.ID, BranchOptions{})
	if !IsDataInconsistent(err) {
		t.Fatalf("expected data inconsistency, got %v", err)
	}
}
