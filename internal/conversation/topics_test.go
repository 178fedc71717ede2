package conversation

import (
	"context"
	"testing"

	"github.com/eldtechnologies/grove/internal/models"
)

func TestCreateAndGetTopic(t *testing.T) {
	ts, _, _ := newTestEnv(t)

	topic, err := ts.Create(context.Background(), CreateTopicInput{
		Name:   "research",
		Prompt: "be terse",
	})
	if err != nil {
		t.Fatal(err)
	}
	if topic.ID == "" {
		t.Fatal("topic should get an id")
	}
	if topic.ActiveNodeID != nil {
		t.Fatal("a fresh topic has no active node")
	}

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "research" || got.Prompt != "be terse" {
		t.Fatalf("unexpected topic %+v", got)
	}
}

func TestGetUnknownTopic(t *testing.T) {
	ts, _, _ := newTestEnv(t)

	_, err := ts.Get(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListTopicsPagination(t *testing.T) {
	ts, _, _ := newTestEnv(t)
	for _, name := range []string{"a", "b", "c"} {
		mustCreateTopic(t, ts, name)
	}

	topics, total, err := ts.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(topics) != 2 {
		t.Fatalf("expected page of 2, got %d", len(topics))
	}
}

func TestUpdateTopicPartial(t *testing.T) {
	ts, _, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "before")

	updated, err := ts.Update(context.Background(), topic.ID, UpdateTopicInput{
		Name:   strPtr("after"),
		Pinned: boolPtr(true),
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Name != "after" {
		t.Fatalf("expected renamed topic, got %q", updated.Name)
	}
	if !updated.Pinned {
		t.Fatal("pinned flag should be set")
	}
	if updated.Prompt != topic.Prompt {
		t.Fatal("untouched fields should survive a partial update")
	}
}

func TestUpdateUnknownTopic(t *testing.T) {
	ts, _, _ := newTestEnv(t)

	_, err := ts.Update(context.Background(), "missing", UpdateTopicInput{Name: strPtr("x")})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteTopicRemovesMessages(t *testing.T) {
	ts, ms, st := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "doomed")
	mustCreateChain(t, ms, topic.ID, 3)

	if err := ts.Delete(context.Background(), topic.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := ts.Get(context.Background(), topic.ID); !IsNotFound(err) {
		t.Fatal("topic should be gone")
	}
	count, err := st.CountMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no surviving messages, got %d", count)
	}
}

func TestSetActiveNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 3)

	updated, err := ts.SetActiveNode(context.Background(), topic.ID, chain[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ActiveNodeID == nil || *updated.ActiveNodeID != chain[0].ID {
		t.Fatal("active node should move to the requested message")
	}
}

func TestSetActiveNodeCrossTopic(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topicA := mustCreateTopic(t, ts, "a")
	topicB := mustCreateTopic(t, ts, "b")
	m := mustCreateMessage(t, ms, topicA.ID, CreateMessageInput{Role: models.RoleUser})

	_, err := ts.SetActiveNode(context.Background(), topicB.ID, m.ID)
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestSetActiveNodeUnknownMessage(t *testing.T) {
	ts, _, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	_, err := ts.SetActiveNode(context.Background(), topic.ID, "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestForkCopiesAncestorPath(t *testing.T) {
	ts, ms, st := newTestEnv(t)
	source := mustCreateTopic(t, ts, "source")

	a := mustCreateMessage(t, ms, source.ID, CreateMessageInput{
		Role:    models.RoleUser,
		Data:    textPayload("question"),
		TraceID: "trace-1",
	})
	b := mustCreateMessage(t, ms, source.ID, CreateMessageInput{
		ParentID:        &a.ID,
		Role:            models.RoleAssistant,
		Data:            textPayload("answer"),
		SiblingsGroupID: 4,
		ModelID:         "gpt-x",
	})
	// A deeper continuation and a sibling branch, neither on the forked path.
	c := mustCreateMessage(t, ms, source.ID, CreateMessageInput{ParentID: &b.ID, Role: models.RoleUser})
	mustCreateMessage(t, ms, source.ID, CreateMessageInput{ParentID: &a.ID, Role: models.RoleAssistant, SiblingsGroupID: 4, SetAsActive: boolPtr(false)})

	fork, err := ts.Create(context.Background(), CreateTopicInput{
		Name:         "forked",
		SourceNodeID: b.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := st.ListTopicMessages(context.Background(), fork.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("fork should copy only the ancestor path, got %d messages", len(msgs))
	}

	root, leaf := msgs[0], msgs[1]
	if root.ParentID != nil {
		t.Fatal("first copy should be a root")
	}
	if leaf.ParentID == nil || *leaf.ParentID != root.ID {
		t.Fatal("copies should form a linear chain through remapped parents")
	}
	if root.ID == a.ID || leaf.ID == b.ID {
		t.Fatal("copies must get fresh ids")
	}
	if string(root.Data) != string(a.Data) || string(leaf.Data) != string(b.Data) {
		t.Fatal("payloads should carry over verbatim")
	}
	if leaf.SiblingsGroupID != models.UngroupedSiblings {
		t.Fatal("fork collapses sibling groups into a linear chain")
	}
	if root.TraceID != "" {
		t.Fatal("trace provenance should not carry into a fork")
	}
	if leaf.ModelID != "gpt-x" {
		t.Fatal("model attribution should carry over")
	}

	if fork.ActiveNodeID == nil || *fork.ActiveNodeID != leaf.ID {
		t.Fatal("forked topic should open at the copied source node")
	}

	// Source topic untouched.
	srcMsgs, err := st.ListTopicMessages(context.Background(), source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(srcMsgs) != 4 {
		t.Fatalf("source topic should keep its 4 messages, got %d", len(srcMsgs))
	}
	if _, err := ms.GetByID(context.Background(), c.ID); err != nil {
		t.Fatal("descendants of the source node must survive in the source topic")
	}
}

func TestForkFromUnknownNode(t *testing.T) {
	ts, _, _ := newTestEnv(t)

	_, err := ts.Create(context.Background(), CreateTopicInput{
		Name:         "forked",
		SourceNodeID: "missing",
	})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
