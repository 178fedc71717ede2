package conversation

import (
	"context"
	"testing"

	"github.com/eldtechnologies/grove/internal/models"
)

func TestCreateMessageAdvancesActiveNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	m := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveNodeID == nil || *got.ActiveNodeID != m.ID {
		t.Fatal("creating a message should advance the topic's active node")
	}
	if m.Status != models.StatusPending {
		t.Fatalf("expected default status pending, got %q", m.Status)
	}
}

func TestCreateMessageOptOutOfActive(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	first := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})

	mustCreateMessage(t, ms, topic.ID, CreateMessageInput{
		ParentID:    &first.ID,
		Role:        models.RoleAssistant,
		SetAsActive: boolPtr(false),
	})

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveNodeID == nil || *got.ActiveNodeID != first.ID {
		t.Fatal("set_as_active=false should leave the active node untouched")
	}
}

func TestCreateMessageUnknownTopic(t *testing.T) {
	_, ms, _ := newTestEnv(t)

	_, err := ms.Create(context.Background(), "missing", CreateMessageInput{Role: models.RoleUser})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateMessageUnknownParent(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	_, err := ms.Create(context.Background(), topic.ID, CreateMessageInput{
		ParentID: strPtr("missing"),
		Role:     models.RoleUser,
	})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateMessageParentFromOtherTopic(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topicA := mustCreateTopic(t, ts, "a")
	topicB := mustCreateTopic(t, ts, "b")
	root := mustCreateMessage(t, ms, topicA.ID, CreateMessageInput{Role: models.RoleUser})

	_, err := ms.Create(context.Background(), topicB.ID, CreateMessageInput{
		ParentID: &root.ID,
		Role:     models.RoleUser,
	})
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestUpdateMessagePartial(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	m := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{
		Role: models.RoleAssistant,
		Data: textPayload("draft"),
	})

	updated, err := ms.Update(context.Background(), m.ID, UpdateMessageInput{
		Status: strPtr(models.StatusSuccess),
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Status != models.StatusSuccess {
		t.Fatalf("expected status success, got %q", updated.Status)
	}
	if updated.Role != models.RoleAssistant {
		t.Fatal("untouched fields should survive a partial update")
	}
	if string(updated.Data) != string(m.Data) {
		t.Fatal("payload should survive a status-only update")
	}
}

func TestUpdateMessageReparent(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 3)

	// Move the leaf directly under the root.
	updated, err := ms.Update(context.Background(), chain[2].ID, UpdateMessageInput{
		ParentID: &chain[0].ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ParentID == nil || *updated.ParentID != chain[0].ID {
		t.Fatal("reparent should move the message under the new parent")
	}
}

func TestUpdateMessageRejectsSelfParent(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	m := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})

	_, err := ms.Update(context.Background(), m.ID, UpdateMessageInput{ParentID: &m.ID})
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestUpdateMessageRejectsCycle(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 3)

	// Moving the root under its grandchild would orphan the subtree into a
	// cycle.
	_, err := ms.Update(context.Background(), chain[0].ID, UpdateMessageInput{
		ParentID: &chain[2].ID,
	})
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}

	// Nothing moved.
	got, err := ms.GetByID(context.Background(), chain[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID != nil {
		t.Fatal("rejected reparent must leave the message untouched")
	}
}

func TestUpdateMessageRejectsCrossTopicParent(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topicA := mustCreateTopic(t, ts, "a")
	topicB := mustCreateTopic(t, ts, "b")
	mA := mustCreateMessage(t, ms, topicA.ID, CreateMessageInput{Role: models.RoleUser})
	mB := mustCreateMessage(t, ms, topicB.ID, CreateMessageInput{Role: models.RoleUser})

	_, err := ms.Update(context.Background(), mA.ID, UpdateMessageInput{ParentID: &mB.ID})
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestDeleteCascadeRemovesSubtree(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	a := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})
	b := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &a.ID, Role: models.RoleAssistant})
	c := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &b.ID, Role: models.RoleUser})
	d := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &b.ID, Role: models.RoleUser})

	result, err := ms.Delete(context.Background(), b.ID, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.DeletedIDs) != 3 {
		t.Fatalf("expected 3 deleted ids, got %d", len(result.DeletedIDs))
	}
	if len(result.ReparentedIDs) != 0 {
		t.Fatal("cascade delete should not reparent anything")
	}
	for _, id := range []string{b.ID, c.ID, d.ID} {
		if _, err := ms.GetByID(context.Background(), id); !IsNotFound(err) {
			t.Fatalf("message %s should be gone", id)
		}
	}
	if _, err := ms.GetByID(context.Background(), a.ID); err != nil {
		t.Fatal("the deleted node's parent must survive")
	}
}

func TestDeleteReparentsChildren(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	a := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})
	b := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &a.ID, Role: models.RoleAssistant})
	c := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &b.ID, Role: models.RoleUser})
	d := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &b.ID, Role: models.RoleUser})

	result, err := ms.Delete(context.Background(), b.ID, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.DeletedIDs) != 1 || result.DeletedIDs[0] != b.ID {
		t.Fatal("only the target should be deleted")
	}
	if len(result.ReparentedIDs) != 2 {
		t.Fatalf("expected 2 reparented children, got %d", len(result.ReparentedIDs))
	}
	for _, id := range []string{c.ID, d.ID} {
		got, err := ms.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if got.ParentID == nil || *got.ParentID != a.ID {
			t.Fatalf("child %s should be re-attached to the grandparent", id)
		}
	}
}

func TestDeleteRootRequiresCascade(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	root := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})

	_, err := ms.Delete(context.Background(), root.ID, false)
	if !IsInvalidOperation(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}

	if _, err := ms.Delete(context.Background(), root.ID, true); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteRepointsActiveNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 3)

	// The leaf is active; deleting it must pull the view back to its parent.
	if _, err := ms.Delete(context.Background(), chain[2].ID, false); err != nil {
		t.Fatal(err)
	}

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveNodeID == nil || *got.ActiveNodeID != chain[1].ID {
		t.Fatal("active node should repoint to the deleted node's parent")
	}
}

func TestDeleteCascadeRepointsActiveNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 4)

	// Active node is the leaf, inside the deleted subtree.
	if _, err := ms.Delete(context.Background(), chain[1].ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveNodeID == nil || *got.ActiveNodeID != chain[0].ID {
		t.Fatal("active node should repoint to the deleted subtree's parent")
	}
}

func TestDeleteLeavesUnrelatedActiveNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")

	a := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{Role: models.RoleUser})
	b := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &a.ID, Role: models.RoleAssistant})
	side := mustCreateMessage(t, ms, topic.ID, CreateMessageInput{ParentID: &a.ID, Role: models.RoleAssistant, SetAsActive: boolPtr(false)})

	if _, err := ms.Delete(context.Background(), side.ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := ts.Get(context.Background(), topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveNodeID == nil || *got.ActiveNodeID != b.ID {
		t.Fatal("deleting an off-path branch must not move the active node")
	}
}

func TestGetPathToNode(t *testing.T) {
	ts, ms, _ := newTestEnv(t)
	topic := mustCreateTopic(t, ts, "chat")
	chain := mustCreateChain(t, ms, topic.ID, 3)

	path, err := ms.GetPathToNode(context.Background(), chain[2].ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(path) != 3 {
		t.Fatalf("expected path of 3, got %d", len(path))
	}
	for i, m := range chain {
		if path[i].ID != m.ID {
			t.Fatalf("position %d: expected %s, got %s", i, m.ID, path[i].ID)
		}
	}
}

func TestGetPathToUnknownNode(t *testing.T) {
	_, ms, _ := newTestEnv(t)

	_, err := ms.GetPathToNode(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
