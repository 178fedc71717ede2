package conversation

import (
	"github.com/eldtechnologies/grove/internal/models"
)

// rootBucket is the children-map key for messages with no parent. It is a
// documented sentinel: ULIDs are 26 chars so "root" can never collide with a
// real message id.
const rootBucket = "root"

// messageIndex is an in-memory view of one topic's full message set, built
// from a single bulk read. Path and sibling computations walk this index
// instead of issuing one point query per hop, keeping them O(path length)
// and making missing-link integrity errors detectable.
type messageIndex struct {
	byID     map[string]*models.Message
	children map[string][]*models.Message
}

// newMessageIndex builds the id lookup and parent→children adjacency for a
// topic's messages. Slice order follows the input, which the stores return
// sorted by id (creation order for ULIDs).
func newMessageIndex(msgs []models.Message) *messageIndex {
	ix := &messageIndex{
		byID:     make(map[string]*models.Message, len(msgs)),
		children: make(map[string][]*models.Message),
	}
	for i := range msgs {
		m := &msgs[i]
		ix.byID[m.ID] = m
		ix.children[bucketKey(m.ParentID)] = append(ix.children[bucketKey(m.ParentID)], m)
	}
	return ix
}

func bucketKey(parentID *string) string {
	if parentID == nil {
		return rootBucket
	}
	return *parentID
}

// roots returns the topic's root messages in creation order.
func (ix *messageIndex) roots() []*models.Message {
	return ix.children[rootBucket]
}

// childrenOf returns the direct children of a message in creation order.
func (ix *messageIndex) childrenOf(id string) []*models.Message {
	return ix.children[id]
}

// pathToRoot reconstructs the ancestor chain of the target message and
// returns it in root→leaf order. A parent link pointing at a message missing
// from the index is an integrity violation; a parent cycle in stored data is
// reported the same way rather than looping forever.
func (ix *messageIndex) pathToRoot(id string) ([]*models.Message, error) {
	var reversed []*models.Message
	seen := make(map[string]bool)

	cur, ok := ix.byID[id]
	if !ok {
		return nil, ErrNotFound("message", id)
	}

	for cur != nil {
		if seen[cur.ID] {
			return nil, ErrInconsistent("message", cur.ID, "parent chain contains a cycle")
		}
		seen[cur.ID] = true
		reversed = append(reversed, cur)

		if cur.ParentID == nil {
			break
		}
		next, ok := ix.byID[*cur.ParentID]
		if !ok {
			return nil, ErrInconsistent("message", cur.ID, "parent link points to a missing message")
		}
		cur = next
	}

	// Reverse into root→leaf order.
	path := make([]*models.Message, len(reversed))
	for i, m := range reversed {
		path[len(reversed)-1-i] = m
	}
	return path, nil
}

// ancestorIDs returns the set of ids on the path from the given message up
// to its root, inclusive. An empty set is returned for ids not in the index
// or broken chains; the active path is advisory for tree rendering, so
// integrity errors surface through pathToRoot instead.
func (ix *messageIndex) ancestorIDs(id string) map[string]bool {
	set := make(map[string]bool)
	cur, ok := ix.byID[id]
	for ok && cur != nil && !set[cur.ID] {
		set[cur.ID] = true
		if cur.ParentID == nil {
			break
		}
		cur, ok = ix.byID[*cur.ParentID]
	}
	return set
}

// siblingSet returns the other members of m's sibling group: messages with
// the same parent and the same nonzero siblings group id, excluding m
// itself. Ungrouped messages have no sibling set.
func (ix *messageIndex) siblingSet(m *models.Message) []*models.Message {
	if m.SiblingsGroupID == models.UngroupedSiblings {
		return nil
	}

	var siblings []*models.Message
	for _, c := range ix.children[bucketKey(m.ParentID)] {
		if c.ID == m.ID || c.SiblingsGroupID != m.SiblingsGroupID {
			continue
		}
		siblings = append(siblings, c)
	}
	return siblings
}

// groupMembers returns every same-parent message sharing m's sibling group,
// m included, in creation order.
func (ix *messageIndex) groupMembers(m *models.Message) []*models.Message {
	if m.SiblingsGroupID == models.UngroupedSiblings {
		return []*models.Message{m}
	}
	var members []*models.Message
	for _, c := range ix.children[bucketKey(m.ParentID)] {
		if c.SiblingsGroupID == m.SiblingsGroupID {
			members = append(members, c)
		}
	}
	return members
}

// groupSize returns the number of same-parent messages sharing m's sibling
// group, m included.
func (ix *messageIndex) groupSize(m *models.Message) int {
	return len(ix.groupMembers(m))
}
