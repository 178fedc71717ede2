package conversation

import (
	"context"
	"time"

	"github.com/eldtechnologies/grove/internal/models"
)

// TreeOptions controls the tree visualization query. RootID selects the
// subtree to render (default: the topic's first root). NodeID overrides the
// topic's stored active node. Depth bounds expansion of branches off the
// active path; a negative depth means unbounded.
type TreeOptions struct {
	RootID string
	NodeID string
	Depth  int
}

// TreeNode is one rendered node of the visualization.
type TreeNode struct {
	ID              string    `json:"id"`
	ParentID        *string   `json:"parent_id,omitempty"`
	Role            string    `json:"role"`
	Status          string    `json:"status"`
	Preview         string    `json:"preview"`
	SiblingsGroupID int64     `json:"siblings_group_id,omitempty"`
	OnActivePath    bool      `json:"on_active_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SiblingsGroup is a set of alternative responses rendered together. A group
// only forms when at least two same-parent messages share a nonzero
// siblings group id; single survivors render as plain nodes.
type SiblingsGroup struct {
	ParentID *string    `json:"parent_id,omitempty"`
	GroupID  int64      `json:"group_id"`
	Nodes    []TreeNode `json:"nodes"`
}

// TreeResult is the flattened tree visualization.
type TreeResult struct {
	Nodes          []TreeNode      `json:"nodes"`
	SiblingsGroups []SiblingsGroup `json:"siblings_groups"`
	ActiveNodeID   *string         `json:"active_node_id,omitempty"`
}

// GetTree builds a depth-bounded visualization of a topic's conversation
// tree. Nodes on the active path always expand, and expansion along that
// path resets the depth counter, so the branch the user is viewing is shown
// in full while everything else stays a shallow preview.
func (s *MessageService) GetTree(ctx context.Context, topicID string, opts TreeOptions) (*TreeResult, error) {
	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrNotFound("topic", topicID)
	}

	msgs, err := s.store.ListTopicMessages(ctx, topicID)
	if err != nil {
		return nil, err
	}

	result := &TreeResult{
		Nodes:          []TreeNode{},
		SiblingsGroups: []SiblingsGroup{},
	}
	if len(msgs) == 0 {
		return result, nil
	}

	ix := newMessageIndex(msgs)

	activeID := opts.NodeID
	if activeID == "" && topic.ActiveNodeID != nil {
		activeID = *topic.ActiveNodeID
	}
	var activePath map[string]bool
	if activeID != "" {
		result.ActiveNodeID = &activeID
		activePath = ix.ancestorIDs(activeID)
	}

	var start *models.Message
	if opts.RootID != "" {
		start = ix.byID[opts.RootID]
		if start == nil {
			return nil, ErrNotFound("message", opts.RootID)
		}
	} else {
		roots := ix.roots()
		if len(roots) == 0 {
			return result, nil
		}
		start = roots[0]
	}

	w := &treeWalker{
		ix:         ix,
		opts:       opts,
		activePath: activePath,
		result:     result,
		seenGroups: make(map[groupKey]bool),
	}
	w.walk(start, 0)

	return result, nil
}

type groupKey struct {
	parent  string
	groupID int64
}

type treeWalker struct {
	ix         *messageIndex
	opts       TreeOptions
	activePath map[string]bool
	result     *TreeResult
	seenGroups map[groupKey]bool
}

// walk renders the node and descends into its children when the expansion
// rule allows: on the active path (resetting the depth counter), under an
// unbounded depth, or while still within the depth budget.
func (w *treeWalker) walk(m *models.Message, depth int) {
	w.render(m)

	onPath := w.activePath[m.ID]
	if !onPath && w.opts.Depth >= 0 && depth >= w.opts.Depth {
		return
	}

	childDepth := depth + 1
	if onPath {
		childDepth = 0
	}
	for _, child := range w.ix.childrenOf(m.ID) {
		w.walk(child, childDepth)
	}
}

// render places the node either into its sibling group (collected once per
// (parent, group id) key) or into the plain node list.
func (w *treeWalker) render(m *models.Message) {
	if m.SiblingsGroupID != models.UngroupedSiblings && w.ix.groupSize(m) >= 2 {
		key := groupKey{parent: bucketKey(m.ParentID), groupID: m.SiblingsGroupID}
		if w.seenGroups[key] {
			return
		}
		w.seenGroups[key] = true

		group := SiblingsGroup{ParentID: m.ParentID, GroupID: m.SiblingsGroupID}
		for _, c := range w.ix.groupMembers(m) {
			group.Nodes = append(group.Nodes, w.toNode(c))
		}
		w.result.SiblingsGroups = append(w.result.SiblingsGroups, group)
		return
	}

	w.result.Nodes = append(w.result.Nodes, w.toNode(m))
}

func (w *treeWalker) toNode(m *models.Message) TreeNode {
	return TreeNode{
		ID:              m.ID,
		ParentID:        m.ParentID,
		Role:            m.Role,
		Status:          m.Status,
		Preview:         extractPreview(m.Data),
		SiblingsGroupID: m.SiblingsGroupID,
		OnActivePath:    w.activePath[m.ID],
		CreatedAt:       m.CreatedAt,
	}
}
