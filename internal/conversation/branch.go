package conversation

import (
	"context"

	"github.com/eldtechnologies/grove/internal/models"
)

// DefaultBranchLimit is the branch-read page size when none is given.
const DefaultBranchLimit = 20

// BranchOptions controls linear branch reconstruction. NodeID overrides the
// topic's stored active node as the resolution target. BeforeNodeID pages
// backwards: the returned window ends just before that node's position on
// the path. Limit defaults to DefaultBranchLimit when not positive.
type BranchOptions struct {
	NodeID          string
	BeforeNodeID    string
	Limit           int
	IncludeSiblings bool
}

// BranchEntry is one message on the displayed branch, optionally annotated
// with its alternative siblings.
type BranchEntry struct {
	Message  models.Message   `json:"message"`
	Siblings []models.Message `json:"siblings,omitempty"`
}

// BranchResult is an ordered window of the branch in root→leaf order.
type BranchResult struct {
	Messages     []BranchEntry `json:"messages"`
	ActiveNodeID *string       `json:"active_node_id,omitempty"`
}

// GetBranchMessages reconstructs the linear path from the tree root to the
// resolution node and returns a paginated window of it.
func (s *MessageService) GetBranchMessages(ctx context.Context, topicID string, opts BranchOptions) (*BranchResult, error) {
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

	result := &BranchResult{Messages: []BranchEntry{}}
	if len(msgs) == 0 {
		return result, nil
	}

	ix := newMessageIndex(msgs)

	targetID := opts.NodeID
	if targetID == "" {
		if topic.ActiveNodeID == nil {
			return nil, ErrInconsistent("topic", topicID, "topic has messages but no active node recorded")
		}
		targetID = *topic.ActiveNodeID
		if _, ok := ix.byID[targetID]; !ok {
			return nil, ErrInconsistent("topic", topicID, "active node references a missing message")
		}
	}
	result.ActiveNodeID = &targetID

	path, err := ix.pathToRoot(targetID)
	if err != nil {
		return nil, err
	}

	window, err := paginatePath(path, opts.BeforeNodeID, opts.Limit)
	if err != nil {
		return nil, err
	}

	for _, m := range window {
		entry := BranchEntry{Message: *m}
		if opts.IncludeSiblings && m.SiblingsGroupID != models.UngroupedSiblings {
			for _, sib := range ix.siblingSet(m) {
				entry.Siblings = append(entry.Siblings, *sib)
			}
		}
		result.Messages = append(result.Messages, entry)
	}

	return result, nil
}

// paginatePath cuts a window out of the root→leaf path. With beforeID the
// window ends just before that node; otherwise it is the path's tail. The
// window start clamps at the path start.
func paginatePath(path []*models.Message, beforeID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultBranchLimit
	}

	end := len(path)
	if beforeID != "" {
		pos := -1
		for i, m := range path {
			if m.ID == beforeID {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, ErrNotFound("message", beforeID)
		}
		end = pos
	}

	start := end - limit
	if start < 0 {
		start = 0
	}
	return path[start:end], nil
}
