package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/grove/internal/conversation"
	"github.com/eldtechnologies/grove/internal/metrics"
	"github.com/eldtechnologies/grove/internal/models"
)

// CreateMessage handles POST /topics/{id}/messages.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var in conversation.CreateMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Role == "" {
		h.Error(w, http.StatusBadRequest, "role is required")
		return
	}

	msg, err := h.messages.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	metrics.MessagesCreated.WithLabelValues(msg.Role).Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// GetMessage handles GET /messages/{id}.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, msg)
}

// UpdateMessage handles PATCH /messages/{id}. Absent fields are left
// untouched; moving parent_id runs the cycle check before any write.
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var in conversation.UpdateMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.messages.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, msg)
}

// DeleteMessage handles DELETE /messages/{id}. With ?cascade=true the whole
// subtree goes; otherwise children are re-attached to the deleted node's
// parent.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	cascade := r.URL.Query().Get("cascade") == "true"

	result, err := h.messages.Delete(r.Context(), chi.URLParam(r, "id"), cascade)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	mode := "reparent"
	if cascade {
		mode = "cascade"
	}
	metrics.MessagesDeleted.WithLabelValues(mode).Add(float64(len(result.DeletedIDs)))

	h.JSON(w, http.StatusOK, result)
}

// GetPath handles GET /messages/{id}/path: the ancestor chain from the tree
// root down to the message.
func (h *Handler) GetPath(w http.ResponseWriter, r *http.Request) {
	path, err := h.messages.GetPathToNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string][]models.Message{"path": path})
}

// GetTree handles GET /topics/{id}/tree. Query params: root_id, node_id and
// depth; depth defaults to unbounded.
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	depth := -1
	if raw := q.Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "depth must be an integer")
			return
		}
		depth = parsed
	}

	opts := conversation.TreeOptions{
		RootID: q.Get("root_id"),
		NodeID: q.Get("node_id"),
		Depth:  depth,
	}

	result, err := h.messages.GetTree(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	metrics.TreeQueries.Inc()
	h.JSON(w, http.StatusOK, result)
}

// GetBranch handles GET /topics/{id}/branch. Query params: node_id, before,
// limit and include_siblings. Pagination walks backwards: before names the
// node just past the end of the returned window.
func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	limit = clampLimit(limit, conversation.DefaultBranchLimit)

	opts := conversation.BranchOptions{
		NodeID:          q.Get("node_id"),
		BeforeNodeID:    q.Get("before"),
		Limit:           limit,
		IncludeSiblings: q.Get("include_siblings") == "true",
	}

	result, err := h.messages.GetBranchMessages(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	metrics.BranchQueries.Inc()
	h.JSON(w, http.StatusOK, result)
}
