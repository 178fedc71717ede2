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

// ListTopicsResponse represents a paginated topic listing.
type ListTopicsResponse struct {
	Topics []models.Topic `json:"topics"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListTopics handles GET /topics.
func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit = clampLimit(limit, 50)
	if offset < 0 {
		offset = 0
	}

	topics, total, err := h.topics.List(r.Context(), limit, offset)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ListTopicsResponse{
		Topics: topics,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// CreateTopic handles POST /topics. A body with source_node_id forks the
// source node's ancestor chain into the new topic.
func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var in conversation.CreateTopicInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in.Name = sanitizeName(in.Name)
	if in.Name == "" {
		in.Name = "New Topic"
	}

	topic, err := h.topics.Create(r.Context(), in)
	if err != nil {
		h.DomainError(w, err)
		return
	}

	if in.SourceNodeID != "" {
		metrics.TopicsForked.Inc()
	} else {
		metrics.TopicsCreated.Inc()
	}

	h.JSON(w, http.StatusCreated, topic)
}

// GetTopic handles GET /topics/{id}.
func (h *Handler) GetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.topics.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, topic)
}

// UpdateTopic handles PATCH /topics/{id}. Absent fields are left untouched.
func (h *Handler) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	var in conversation.UpdateTopicInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if in.Name != nil {
		clean := sanitizeName(*in.Name)
		if clean == "" {
			h.Error(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		in.Name = &clean
	}

	topic, err := h.topics.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, topic)
}

// DeleteTopic handles DELETE /topics/{id}. Every message the topic owns goes
// with it.
func (h *Handler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetActiveNodeRequest is the body for PUT /topics/{id}/active-node.
type SetActiveNodeRequest struct {
	NodeID string `json:"node_id"`
}

// SetActiveNode handles PUT /topics/{id}/active-node.
func (h *Handler) SetActiveNode(w http.ResponseWriter, r *http.Request) {
	var req SetActiveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NodeID == "" {
		h.Error(w, http.StatusBadRequest, "node_id is required")
		return
	}

	topic, err := h.topics.SetActiveNode(r.Context(), chi.URLParam(r, "id"), req.NodeID)
	if err != nil {
		h.DomainError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, topic)
}
