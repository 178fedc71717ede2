package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/grove/internal/conversation"
	"github.com/eldtechnologies/grove/internal/store"
)

// maxPageSize caps list pagination regardless of what the client asks for.
const maxPageSize = 200

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db       store.DataStore
	redis    *redis.Client
	topics   *conversation.TopicService
	messages *conversation.MessageService
}

// NewHandler creates a new Handler over the given store. The redis client is
// optional and only used by the health check.
func NewHandler(db store.DataStore, rdb *redis.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		db:       db,
		redis:    rdb,
		topics:   conversation.NewTopicService(db, logger),
		messages: conversation.NewMessageService(db, logger),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// errorBody is the JSON envelope for domain errors.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
}

// DomainError maps a conversation-layer error to an HTTP response. Unknown
// errors surface as a generic 500.
func (h *Handler) DomainError(w http.ResponseWriter, err error) {
	var domErr *conversation.Error
	if !errors.As(err, &domErr) {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Kind {
	case conversation.KindNotFound:
		status = http.StatusNotFound
	case conversation.KindInvalidOperation:
		status = http.StatusConflict
	case conversation.KindDataInconsistent:
		status = http.StatusInternalServerError
	}

	h.JSON(w, status, errorBody{
		Error:  domErr.Error(),
		Kind:   domErr.Kind.String(),
		Entity: domErr.Entity,
		ID:     domErr.ID,
	})
}

// sanitizeName trims and limits name to 200 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Limit to 200 characters
	if len(name) > 200 {
		name = name[:200]
	}

	return name
}

// clampLimit applies a default and the global page size cap.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
