package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTopicID generates a time-ordered UUID v7 for topics.
func NewTopicID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewMessageID generates a ULID for messages. ULIDs sort lexicographically
// by creation time, which keeps sibling ordering stable without an extra
// sequence column.
func NewMessageID() string {
	return ulid.Make().String()
}
