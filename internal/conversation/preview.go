package conversation

import "encoding/json"

// PreviewLength is the maximum number of runes in a tree-node preview.
const PreviewLength = 50

const previewEllipsis = "…"

// messagePayload is the subset of the opaque message payload the core looks
// at. Everything else in data passes through untouched.
type messagePayload struct {
	Blocks []contentBlock `json:"blocks"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// extractPreview returns a short preview string for a message payload: the
// first non-empty text block, truncated to PreviewLength runes with an
// ellipsis. Payloads that don't parse yield an empty preview.
func extractPreview(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var payload messagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}

	for _, block := range payload.Blocks {
		if block.Text == "" {
			continue
		}
		return truncate(block.Text, PreviewLength)
	}
	return ""
}

// truncate shortens s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + previewEllipsis
}
