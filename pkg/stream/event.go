package stream

import "encoding/json"

// EventType tags an Event.
type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventSources    EventType = "sources"
	EventDone       EventType = "done"
	EventError      EventType = "error"

	// EventUnknown replaces any tag not listed above. Such events are
	// valid and ignored.
	EventUnknown EventType = "unknown"
)

// Known reports whether t is one of the defined event tags.
func (t EventType) Known() bool {
	switch t {
	case EventToken, EventToolCall, EventToolResult, EventSources, EventDone, EventError:
		return true
	}
	return false
}

// Source is a retrieved passage cited by an answer.
type Source struct {
	Index           int            `json:"index"`
	Content         string         `json:"content"`
	SimilarityScore float64        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Event is one decoded frame. Only the fields of its Type are set:
//
//	token        Content
//	tool_call    Tool
//	tool_result  Tool, Result
//	sources      Sources
//	done         Model, LatencyMs, QueryMode
//	error        Message
type Event struct {
	Type      EventType `json:"type"`
	Content   string    `json:"content,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Result    string    `json:"result,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	Model     string    `json:"model,omitempty"`
	LatencyMs float64   `json:"latency_ms,omitempty"`
	QueryMode string    `json:"query_mode,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Reply is the non-streamed chat response.
type Reply struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	Model          string   `json:"model"`
	LatencyMs      float64  `json:"latency_ms"`
	RetrievalCount int      `json:"retrieval_count"`
	QueryMode      string   `json:"query_mode"`
}

// parseEvent decodes a frame payload. Unknown tags become EventUnknown.
func parseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	if !ev.Type.Known() {
		ev = Event{Type: EventUnknown}
	}
	return ev, nil
}
