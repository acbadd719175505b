package stream

import (
	"reflect"
	"strings"
	"testing"
)

const sampleStream = "data: {\"type\":\"token\",\"content\":\"Hel\"}\n" +
	": keep-alive\n" +
	"data: {\"type\":\"tool_call\",\"tool\":\"search_logs\"}\n" +
	"\n" +
	"data: {\"type\":\"tool_result\",\"tool\":\"search_logs\",\"result\":\"3 rows\"}\n" +
	"data: {\"type\":\"token\",\"content\":\"lo ✓\"}\r\n" +
	"data: not json\n" +
	"data: {\"type\":\"sources\",\"sources\":[{\"index\":1,\"content\":\"runbook\",\"similarity_score\":0.91}]}\n" +
	"data: {\"type\":\"heartbeat\"}\n" +
	"data: {\"type\":\"done\",\"model\":\"gemini\",\"latency_ms\":812.5,\"query_mode\":\"hybrid\"}\n"

func decodeAll(chunks []string) []Event {
	d := NewDecoder()
	var events []Event
	for _, c := range chunks {
		events = append(events, d.Feed([]byte(c))...)
	}
	return append(events, d.Flush()...)
}

func TestDecoder_Feed(t *testing.T) {
	events := decodeAll([]string{sampleStream})

	wantTypes := []EventType{EventToken, EventToolCall, EventToolResult, EventToken, EventSources, EventUnknown, EventDone}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d: type = %q, want %q", i, events[i].Type, want)
		}
	}

	if events[3].Content != "lo ✓" {
		t.Errorf("CRLF token content = %q", events[3].Content)
	}
	if got := events[4].Sources; len(got) != 1 || got[0].SimilarityScore != 0.91 {
		t.Errorf("sources = %+v", got)
	}
	if events[6].Model != "gemini" || events[6].QueryMode != "hybrid" || events[6].LatencyMs != 812.5 {
		t.Errorf("done = %+v", events[6])
	}
}

func TestDecoder_Dropped(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte(sampleStream))

	// The comment and the non-JSON frame; blank lines and unknown tags do not count.
	if d.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", d.Dropped())
	}
}

func TestDecoder_ChunkSplitInvariance(t *testing.T) {
	want := decodeAll([]string{sampleStream})
	data := sampleStream

	// Every single split point, including inside multi-byte runes.
	for i := 0; i <= len(data); i++ {
		got := decodeAll([]string{data[:i], data[i:]})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: events differ\ngot:  %+v\nwant: %+v", i, got, want)
		}
	}

	for _, size := range []int{1, 2, 3, 7, 16, 64} {
		var chunks []string
		for i := 0; i < len(data); i += size {
			chunks = append(chunks, data[i:min(i+size, len(data))])
		}
		if got := decodeAll(chunks); !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: events differ", size)
		}
	}
}

func TestDecoder_KeepsIncompleteLine(t *testing.T) {
	d := NewDecoder()

	if got := d.Feed([]byte(`data: {"type":"token","con`)); len(got) != 0 {
		t.Fatalf("partial line produced events: %+v", got)
	}
	got := d.Feed([]byte("tent\":\"x\"}\n"))
	if len(got) != 1 || got[0].Content != "x" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecoder_Flush(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"unterminated final frame", `data: {"type":"done","model":"m"}`, 1},
		{"terminated stream", "data: {\"type\":\"done\"}\n", 0},
		{"unterminated garbage", "data: {", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			d.Feed([]byte(tt.input))
			if got := d.Flush(); len(got) != tt.want {
				t.Errorf("Flush() returned %d events, want %d", len(got), tt.want)
			}
			if got := d.Flush(); got != nil {
				t.Errorf("second Flush() = %+v, want nil", got)
			}
		})
	}
}

func TestDecoder_PrefixRequired(t *testing.T) {
	d := NewDecoder()
	lines := []string{
		`{"type":"token","content":"bare"}`,
		`data:{"type":"token","content":"no space"}`,
		`event: token`,
		`data:  {"type":"token","content":"extra space"}`,
	}
	got := d.Feed([]byte(strings.Join(lines, "\n") + "\n"))

	if len(got) != 1 || got[0].Content != "extra space" {
		t.Errorf("got %+v, want only the padded frame", got)
	}
}
