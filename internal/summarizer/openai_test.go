package summarizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

func responseBody(text string) string {
	return `{
		"id": "resp_1",
		"object": "response",
		"created_at": 1700000000,
		"status": "completed",
		"model": "gpt-5-mini-2025-08-07",
		"output": [{
			"type": "message",
			"id": "msg_1",
			"status": "completed",
			"role": "assistant",
			"content": [{"type": "output_text", "text": "` + text + `", "annotations": []}]
		}]
	}`
}

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) *OpenAISummarizer {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	s, err := NewOpenAISummarizer("test-key",
		option.WithBaseURL(ts.URL+"/v1/"),
		option.WithHTTPClient(ts.Client()),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return s
}

func TestNewOpenAISummarizerRequiresKey(t *testing.T) {
	if _, err := NewOpenAISummarizer("  "); err == nil {
		t.Fatalf("expected error for empty API key")
	}
}

func TestSummarize(t *testing.T) {
	var path string
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody("A stellar nursery  glows 1,300 light-years away.")))
	})

	summary, err := s.Summarize(context.Background(), Input{
		Title:    "Orion Nebula",
		Text:     "The Orion Nebula is a stellar nursery ...",
		MaxRunes: 200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary != "A stellar nursery glows 1,300 light-years away." {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if !strings.HasSuffix(path, "/responses") {
		t.Fatalf("unexpected request path: %s", path)
	}
}

func TestSummarizeTooLong(t *testing.T) {
	s := newTestSummarizer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody(strings.Repeat("a", 50))))
	})

	if _, err := s.Summarize(context.Background(), Input{Text: "text", MaxRunes: 10}); err == nil {
		t.Fatalf("expected error for summary above the limit")
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	s := newTestSummarizer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("unexpected request")
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := s.Summarize(context.Background(), Input{Text: "   "}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
