package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"context"
)

func TestExtractURLTriesFieldsInOrder(t *testing.T) {
	cases := []struct {
		taskKind string
		result   map[string]any
		wantURL  string
		wantOK   bool
	}{
		{"video", map[string]any{"video": map[string]any{"url": "https://a"}}, "https://a", true},
		{"video", map[string]any{"url": "https://b"}, "https://b", true},
		{"video", map[string]any{"output_url": "https://c"}, "https://c", true},
		{"image", map[string]any{"images": []any{map[string]any{"url": "https://d"}}}, "https://d", true},
		{"speech", map[string]any{"audio": map[string]any{"url": "https://e"}}, "https://e", true},
		{"video", map[string]any{}, "", false},
	}
	for _, c := range cases {
		got, ok := ExtractURL(c.taskKind, c.result)
		if ok != c.wantOK || got != c.wantURL {
			t.Errorf("ExtractURL(%s, %v) = %q,%v want %q,%v", c.taskKind, c.result, got, ok, c.wantURL, c.wantOK)
		}
	}
}

func TestClassifyRetryable(t *testing.T) {
	cases := []struct {
		status        int
		body          string
		wantRetryable bool
	}{
		{http.StatusTooManyRequests, "", true},
		{http.StatusBadGateway, "", true},
		{http.StatusServiceUnavailable, "", true},
		{http.StatusUnauthorized, "", false},
		{http.StatusBadRequest, "", false},
		{http.StatusBadRequest, `{"error":"downstream service unavailable"}`, false},
	}
	for _, c := range cases {
		_, retryable := Classify(c.status, c.body)
		if retryable != c.wantRetryable {
			t.Errorf("Classify(%d, %q) retryable = %v want %v", c.status, c.body, retryable, c.wantRetryable)
		}
	}
}

func TestRequiresLongPoll(t *testing.T) {
	if !requiresLongPoll(map[string]any{"duration_s": 10.0}) {
		t.Errorf("duration 10 should require long poll")
	}
	if requiresLongPoll(map[string]any{"duration_s": 5.0}) {
		t.Errorf("duration 5 should not require long poll")
	}
	if requiresLongPoll(map[string]any{}) {
		t.Errorf("missing duration should not require long poll")
	}
}

// fakeProvider simulates a queue-backed provider: the first N status polls
// return "in_progress", then "completed", with the result fetched
// separately from /result — exercising the client's poll loop end to end.
func fakeProvider(t *testing.T, inProgressPolls int) *httptest.Server {
	t.Helper()
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/video/video-b/image-to-video", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
	})
	mux.HandleFunc("/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls <= inProgressPolls {
			json.NewEncoder(w).Encode(map[string]any{"status": "in_progress", "progress": 50.0})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "completed"})
	})
	mux.HandleFunc("/requests/req-1/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"url": "https://cdn.example/video.mp4"})
	})
	return httptest.NewServer(mux)
}

func TestSubmitDrivesEventsToCompletion(t *testing.T) {
	srv := fakeProvider(t, 1)
	defer srv.Close()

	c := New(srv.URL, "test-key")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := c.Submit(ctx, "video", "video-B", map[string]any{"duration_s": 6.0})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var sawInProgress, sawCompleted bool
	var resultURL string
	for ev := range handle.Events {
		switch ev.Kind {
		case EventInProgress:
			sawInProgress = true
		case EventCompleted:
			sawCompleted = true
			url, _ := ExtractURL("video", ev.Result)
			resultURL = url
		}
	}

	if err := handle.Err(); err != nil {
		t.Fatalf("handle.Err() = %v", err)
	}
	if !sawInProgress || !sawCompleted {
		t.Errorf("expected both in_progress and completed events, got inProgress=%v completed=%v", sawInProgress, sawCompleted)
	}
	if resultURL != "https://cdn.example/video.mp4" {
		t.Errorf("resultURL = %q", resultURL)
	}
}

func TestSubmitUnknownModelIsValidationError(t *testing.T) {
	c := New("http://localhost", "key")
	_, err := c.Submit(context.Background(), "video", "not-a-model", map[string]any{})
	if err == nil {
		t.Fatalf("expected validation error for unknown model")
	}
}
