package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/models"
	"github.com/h2adev/reelforge/internal/provider"
)

// fakeCompletingProvider answers one submit+poll cycle that completes
// immediately, to exercise the queue's lifecycle without real latency.
func fakeCompletingProvider(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/video/video-b/image-to-video", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
	})
	mux.HandleFunc("/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			json.NewEncoder(w).Encode(map[string]any{"status": "failed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "completed"})
	})
	mux.HandleFunc("/requests/req-1/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"url": "https://cdn.example/video.mp4"})
	})
	return httptest.NewServer(mux)
}

func waitTerminal(t *testing.T, q *Queue, jobID uuid.UUID) *models.Job {
	t.Helper()
	job, err := q.Wait(context.Background(), jobID, 5*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return job
}

func TestSubmitRunsJobToCompletionAndDispatchesHook(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))

	var hookURL string
	hookCalled := make(chan struct{}, 1)
	q.RegisterHook(models.TaskKindVideo, func(ctx context.Context, job *models.Job, resultURL string) error {
		hookURL = resultURL
		hookCalled <- struct{}{}
		return nil
	})

	jobID, err := q.Submit(CreateInput{
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-B",
		Arguments: models.Metadata{"duration_s": 6.0},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job := waitTerminal(t, q, jobID)
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s, want completed", job.Status)
	}

	select {
	case <-hookCalled:
	case <-time.After(time.Second):
		t.Fatal("hook was not dispatched")
	}
	if hookURL != "https://cdn.example/video.mp4" {
		t.Errorf("hook resultURL = %q", hookURL)
	}
}

func TestSubmitMarksFailedOnProviderFailure(t *testing.T) {
	srv := fakeCompletingProvider(t, true)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	jobID, err := q.Submit(CreateInput{
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-B",
		Arguments: models.Metadata{"duration_s": 6.0},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job := waitTerminal(t, q, jobID)
	if job.Status != models.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Errorf("expected non-empty error message")
	}
}

func TestCreateRejectsInvalidDuration(t *testing.T) {
	q := New(provider.New("http://localhost", "key"))
	_, err := q.Create(CreateInput{
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-B",
		Arguments: models.Metadata{"duration_s": 7},
	})
	if err == nil {
		t.Fatal("expected validation error for unsupported duration")
	}
}

func TestCreateRejectsUnknownModel(t *testing.T) {
	q := New(provider.New("http://localhost", "key"))
	_, err := q.Create(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "nope"})
	if err == nil {
		t.Fatal("expected validation error for unknown model")
	}
}

func TestCancelIsIdempotentOnTerminalJob(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	jobID, _ := q.Submit(CreateInput{
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-B",
		Arguments: models.Metadata{"duration_s": 6.0},
	})
	waitTerminal(t, q, jobID)

	if q.Cancel(jobID) {
		t.Errorf("expected Cancel on a terminal job to return false")
	}
}

func TestCancelUnknownJobReturnsFalse(t *testing.T) {
	q := New(provider.New("http://localhost", "key"))
	if q.Cancel(uuid.New()) {
		t.Errorf("expected Cancel on unknown job to return false")
	}
}

func TestListFiltersByProjectAndStatus(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	projA := uuid.New()
	projB := uuid.New()

	jobA, _ := q.Submit(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "video-B", Arguments: models.Metadata{"duration_s": 6.0}, ProjectID: &projA})
	_, _ = q.Submit(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "video-B", Arguments: models.Metadata{"duration_s": 6.0}, ProjectID: &projB})

	waitTerminal(t, q, jobA)

	got := q.List(&projA, nil)
	if len(got) != 1 || got[0].ID != jobA {
		t.Errorf("List(projA) = %v, want single job %s", got, jobA)
	}

	completed := q.List(nil, []models.JobStatus{models.JobStatusCompleted})
	if len(completed) == 0 {
		t.Errorf("expected at least one completed job across all projects")
	}
}

func TestStatsCountsByStatusAndKind(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	jobID, _ := q.Submit(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "video-B", Arguments: models.Metadata{"duration_s": 6.0}})
	waitTerminal(t, q, jobID)

	st := q.Stats()
	if st.Total != 1 {
		t.Errorf("Total = %d, want 1", st.Total)
	}
	if st.ByStatus[models.JobStatusCompleted] != 1 {
		t.Errorf("ByStatus[completed] = %d, want 1", st.ByStatus[models.JobStatusCompleted])
	}
	if st.ByKind[models.TaskKindVideo] != 1 {
		t.Errorf("ByKind[video] = %d, want 1", st.ByKind[models.TaskKindVideo])
	}
	if st.ActiveCount != 0 {
		t.Errorf("ActiveCount = %d, want 0 once job is terminal", st.ActiveCount)
	}
}

func TestCleanupEvictsOldTerminalJobs(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	jobID, _ := q.Submit(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "video-B", Arguments: models.Metadata{"duration_s": 6.0}})
	waitTerminal(t, q, jobID)

	q.mu.Lock()
	q.jobs[jobID].CreatedAt = time.Now().Add(-48 * time.Hour)
	q.mu.Unlock()

	removed := q.Cleanup(24)
	if removed != 1 {
		t.Errorf("Cleanup removed %d jobs, want 1", removed)
	}
	if _, err := q.Get(jobID); err == nil {
		t.Errorf("expected job to be gone after cleanup")
	}
}

func TestHookFailureIsSwallowed(t *testing.T) {
	srv := fakeCompletingProvider(t, false)
	defer srv.Close()

	q := New(provider.New(srv.URL, "key"))
	q.RegisterHook(models.TaskKindVideo, func(ctx context.Context, job *models.Job, resultURL string) error {
		return errHookFailed
	})

	jobID, _ := q.Submit(CreateInput{TaskKind: models.TaskKindVideo, ModelID: "video-B", Arguments: models.Metadata{"duration_s": 6.0}})
	job := waitTerminal(t, q, jobID)

	if job.Status != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed even though hook failed", job.Status)
	}
}

var errHookFailed = &hookError{"hook intentionally failed"}

type hookError struct{ msg string }

func (e *hookError) Error() string { return e.msg }
