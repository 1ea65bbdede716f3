package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/cogstim/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(Options{OutputRoot: t.TempDir(), Defaults: testDefaults()}, st)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, srv
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

// waitForJob polls the job until it reaches a terminal state.
func waitForJob(t *testing.T, s *Server, id string) Job {
	t.Helper()
	for i := 0; i < 200; i++ {
		job, _ := s.jobs.GetJob(id)
		if job.State.Done() {
			return job
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("Job did not finish in time")
	return Job{}
}

func TestServer_CreateJob(t *testing.T) {
	s, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/jobs", JobRequest{
		Kind:   store.KindANS,
		Config: json.RawMessage(`{"seed": 42, "versionTag": "api"}`),
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}
	if job.Config.Seed != 42 || job.Config.VersionTag != "api" {
		t.Errorf("Overrides not applied: %+v", job.Config)
	}
	if !strings.HasSuffix(job.Config.OutputDir, job.ID) {
		t.Errorf("Output dir %q should end with the job ID", job.Config.OutputDir)
	}

	final := waitForJob(t, s, job.ID)
	if final.State != StateCompleted {
		t.Fatalf("Job ended as %s: %s", final.State, final.Error)
	}

	runResp, err := http.Get(srv.URL + "/api/v1/runs/" + job.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer runResp.Body.Close()
	if runResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected run to be stored, got %d", runResp.StatusCode)
	}
	var run store.Run
	if err := json.NewDecoder(runResp.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}
	if run.Config.VersionTag != "api" || len(run.Records) == 0 {
		t.Errorf("Unexpected stored run %+v", run)
	}
}

func TestServer_CreateJobValidation(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown kind", `{"kind": "lines"}`},
		{"unknown field", `{"kind": "ans", "config": {"colour": "red"}}`},
		{"invalid config", `{"kind": "ans", "config": {"minPoints": 5, "maxPoints": 2}}`},
		{"unknown colour", `{"kind": "ans", "config": {"primary": "octarine"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_ListAndGetJobs(t *testing.T) {
	s, srv := newTestServer(t)

	s.jobs.CreateJob(store.KindANS, testDefaults()[store.KindANS], nil)
	job := s.jobs.CreateJob(store.KindMTS, testDefaults()[store.KindMTS], nil)

	resp, err := http.Get(srv.URL + "/api/v1/jobs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var jobs []Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}

	resp, err = http.Get(srv.URL + "/api/v1/jobs/" + job.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status["id"] != job.ID || status["kind"] != store.KindMTS || status["state"] != string(StatePending) {
		t.Errorf("Unexpected status %v", status)
	}
	if _, ok := status["elapsed"]; !ok {
		t.Error("Status should report elapsed time")
	}

	resp, err = http.Get(srv.URL + "/api/v1/jobs/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s, srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	job := s.jobs.CreateJob(store.KindANS, testDefaults()[store.KindANS], cancel)

	del := func(id string) int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/jobs/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := del(job.ID); code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", code)
	}
	if ctx.Err() == nil {
		t.Error("Job context should be cancelled")
	}
	if code := del("nonexistent"); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}

	s.jobs.UpdateJob(job.ID, func(j *Job) { j.State = StateCancelled })
	if code := del(job.ID); code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", code)
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	s, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/jobs", JobRequest{Kind: store.KindMTS})
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()

	stream, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID + "/stream")
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer stream.Body.Close()

	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %q", ct)
	}

	// The stream closes after the terminal event.
	var last ProgressEvent
	events := 0
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
			t.Fatalf("Bad event %q: %v", line, err)
		}
		events++
	}

	if events == 0 {
		t.Fatal("Expected SSE data in response")
	}
	if last.JobID != job.ID || !last.State.Done() {
		t.Errorf("Last event should be terminal, got %+v", last)
	}
	if final := waitForJob(t, s, job.ID); final.State != last.State {
		t.Errorf("Last event state %s differs from job state %s", last.State, final.State)
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/jobs/nonexistent/stream")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestServer_Runs(t *testing.T) {
	s, srv := newTestServer(t)

	run := &store.Run{ID: "run-1", Kind: store.KindANS, CreatedAt: time.Now().UTC()}
	if err := s.store.SaveRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	if err != nil {
		t.Fatal(err)
	}
	var infos []store.RunInfo
	json.NewDecoder(resp.Body).Decode(&infos)
	resp.Body.Close()
	if len(infos) != 1 || infos[0].ID != "run-1" {
		t.Errorf("Unexpected run list %+v", infos)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/runs/run-1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/runs/run-1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestServer_RunsWithoutStore(t *testing.T) {
	s := NewServer(Options{Defaults: testDefaults()}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestServer_Preview(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/preview", PreviewRequest{N1: 3, N2: 2, Equalize: true, Seed: 9})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	if resp.Header.Get("X-Primary-Area") == "" {
		t.Error("Expected area headers")
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Response is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("Preview width = %d, want 128", img.Bounds().Dx())
	}
}

func TestServer_PreviewErrors(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name string
		req  PreviewRequest
		want int
	}{
		{"no dots", PreviewRequest{}, http.StatusBadRequest},
		{"too many dots", PreviewRequest{N1: 150, N2: 150}, http.StatusBadRequest},
		{"overflowing counts", PreviewRequest{N1: 1 << 62, N2: 1 << 62}, http.StatusBadRequest},
		{"negative count", PreviewRequest{N1: -5, N2: 10}, http.StatusBadRequest},
		{"unknown kind", PreviewRequest{Kind: "lines", N1: 1}, http.StatusBadRequest},
		{"does not fit", PreviewRequest{N1: 100, Config: json.RawMessage(`{"radii": {"min": 30, "max": 30}, "attemptsLimit": 50, "imageAttempts": 2}`)}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/preview", tt.req)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestServer_Healthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	eb.Broadcast(ProgressEvent{JobID: "job1", State: StateRunning, Done: 10, Total: 20, Timestamp: time.Now()})

	select {
	case received := <-ch:
		if received.JobID != "job1" || received.Done != 10 {
			t.Errorf("Unexpected event %+v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// late subscribers get the last event replayed
	late := eb.Subscribe("job1")
	select {
	case received := <-late:
		if received.Done != 10 {
			t.Errorf("Replayed event has Done=%d", received.Done)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for replayed event")
	}

	eb.CleanupJob("job1")
	if _, ok := <-late; ok {
		t.Error("CleanupJob should close subscriber channels")
	}
	eb.Unsubscribe("job1", late)
}
