package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/scheduler"
)

// fakeJobs records submissions and serves canned jobs.
type fakeJobs struct {
	submitted []scheduler.Request
	submitErr error
	jobs      map[string]scheduler.Job
	cancelled []string
}

func (f *fakeJobs) Submit(req scheduler.Request) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return "job-1", nil
}

func (f *fakeJobs) Status(id string) (scheduler.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return scheduler.Job{}, errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	return job, nil
}

func (f *fakeJobs) Cancel(id string) error {
	if _, ok := f.jobs[id]; !ok {
		return errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	f.cancelled = append(f.cancelled, id)
	job := f.jobs[id]
	job.State = scheduler.StateCancelled
	f.jobs[id] = job
	return nil
}

func newTestServer(t *testing.T, jobs *fakeJobs) *httptest.Server {
	t.Helper()
	svc := NewService(jobs, log.NewWithOptions(io.Discard, log.Options{}))
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestAnalyzeAccepted(t *testing.T) {
	jobs := &fakeJobs{}
	srv := newTestServer(t, jobs)

	resp := postJSON(t, srv.URL+"/analyze", analyzeRequest{
		Repository: "acme/widget",
		Dependency: "widget",
		Ref:        "main",
		Credential: "token123",
		MatchMode:  "substring",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	body := decode[analyzeResponse](t, resp)
	if body.JobID != "job-1" || body.State != "queued" {
		t.Errorf("response = %+v", body)
	}

	if len(jobs.submitted) != 1 {
		t.Fatalf("submissions = %d", len(jobs.submitted))
	}
	sub := jobs.submitted[0]
	if sub.Spec.Owner != "acme" || sub.Spec.Repo != "widget" || sub.Spec.Ref != "main" {
		t.Errorf("spec = %+v", sub.Spec)
	}
	if sub.Spec.Token != "token123" {
		t.Error("credential not forwarded to fetch spec")
	}
	if sub.Target != "widget" || sub.Mode != gradle.MatchSubstring {
		t.Errorf("target/mode = %q/%q", sub.Target, sub.Mode)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name string
		req  analyzeRequest
		code string
	}{
		{"missing repository", analyzeRequest{Dependency: "widget"}, "INVALID_REPOSITORY"},
		{"bad repository form", analyzeRequest{Repository: "acme", Dependency: "widget"}, "INVALID_REPOSITORY"},
		{"traversal repository", analyzeRequest{Repository: "acme/../etc", Dependency: "widget"}, "INVALID_REPOSITORY"},
		{"missing dependency", analyzeRequest{Repository: "acme/widget"}, "INVALID_DEPENDENCY"},
		{"bad match mode", analyzeRequest{Repository: "acme/widget", Dependency: "widget", MatchMode: "fuzzy"}, "INVALID_MATCH_MODE"},
	}
	srv := newTestServer(t, &fakeJobs{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/analyze", tt.req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			body := decode[errorResponse](t, resp)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestAnalyzeMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeJobs{})
	resp, err := http.Post(srv.URL+"/analyze", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeCapacityExceeded(t *testing.T) {
	jobs := &fakeJobs{submitErr: errors.New(errors.ErrCodeCapacityExceeded, "job queue is full")}
	srv := newTestServer(t, jobs)

	resp := postJSON(t, srv.URL+"/analyze", analyzeRequest{Repository: "acme/widget", Dependency: "widget"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestStatusCompletedJob(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{jobs: map[string]scheduler.Job{
		"job-1": {
			ID:    "job-1",
			State: scheduler.StateCompleted,
			Matches: []gradle.Match{{
				Descriptor:      "build.gradle",
				Configuration:   "compileClasspath",
				Coordinate:      "com.acme:widget",
				ResolvedVersion: "1.2",
			}},
			Descriptors: []string{"build.gradle"},
			CreatedAt:   created,
			StartedAt:   created.Add(time.Second),
			CompletedAt: created.Add(3 * time.Second),
		},
	}}
	srv := newTestServer(t, jobs)

	resp, err := http.Get(srv.URL + "/status/job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decode[jobResponse](t, resp)
	if body.State != "completed" || len(body.Matches) != 1 {
		t.Errorf("response = %+v", body)
	}
	if body.Matches[0].ResolvedVersion != "1.2" {
		t.Errorf("match = %+v", body.Matches[0])
	}
	if body.StartedAt == nil || body.CompletedAt == nil {
		t.Error("timing metadata missing")
	}
}

func TestStatusNeverLeaksCredential(t *testing.T) {
	job := scheduler.Job{ID: "job-1", State: scheduler.StateQueued}
	job.Request.Spec.Owner = "acme"
	job.Request.Spec.Repo = "widget"
	job.Request.Spec.Token = "hunter2"
	jobs := &fakeJobs{jobs: map[string]scheduler.Job{"job-1": job}}

	srv := newTestServer(t, jobs)
	resp, err := http.Get(srv.URL + "/status/job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("hunter2")) {
		t.Error("status response leaks the credential")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	srv := newTestServer(t, &fakeJobs{})
	resp, err := http.Get(srv.URL + "/status/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	body := decode[errorResponse](t, resp)
	if body.Code != "JOB_NOT_FOUND" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestCancelJob(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]scheduler.Job{
		"job-1": {ID: "job-1", State: scheduler.StateRunning},
	}}
	srv := newTestServer(t, jobs)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/jobs/job-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[jobResponse](t, resp)
	if body.State != "cancelled" {
		t.Errorf("state = %q, want cancelled", body.State)
	}
	if len(jobs.cancelled) != 1 || jobs.cancelled[0] != "job-1" {
		t.Errorf("cancelled = %v", jobs.cancelled)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeJobs{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
