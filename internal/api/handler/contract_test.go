package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	aimock "github.com/finsight-ai/finsight/internal/ai/mock"
	"github.com/finsight-ai/finsight/internal/analysis"
	"github.com/finsight-ai/finsight/internal/api"
	"github.com/finsight-ai/finsight/internal/api/handler"
	mw "github.com/finsight-ai/finsight/internal/api/middleware"
	"github.com/finsight-ai/finsight/internal/api/response"
	"github.com/finsight-ai/finsight/internal/cache"
	"github.com/finsight-ai/finsight/internal/extract"
	"github.com/finsight-ai/finsight/internal/queue"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/internal/worker"
	"github.com/finsight-ai/finsight/pkg/models"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testRawKey = "fs_test_contract_key_1234567890"
	testPrefix = testRawKey[:8]
)

func testKeyHash() string {
	h, _ := bcrypt.GenerateFromPassword([]byte(testRawKey), bcrypt.MinCost)
	return string(h)
}

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu      sync.Mutex
	keys    []*models.APIKey
	users   map[string]*models.User
	jobs    map[uuid.UUID]*models.Job
	reports map[uuid.UUID]*models.AnalysisReport
}

func newMockStore() *mockStore {
	return &mockStore{
		keys: []*models.APIKey{{
			ID:        uuid.New(),
			Name:      "test-key",
			KeyHash:   testKeyHash(),
			KeyPrefix: testPrefix,
			Scopes:    []string{"read", "write", "admin"},
		}},
		users:   make(map[string]*models.User),
		jobs:    make(map[uuid.UUID]*models.Job),
		reports: make(map[uuid.UUID]*models.AnalysisReport),
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetOrCreateUser(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
	s.users[email] = u
	return u, nil
}

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.DeletedAt == nil {
			now := time.Now()
			k.DeletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *mockStore) StartJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.JobStatusPending {
		return fmt.Errorf("%w: %s -> running", store.ErrInvalidTransition, job.Status)
	}
	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	return nil
}

func (s *mockStore) CompleteJob(_ context.Context, id uuid.UUID, report *models.AnalysisReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.JobStatusRunning {
		return fmt.Errorf("%w: %s -> completed", store.ErrInvalidTransition, job.Status)
	}
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	cp := *report
	s.reports[id] = &cp
	return nil
}

func (s *mockStore) FailJob(_ context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning {
		return fmt.Errorf("%w: %s -> failed", store.ErrInvalidTransition, job.Status)
	}
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &errMsg
	job.CompletedAt = &now
	return nil
}

func (s *mockStore) GetReportByJobID(_ context.Context, jobID uuid.UUID) (*models.AnalysisReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *report
	return &cp, nil
}

var _ store.Store = (*mockStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{counters: make(map[string]int64)}
}

func (c *mockCache) Ping(_ context.Context) error { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// stubExtractor stands in for PDF parsing so the harness can feed
// arbitrary bytes through the pipeline.
type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(_ string) (string, error) { return e.text, e.err }

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server *httptest.Server
	store  *mockStore
	queue  *queue.MemoryQueue
	runner *worker.Runner
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithExtractor(t, &stubExtractor{text: "FY2024 revenue was $104M."})
}

func newTestServerWithExtractor(t *testing.T, ex extract.Extractor) *testServer {
	t.Helper()

	ms := newMockStore()
	mc := newMockCache()
	q := queue.NewMemoryQueue(16)
	t.Cleanup(func() { q.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analysis.NewService(ms, q, t.TempDir(), logger)
	runner := worker.NewRunner(ms, ex, aimock.NewMockAnalyzer(), time.Minute, logger)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(ms),
		RateLimit: mw.NewRateLimit(mc, 10), // low limit for rate-limit tests

		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			response.JSON(w, map[string]string{"status": "ok"})
		},
		AnalyzeHandler:   handler.NewAnalyzeHandler(svc),
		JobStatusHandler: handler.NewJobStatusHandler(svc),
		JobResultHandler: handler.NewJobResultHandler(svc),
		CreateKeyHandler: handler.NewCreateKeyHandler(ms),
		ListKeysHandler:  handler.NewListKeysHandler(ms),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(ms),
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &testServer{server: srv, store: ms, queue: q, runner: runner}
}

// drainOne processes the next queued job through the worker runner.
func (ts *testServer) drainOne(t *testing.T) uuid.UUID {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	jobID, err := ts.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, ts.runner.Process(ctx, jobID))
	return jobID
}

func (ts *testServer) submitPDF(t *testing.T, filename, query string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	fw, err := mp.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test document body"))
	require.NoError(t, err)
	if query != "" {
		require.NoError(t, mp.WriteField("query", query))
	}
	require.NoError(t, mp.Close())

	req, _ := http.NewRequest("POST", ts.server.URL+"/api/v1/analyze", &buf)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", mp.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	return parseBody(t, resp)["data"].(map[string]any)
}

func (ts *testServer) authRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, ts.server.URL+path, &buf)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (ts *testServer) unauthRequest(method, path string) *http.Request {
	req, _ := http.NewRequest(method, ts.server.URL+path, nil)
	return req
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTRACT TESTS
// ═══════════════════════════════════════════════════════════════════════════════

// ─── GET /api/v1/health ──────────────────────────────────────────────────────

func TestHealth_200_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.unauthRequest("GET", "/api/v1/health"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := parseBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

// ─── POST /api/v1/analyze ────────────────────────────────────────────────────

func TestAnalyze_202_PendingJob(t *testing.T) {
	ts := newTestServer(t)

	data := ts.submitPDF(t, "q3_report.pdf", "What is the revenue trend?")

	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, float64(0), data["progress"])
	assert.Equal(t, "q3_report.pdf", data["filename"])
	assert.Equal(t, "What is the revenue trend?", data["query"])

	_, err := uuid.Parse(data["job_id"].(string))
	assert.NoError(t, err)
}

func TestAnalyze_202_DefaultQuery(t *testing.T) {
	ts := newTestServer(t)

	data := ts.submitPDF(t, "report.pdf", "")
	assert.Equal(t, analysis.DefaultQuery, data["query"])
}

func TestAnalyze_400_MissingFile(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	require.NoError(t, mp.WriteField("query", "no file attached"))
	require.NoError(t, mp.Close())

	req, _ := http.NewRequest("POST", ts.server.URL+"/api/v1/analyze", &buf)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", mp.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestAnalyze_400_NonPDF(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	fw, err := mp.CreateFormFile("file", "report.docx")
	require.NoError(t, err)
	fw.Write([]byte("not a pdf"))
	require.NoError(t, mp.Close())

	req, _ := http.NewRequest("POST", ts.server.URL+"/api/v1/analyze", &buf)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", mp.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INVALID_DOCUMENT", errObj["code"])
}

func TestAnalyze_401_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.unauthRequest("POST", "/api/v1/analyze"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INVALID_TOKEN", errObj["code"])
}

// ─── GET /api/v1/analyze/{jobID} ────────────────────────────────────────────

func TestJobStatus_LifecycleProgression(t *testing.T) {
	ts := newTestServer(t)

	data := ts.submitPDF(t, "report.pdf", "")
	jobID := data["job_id"].(string)

	// Pending immediately after submit: read-your-writes.
	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+jobID, nil))
	require.NoError(t, err)
	statusData := parseBody(t, resp)["data"].(map[string]any)
	resp.Body.Close()
	assert.Equal(t, "pending", statusData["status"])
	assert.Equal(t, float64(0), statusData["progress"])

	ts.drainOne(t)

	// Completed after the worker ran it.
	resp, err = http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+jobID, nil))
	require.NoError(t, err)
	statusData = parseBody(t, resp)["data"].(map[string]any)
	resp.Body.Close()
	assert.Equal(t, "completed", statusData["status"])
	assert.Equal(t, float64(100), statusData["progress"])
	assert.NotEmpty(t, statusData["completed_at"])
}

func TestJobStatus_400_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/not-a-uuid", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestJobStatus_404_Unknown(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+uuid.New().String(), nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "JOB_NOT_FOUND", errObj["code"])
}

// ─── GET /api/v1/analyze/{jobID}/result ─────────────────────────────────────

func TestJobResult_409_StillProcessing(t *testing.T) {
	ts := newTestServer(t)

	data := ts.submitPDF(t, "report.pdf", "")
	jobID := data["job_id"].(string)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+jobID+"/result", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "JOB_STILL_PROCESSING", errObj["code"])
}

func TestJobResult_200_Completed(t *testing.T) {
	ts := newTestServer(t)

	data := ts.submitPDF(t, "report.pdf", "")
	jobID := data["job_id"].(string)
	ts.drainOne(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+jobID+"/result", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resultData := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "completed", resultData["status"])

	report := resultData["report"].(map[string]any)
	assert.Equal(t, "BUY", report["recommendation"])
	assert.Equal(t, float64(85), report["confidence_score"])
	assert.NotEmpty(t, report["revenue_analysis"])
	assert.NotEmpty(t, report["profitability_analysis"])
	assert.NotEmpty(t, report["cash_flow_analysis"])
	assert.NotEmpty(t, report["risk_assessment"])
	assert.NotEmpty(t, report["reasoning"])
	assert.NotEmpty(t, report["cited_sources"])
}

func TestJobResult_200_FailedJobCarriesError(t *testing.T) {
	ts := newTestServerWithExtractor(t, &stubExtractor{
		err: fmt.Errorf("%w: bad xref table", extract.ErrUnreadableDocument),
	})

	data := ts.submitPDF(t, "corrupt.pdf", "")
	jobID := data["job_id"].(string)
	ts.drainOne(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+jobID+"/result", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resultData := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "failed", resultData["status"])
	assert.Nil(t, resultData["report"])
	assert.Contains(t, resultData["error_message"], "document could not be read")
}

func TestJobResult_404_Unknown(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+uuid.New().String()+"/result", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── POST /api/v1/admin/keys ────────────────────────────────────────────────

func TestCreateKey_201_WithRawKey(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("POST", "/api/v1/admin/keys", map[string]any{
		"name":   "my-new-key",
		"scopes": []string{"read", "write"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])
	assert.NotEmpty(t, data["key"]) // raw key shown once at creation
	assert.Equal(t, "my-new-key", data["name"])

	rawKey := data["key"].(string)
	assert.Equal(t, rawKey[:8], data["key_prefix"])
}

func TestCreateKey_400_MissingName(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("POST", "/api/v1/admin/keys", map[string]any{
		"scopes": []string{"read"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateKey_400_UnknownScope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("POST", "/api/v1/admin/keys", map[string]any{
		"name":   "bad-scope-key",
		"scopes": []string{"superuser"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewlyCreatedKey_Authenticates(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("POST", "/api/v1/admin/keys", map[string]any{
		"name":   "fresh-key",
		"scopes": []string{"read"},
	}))
	require.NoError(t, err)
	data := parseBody(t, resp)["data"].(map[string]any)
	resp.Body.Close()
	rawKey := data["key"].(string)

	req, _ := http.NewRequest("GET", ts.server.URL+"/api/v1/analyze/"+uuid.New().String(), nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Authenticated but unknown job: 404, not 401.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListKeys_DoesNotExposeRawKey(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/admin/keys", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].([]any)
	require.NotEmpty(t, data)

	firstKey := data[0].(map[string]any)
	assert.NotEmpty(t, firstKey["key_prefix"])
	assert.Nil(t, firstKey["key"])      // raw key NOT exposed
	assert.Nil(t, firstKey["key_hash"]) // hash NOT exposed
}

func TestRevokeKey_RemovedFromListAndRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("POST", "/api/v1/admin/keys", map[string]any{
		"name":   "doomed-key",
		"scopes": []string{"read"},
	}))
	require.NoError(t, err)
	data := parseBody(t, resp)["data"].(map[string]any)
	resp.Body.Close()
	keyID := data["id"].(string)
	rawKey := data["key"].(string)

	resp, err = http.DefaultClient.Do(ts.authRequest("DELETE", "/api/v1/admin/keys/"+keyID, nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Revoked key no longer authenticates.
	req, _ := http.NewRequest("GET", ts.server.URL+"/api/v1/admin/keys", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRevokeKey_404_Unknown(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("DELETE", "/api/v1/admin/keys/"+uuid.New().String(), nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── Admin scope contract ───────────────────────────────────────────────────

func TestAdminEndpoints_403_WithoutAdminScope(t *testing.T) {
	ts := newTestServer(t)

	noAdminKey := "fs_noadmin_1234567890abcdef"
	noAdminHash, _ := bcrypt.GenerateFromPassword([]byte(noAdminKey), bcrypt.MinCost)
	ts.store.keys = append(ts.store.keys, &models.APIKey{
		ID:        uuid.New(),
		Name:      "no-admin-key",
		KeyHash:   string(noAdminHash),
		KeyPrefix: noAdminKey[:8],
		Scopes:    []string{"read", "write"}, // no "admin"
	})

	adminEndpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
	}

	for _, ep := range adminEndpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req, _ := http.NewRequest(ep.method, ts.server.URL+ep.path, bytes.NewBufferString(`{"name":"x","scopes":["read"]}`))
			req.Header.Set("Authorization", "Bearer "+noAdminKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			errObj := parseBody(t, resp)["error"].(map[string]any)
			assert.Equal(t, "FORBIDDEN", errObj["code"])
		})
	}
}

// ─── Rate limiting contract ─────────────────────────────────────────────────

func TestRateLimit_Headers_Present(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.authRequest("GET", "/api/v1/analyze/"+uuid.New().String(), nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
}

func TestRateLimit_429_Exceeded(t *testing.T) {
	ts := newTestServer(t)

	// The limit is 10 in newTestServer; the 11th request must be rejected.
	path := "/api/v1/analyze/" + uuid.New().String()
	var lastResp *http.Response
	for i := 0; i < 11; i++ {
		resp, err := http.DefaultClient.Do(ts.authRequest("GET", path, nil))
		require.NoError(t, err)
		if i < 10 {
			resp.Body.Close()
		} else {
			lastResp = resp
		}
	}
	defer lastResp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, lastResp.StatusCode)
	assert.NotEmpty(t, lastResp.Header.Get("Retry-After"))

	errObj := parseBody(t, lastResp)["error"].(map[string]any)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errObj["code"])
}

// ─── Response format contract ───────────────────────────────────────────────

func TestResponseFormat_SuccessEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.unauthRequest("GET", "/api/v1/health"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := parseBody(t, resp)
	assert.Contains(t, body, "data")
}

func TestResponseFormat_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.DefaultClient.Do(ts.unauthRequest("POST", "/api/v1/analyze"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := parseBody(t, resp)
	assert.Contains(t, body, "error")
	errObj := body["error"].(map[string]any)
	assert.NotEmpty(t, errObj["code"])
	assert.NotEmpty(t, errObj["message"])
}
