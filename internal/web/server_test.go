package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/history"
	"github.com/JonMunkholm/csvcompare/internal/pipeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second},
		Compare: config.CompareConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   20 * time.Millisecond,
			PairTimeout:   time.Minute,
			MaxUploadSize: 1 << 20,
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

type testServer struct {
	*Server
	store   *history.MemoryStore
	limiter *pipeline.Limiter
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	store := history.NewMemoryStore(10)
	limiter := pipeline.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	s := NewServer(cfg, limiter, store)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return &testServer{Server: s, store: store, limiter: limiter}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func compareRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/compare", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "csvcompare_")
}

func TestCompare(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(compareRequest(t,
		map[string]string{"config": "field_delimiter: ';'\ndecimal_separator: ','\ncomparison_modes: [{Absolute: 0.1}]\npreprocessing: [ExtractHeaders]\n"},
		map[string]string{
			"nominal": "Name;Value\nx;1,0\ny;2,0\n",
			"actual":  "Name;Value\nx;1,05\ny;3,0\n",
		},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RunID     uuid.UUID `json:"run_id"`
		IsError   bool      `json:"is_error"`
		DiffCount int       `json:"diff_count"`
		Diffs     []struct {
			Kind string `json:"kind"`
		} `json:"diffs"`
		Headers []string `json:"headers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsError)
	assert.Equal(t, 1, resp.DiffCount)
	require.Len(t, resp.Diffs, 1)
	assert.Equal(t, "out_of_tolerance", resp.Diffs[0].Kind)
	assert.Equal(t, []string{"Name", "Value"}, resp.Headers)

	stored, err := s.store.Get(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.False(t, stored.AllOkay)
	assert.Equal(t, 0, s.limiter.Status().Active)
}

func TestCompare_DefaultConfigIsExact(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(compareRequest(t, nil, map[string]string{
		"nominal": "1,2\n3,4\n",
		"actual":  "1,2\n3,4\n",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsError)
	assert.Equal(t, 0, resp.DiffCount)
}

func TestCompare_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		status int
		code   string
	}{
		{
			name:   "missing actual",
			files:  map[string]string{"nominal": "a\n"},
			status: http.StatusBadRequest,
			code:   "FILE003",
		},
		{
			name:   "invalid config",
			fields: map[string]string{"config": "comparison_modes: [{Absolute: -1}]"},
			files:  map[string]string{"nominal": "a\n", "actual": "a\n"},
			status: http.StatusBadRequest,
			code:   "RULE002",
		},
		{
			name:   "unterminated quote",
			files:  map[string]string{"nominal": "a,\"b\n", "actual": "a,b\n"},
			status: http.StatusUnprocessableEntity,
			code:   "CSV001",
		},
		{
			name:   "row count required",
			fields: map[string]string{"config": "comparison_modes: [Ignore]\nrequire_equal_row_count: true"},
			files:  map[string]string{"nominal": "1\n2\n", "actual": "1\n"},
			status: http.StatusUnprocessableEntity,
			code:   "CSV003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			rec := s.do(compareRequest(t, tt.fields, tt.files))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCompare_FailedComparisonIsRecorded(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := s.do(compareRequest(t, nil, map[string]string{"nominal": "a,\"b\n", "actual": "a,b\n"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	runs, err := s.store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].AllOkay)
	assert.Equal(t, 1, runs[0].FailedFiles)
}

func TestCompare_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Compare.MaxUploadSize = 16
	s := newTestServer(t, cfg)

	rec := s.do(compareRequest(t, nil, map[string]string{
		"nominal": "this nominal file is well over sixteen bytes\n",
		"actual":  "a\n",
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)
}

func TestCompare_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Compare.MaxConcurrent = 1
	s := newTestServer(t, cfg)

	require.NoError(t, s.limiter.Wait(context.Background()))
	defer s.limiter.Release()

	rec := s.do(compareRequest(t, nil, map[string]string{"nominal": "a\n", "actual": "a\n"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CMP001", decodeError(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRuns(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(compareRequest(t, nil, map[string]string{"nominal": "1\n", "actual": "1\n"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var compared CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &compared))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []history.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, compared.RunID, runs[0].ID)
	assert.True(t, runs[0].AllOkay)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/runs/"+compared.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var full map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Equal(t, compared.RunID.String(), full["id"])
	assert.Equal(t, "api", full["source"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CMP005", decodeError(t, rec).Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CMP004", decodeError(t, rec).Code)
}

func TestLimiterStatus(t *testing.T) {
	s := newTestServer(t, testConfig())
	require.NoError(t, s.limiter.Wait(context.Background()))
	defer s.limiter.Release()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/limiter", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status pipeline.LimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, pipeline.LimiterStatus{Active: 1, Available: 1, MaxConcurrent: 2}, status)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompareRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, CompareLimit: 1}
	s := newTestServer(t, cfg)

	files := map[string]string{"nominal": "1\n", "actual": "1\n"}
	rec := s.do(compareRequest(t, nil, files))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(compareRequest(t, nil, files))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_Window(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := newRateLimiter(ctx, 2, 50*time.Millisecond)

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pipeline.ErrTooManyComparisons))
	assert.Equal(t, http.StatusNotFound, statusFor(history.ErrRunNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(errNoFile))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
