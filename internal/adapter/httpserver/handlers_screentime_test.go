package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/correlation"
	apperrors "github.com/pscheid92/screentime/internal/platform/errors"
)

const screenTimePath = "/api/wellness/screentime"

const validSession = `{
	"sessionId": "c7d2a4be-1f0e-4b7a-9a57-2f3c9b1e0d11",
	"url": "https://school.example/math",
	"title": "Fractions",
	"category": "education",
	"startedAt": "2026-03-02T09:00:00Z",
	"endedAt": "2026-03-02T09:10:00Z",
	"duration": 600
}`

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeInvalidPayload(t *testing.T, rec *httptest.ResponseRecorder) invalidPayloadResponse {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp invalidPayloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "invalid_payload", resp.Error)
	return resp
}

// --- POST /api/wellness/screentime ---

func TestHandleIngest_SingleObject(t *testing.T) {
	id := uuid.New()
	var gotUser *string
	var gotInputs []domain.SessionInput
	ingest := &mockIngestService{ingestFn: func(_ context.Context, userID *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error) {
		gotUser = userID
		gotInputs = inputs
		return []domain.UpsertResult{{ID: id, Created: true}}, nil
	}}
	srv := newTestServer(t, testServerOpts{ingest: ingest})

	rec := serve(srv, postJSON(screenTimePath, validSession))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, id.String(), resp.Session.ID)
	assert.Equal(t, []ingestedSession{{ID: id.String(), Created: true}}, resp.Sessions)

	assert.Nil(t, gotUser)
	require.Len(t, gotInputs, 1)
	assert.Equal(t, "c7d2a4be-1f0e-4b7a-9a57-2f3c9b1e0d11", gotInputs[0].SessionID)
	assert.Equal(t, "education", gotInputs[0].Category)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), gotInputs[0].StartedAt)
	assert.Equal(t, 600, gotInputs[0].Duration)
}

func TestHandleIngest_ArrayWithSignedInUser(t *testing.T) {
	first, last := uuid.New(), uuid.New()
	var gotUser *string
	ingest := &mockIngestService{ingestFn: func(_ context.Context, userID *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error) {
		gotUser = userID
		require.Len(t, inputs, 2)
		return []domain.UpsertResult{{ID: first, Created: true}, {ID: last, Created: false}}, nil
	}}
	srv := newTestServer(t, testServerOpts{ingest: ingest})

	req := postJSON(screenTimePath, "["+validSession+","+validSession+"]")
	signIn(t, srv, req, "student-42", "student")
	rec := serve(srv, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, last.String(), resp.Session.ID)
	assert.Len(t, resp.Sessions, 2)
	assert.False(t, resp.Sessions[1].Created)

	require.NotNil(t, gotUser)
	assert.Equal(t, "student-42", *gotUser)
}

func TestHandleIngest_AnonymizedFlagPassedThrough(t *testing.T) {
	var got domain.SessionInput
	ingest := &mockIngestService{ingestFn: func(_ context.Context, _ *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error) {
		got = inputs[0]
		return []domain.UpsertResult{{ID: uuid.New(), Created: true}}, nil
	}}
	srv := newTestServer(t, testServerOpts{ingest: ingest})

	body := `{"startedAt":"2026-03-02T09:00:00Z","endedAt":"2026-03-02T09:00:30Z","duration":30,"anonymized":true}`
	rec := serve(srv, postJSON(screenTimePath, body))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, got.Anonymized)
	assert.Empty(t, got.SessionID)
}

func TestHandleIngest_NegativeDuration(t *testing.T) {
	ingest := &mockIngestService{ingestFn: func(context.Context, *string, []domain.SessionInput) ([]domain.UpsertResult, error) {
		t.Fatal("invalid payload must not reach the service")
		return nil, nil
	}}
	srv := newTestServer(t, testServerOpts{ingest: ingest})

	body := strings.Replace(validSession, `"duration": 600`, `"duration": -5`, 1)
	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, body)))

	assert.Contains(t, resp.Details, "duration")
	assert.Contains(t, resp.Details["duration"], "0 or greater")
}

func TestHandleIngest_MissingRequiredFields(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, `{"url":"https://x.example"}`)))

	assert.Contains(t, resp.Details, "startedAt")
	assert.Contains(t, resp.Details, "endedAt")
	assert.Contains(t, resp.Details, "duration")
}

func TestHandleIngest_ArrayErrorsKeyedByIndex(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	body := "[" + validSession + `,{"startedAt":"2026-03-02T09:00:00Z","duration":1}]`
	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, body)))

	assert.Equal(t, []string{"1.endedAt"}, keys(resp.Details))
}

func TestHandleIngest_FieldTooLong(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	body := strings.Replace(validSession, `"category": "education"`, `"category": "`+strings.Repeat("x", 65)+`"`, 1)
	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, body)))

	assert.Contains(t, resp.Details, "category")
}

func TestHandleIngest_EmptyArray(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, `[]`)))
	assert.Contains(t, resp.Details, "body")
}

func TestHandleIngest_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	for _, body := range []string{``, `{`, `{"startedAt":"yesterday"}`, `"text"`} {
		t.Run(body, func(t *testing.T) {
			resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, body)))
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestHandleIngest_WrongFieldType(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	body := strings.Replace(validSession, `"duration": 600`, `"duration": "600"`, 1)
	resp := decodeInvalidPayload(t, serve(srv, postJSON(screenTimePath, body)))
	assert.Contains(t, resp.Details, "duration")
}

func TestHandleIngest_StoreFailureIsGeneric500(t *testing.T) {
	ingest := &mockIngestService{ingestFn: func(context.Context, *string, []domain.SessionInput) ([]domain.UpsertResult, error) {
		return nil, errors.New("pq: connection reset by peer")
	}}
	srv := newTestServer(t, testServerOpts{ingest: ingest})

	rec := serve(srv, postJSON(screenTimePath, validSession))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeInternal, resp.Type)
	assert.Nil(t, resp.Context)
}

// --- GET /api/wellness/screentime ---

func TestHandleSummary_Defaults(t *testing.T) {
	want := &domain.Summary{
		DailyAverage:      40,
		AppUsage:          []domain.CategoryUsage{{Category: "education", Minutes: 280}},
		ProductivityScore: 100,
		Daily:             []domain.DailyUsage{{Date: "2026-03-02", Minutes: 280, Sessions: 3}},
	}
	var got domain.SummaryQuery
	summaries := &mockSummaryService{summaryFn: func(_ context.Context, q domain.SummaryQuery) (*domain.Summary, error) {
		got = q
		return want, nil
	}}
	srv := newTestServer(t, testServerOpts{summaries: summaries})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SummaryQuery{Days: 7}, got)

	var body domain.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, *want, body)
	assert.Contains(t, rec.Body.String(), `"dailyAverage":40`)
	assert.Contains(t, rec.Body.String(), `"productivityScore":100`)
}

func TestHandleSummary_InvalidDays(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	for _, days := range []string{"0", "91", "-1", "week"} {
		t.Run(days, func(t *testing.T) {
			rec := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath+"?days="+days, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleSummary_ScopeMe(t *testing.T) {
	var got domain.SummaryQuery
	summaries := &mockSummaryService{summaryFn: func(_ context.Context, q domain.SummaryQuery) (*domain.Summary, error) {
		got = q
		return &domain.Summary{}, nil
	}}
	srv := newTestServer(t, testServerOpts{summaries: summaries})

	req := httptest.NewRequest(http.MethodGet, screenTimePath+"?days=30&scope=me", nil)
	signIn(t, srv, req, "student-42", "student")
	rec := serve(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, got.Days)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "student-42", *got.UserID)
}

func TestHandleSummary_ScopeMeRequiresSession(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath+"?scope=me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSummary_UnknownScope(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath+"?scope=everyone", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSummary_ServiceError(t *testing.T) {
	summaries := &mockSummaryService{summaryFn: func(context.Context, domain.SummaryQuery) (*domain.Summary, error) {
		return nil, errors.New("query timeout")
	}}
	srv := newTestServer(t, testServerOpts{summaries: summaries})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "query timeout")
}

// --- POST /api/wellness/screentime/retention ---

const retentionPath = screenTimePath + "/retention"

func TestHandleRetention_RequiresSession(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	rec := serve(srv, postJSON(retentionPath, `{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRetention_RequiresAdmin(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	req := postJSON(retentionPath, `{}`)
	signIn(t, srv, req, "teacher-1", "teacher")
	rec := serve(srv, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleRetention_DefaultPolicy(t *testing.T) {
	var got domain.RetentionPolicy
	retention := &mockRetentionService{purgeFn: func(_ context.Context, p domain.RetentionPolicy) (int64, error) {
		got = p
		return 12, nil
	}}
	srv := newTestServer(t, testServerOpts{retention: retention})

	req := httptest.NewRequest(http.MethodPost, retentionPath, nil)
	signIn(t, srv, req, "admin-1", "admin")
	rec := serve(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":12}`, rec.Body.String())
	assert.Equal(t, domain.RetentionPolicy{Days: 90, AnonymizedOnly: true}, got)
}

func TestHandleRetention_ExplicitPolicy(t *testing.T) {
	var got domain.RetentionPolicy
	retention := &mockRetentionService{purgeFn: func(_ context.Context, p domain.RetentionPolicy) (int64, error) {
		got = p
		return 1, nil
	}}
	srv := newTestServer(t, testServerOpts{retention: retention})

	req := postJSON(retentionPath, `{"days":30,"anonymizedOnly":false}`)
	signIn(t, srv, req, "admin-1", "admin")
	rec := serve(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RetentionPolicy{Days: 30, AnonymizedOnly: false}, got)
}

func TestHandleRetention_InvalidPayload(t *testing.T) {
	retention := &mockRetentionService{purgeFn: func(_ context.Context, p domain.RetentionPolicy) (int64, error) {
		return 0, p.Validate()
	}}
	srv := newTestServer(t, testServerOpts{retention: retention})

	for _, body := range []string{`{"days":0}`, `{"days":3651}`, `{"days":"ninety"}`, `{`} {
		t.Run(body, func(t *testing.T) {
			req := postJSON(retentionPath, body)
			signIn(t, srv, req, "admin-1", "admin")
			rec := serve(srv, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"invalid_payload"}`, rec.Body.String())
		})
	}
}

func TestHandleRetention_PurgeFailure(t *testing.T) {
	retention := &mockRetentionService{purgeFn: func(context.Context, domain.RetentionPolicy) (int64, error) {
		return 0, errors.New("deadlock detected")
	}}
	srv := newTestServer(t, testServerOpts{retention: retention})

	req := postJSON(retentionPath, `{}`)
	signIn(t, srv, req, "admin-1", "admin")
	rec := serve(srv, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadlock")
}

// --- cross-cutting ---

func TestScreenTimeRoutes_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.01
	cfg.RateLimitBurst = 1
	srv := newTestServer(t, testServerOpts{cfg: cfg})

	first := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath, nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := serve(srv, httptest.NewRequest(http.MethodGet, screenTimePath, nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, second.Body.String())
}

func TestScreenTimeRoutes_EchoCorrelationID(t *testing.T) {
	srv := newTestServer(t, testServerOpts{})

	req := httptest.NewRequest(http.MethodGet, screenTimePath, nil)
	req.Header.Set(correlation.Header, "deadbeef")
	rec := serve(srv, req)

	assert.Equal(t, "deadbeef", rec.Header().Get(correlation.Header))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
