package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/config"
)

// --- Mock implementations ---

type mockIngestService struct {
	ingestFn func(ctx context.Context, userID *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, userID *string, inputs []domain.SessionInput) ([]domain.UpsertResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, userID, inputs)
	}
	results := make([]domain.UpsertResult, len(inputs))
	for i := range inputs {
		results[i] = domain.UpsertResult{ID: uuid.New(), Created: true}
	}
	return results, nil
}

type mockSummaryService struct {
	summaryFn func(ctx context.Context, q domain.SummaryQuery) (*domain.Summary, error)
}

func (m *mockSummaryService) Summary(ctx context.Context, q domain.SummaryQuery) (*domain.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, q)
	}
	return &domain.Summary{AppUsage: []domain.CategoryUsage{}, Daily: []domain.DailyUsage{}, ProductivityScore: 100}, nil
}

type mockRetentionService struct {
	purgeFn func(ctx context.Context, p domain.RetentionPolicy) (int64, error)
}

func (m *mockRetentionService) Purge(ctx context.Context, p domain.RetentionPolicy) (int64, error) {
	if m.purgeFn != nil {
		return m.purgeFn(ctx, p)
	}
	return 0, errors.New("not implemented")
}

// --- Test helpers ---

const testSessionSecret = "test-secret-key-32-bytes-long!!!"

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:         "development",
		Port:           "0",
		SessionSecret:  testSessionSecret,
		SessionMaxAge:  time.Hour,
		AdminRole:      "admin",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

type testServerOpts struct {
	cfg       *config.Config
	ingest    *mockIngestService
	summaries *mockSummaryService
	retention *mockRetentionService
	options   []Option
}

func newTestServer(t *testing.T, opts testServerOpts) *Server {
	t.Helper()

	if opts.cfg == nil {
		opts.cfg = testConfig()
	}
	if opts.ingest == nil {
		opts.ingest = &mockIngestService{}
	}
	if opts.summaries == nil {
		opts.summaries = &mockSummaryService{}
	}
	if opts.retention == nil {
		opts.retention = &mockRetentionService{}
	}

	return NewServer(opts.cfg, Services{
		Ingest:    opts.ingest,
		Summaries: opts.summaries,
		Retention: opts.retention,
	}, opts.options...)
}

// signIn attaches a session cookie for userID with role to req.
func signIn(t *testing.T, srv *Server, req *http.Request, userID, role string) {
	t.Helper()

	issuer := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := srv.sessionStore.New(issuer, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyUserID] = userID
	session.Values[sessionKeyRole] = role
	require.NoError(t, session.Save(issuer, rec))

	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
