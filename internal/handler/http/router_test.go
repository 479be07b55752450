package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type fakeDecisions struct {
	decision attendance.Decision
	err      error
	commits  atomic.Int32
	query    attendance.HasRecordQuery
	exists   bool
	record   attendance.RecordResponse
}

func (f *fakeDecisions) Preview(ctx context.Context, req attendance.PunchRequest) (attendance.Decision, error) {
	d := f.decision
	d.Mode = attendance.ModePreview
	return d, f.err
}

func (f *fakeDecisions) Commit(ctx context.Context, req attendance.PunchRequest) (attendance.Decision, error) {
	f.commits.Add(1)
	d := f.decision
	d.Mode = attendance.ModeCommit
	return d, f.err
}

func (f *fakeDecisions) HasRecord(ctx context.Context, query attendance.HasRecordQuery) (attendance.HasRecordResponse, error) {
	f.query = query
	if err := query.Validate(); err != nil {
		return attendance.HasRecordResponse{}, err
	}
	return attendance.HasRecordResponse{
		PersonID:  query.PersonID,
		Date:      query.Date,
		CheckType: attendance.CheckType(query.CheckType),
		Exists:    f.exists,
	}, nil
}

func (f *fakeDecisions) GetRecord(ctx context.Context, id string) (attendance.RecordResponse, error) {
	if f.record.ID != id {
		return attendance.RecordResponse{}, attendance.ErrRecordNotFound
	}
	return f.record, nil
}

type fakeCatalog struct {
	invalidated atomic.Int32
	report      rule.ConflictReport
	err         error
}

func (f *fakeCatalog) Snapshot(ctx context.Context) (rule.Snapshot, error) {
	return rule.Snapshot{}, nil
}

func (f *fakeCatalog) Person(ctx context.Context, id int64) (rule.Person, error) {
	return rule.Person{}, rule.ErrPersonNotFound
}

func (f *fakeCatalog) Invalidate() { f.invalidated.Add(1) }

func (f *fakeCatalog) Conflicts(ctx context.Context) (rule.ConflictReport, error) {
	return f.report, f.err
}

type testServer struct {
	router    *chi.Mux
	jwt       jwt.Service
	hub       *sse.Hub
	decisions *fakeDecisions
	catalog   *fakeCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		jwt:       jwt.NewJWTService(handlerTestSecret, time.Hour),
		hub:       sse.NewHub(4),
		decisions: &fakeDecisions{},
		catalog:   &fakeCatalog{},
	}
	ts.router = NewRouter(
		RouterOptions{
			Env:                "test",
			Version:            "test",
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			LogLevel:           slog.LevelError,
			Metrics:            metrics.New().Handler(),
		},
		ts.jwt,
		NewPunchHandler(ts.decisions, ts.jwt, ts.hub),
		NewRecordHandler(ts.decisions),
		NewCatalogHandler(ts.catalog),
		NewTokenHandler(ts.jwt),
	)
	return ts
}

func (ts *testServer) token(t *testing.T, role jwt.Role) string {
	t.Helper()
	token, _, err := ts.jwt.GenerateAccessToken("test-"+string(role), role)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func punchBody() map[string]interface{} {
	return map[string]interface{}{
		"person_id":   10,
		"confidence":  0.97,
		"captured_at": "2024-01-15T09:20:00+07:00",
	}
}

func acceptedDecision() attendance.Decision {
	ruleID := int64(1)
	recordID := "0190f5a4-7b8c-7b4a-8a2b-6b8b8b8b8b8b"
	personID := int64(10)
	return attendance.Decision{
		PersonID:    &personID,
		RuleID:      &ruleID,
		RuleName:    "Office",
		CheckType:   attendance.CheckIn,
		Date:        "2024-01-15",
		LocalTime:   "09:20:00",
		IsWorkday:   true,
		IsLate:      true,
		MinutesLate: 20,
		Accepted:    true,
		RecordID:    &recordID,
	}
}

func TestCommit_Created(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.decision = acceptedDecision()

	rec := ts.do(t, http.MethodPost, "/api/v1/punches", ts.token(t, jwt.RoleDevice), punchBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var decision attendance.Decision
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.Equal(t, attendance.ModeCommit, decision.Mode)
	assert.Equal(t, attendance.CheckIn, decision.CheckType)
	assert.True(t, decision.IsLate)
	assert.Equal(t, 20, decision.MinutesLate)
	assert.Equal(t, int32(1), ts.decisions.commits.Load())
}

func TestPreview_OK(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.decision = acceptedDecision()

	rec := ts.do(t, http.MethodPost, "/api/v1/punches/preview", ts.token(t, jwt.RoleDevice), punchBody())

	assert.Equal(t, http.StatusOK, rec.Code)
	var decision attendance.Decision
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &decision))
	assert.Equal(t, attendance.ModePreview, decision.Mode)
	assert.Zero(t, ts.decisions.commits.Load())
}

func TestCommit_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unidentified", attendance.ErrUnidentified, http.StatusUnprocessableEntity, "UNIDENTIFIED"},
		{"too early", &attendance.TooEarlyError{Earliest: "07:00:00"}, http.StatusUnprocessableEntity, "TOO_EARLY"},
		{"duplicate", attendance.ErrDuplicatePunch, http.StatusConflict, "ALREADY_PUNCHED"},
		{"configuration", fmt.Errorf("%w: %w", attendance.ErrConfiguration, rule.ErrNoDefaultRule), http.StatusInternalServerError, "CONFIGURATION_ERROR"},
		{"storage", fmt.Errorf("%w: connection refused", attendance.ErrStorageUnavailable), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
		{"validation", validator.ValidationErrors{{Field: "captured_at", Message: "captured_at is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.decisions.decision = attendance.Decision{CheckType: attendance.CheckIn, Date: "2024-01-15"}
			ts.decisions.err = tc.err

			rec := ts.do(t, http.MethodPost, "/api/v1/punches", ts.token(t, jwt.RoleDevice), punchBody())

			assert.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestCommit_ErrorKeepsDecision(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.decision = attendance.Decision{CheckType: attendance.CheckIn, Date: "2024-01-15", LocalTime: "06:10:00"}
	ts.decisions.err = &attendance.TooEarlyError{Earliest: "07:00:00"}

	rec := ts.do(t, http.MethodPost, "/api/v1/punches", ts.token(t, jwt.RoleDevice), punchBody())

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "07:00:00")

	var decision attendance.Decision
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.Equal(t, "06:10:00", decision.LocalTime)
	assert.False(t, decision.Accepted)
}

func TestCommit_InvalidBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/punches", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+ts.token(t, jwt.RoleDevice))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ts.decisions.commits.Load())
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", "", punchBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", "not-a-jwt", punchBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stream token is not an access token", func(t *testing.T) {
		token, _, err := ts.jwt.GenerateStreamToken("dashboard")
		require.NoError(t, err)
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", token, punchBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		token := ts.token(t, jwt.RoleDevice)
		_, err := ts.jwt.RevokeToken(token)
		require.NoError(t, err)
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", token, punchBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("sweeper cannot punch", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", ts.token(t, jwt.RoleSweeper), punchBody())
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("device cannot audit", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/rules/conflicts", ts.token(t, jwt.RoleDevice), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin can punch", func(t *testing.T) {
		ts.decisions.decision = acceptedDecision()
		rec := ts.do(t, http.MethodPost, "/api/v1/punches", ts.token(t, jwt.RoleAdmin), punchBody())
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestHasRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.exists = true

	rec := ts.do(t, http.MethodGet, "/api/v1/persons/10/records?date=2024-01-15&check_type=checkin", ts.token(t, jwt.RoleSweeper), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got attendance.HasRecordResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.True(t, got.Exists)
	assert.Equal(t, int64(10), got.PersonID)
	assert.Equal(t, attendance.CheckIn, got.CheckType)
	assert.Equal(t, "2024-01-15", ts.decisions.query.Date)
}

func TestHasRecord_Invalid(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, jwt.RoleSweeper)

	rec := ts.do(t, http.MethodGet, "/api/v1/persons/abc/records?date=2024-01-15&check_type=checkin", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/persons/10/records?date=15-01-2024&check_type=lunch", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Error.Details, "date")
	assert.Contains(t, env.Error.Details, "check_type")
}

func TestGetRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.record = attendance.RecordResponse{
		ID:        "0190f5a4-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		PersonID:  10,
		CheckType: attendance.CheckOut,
	}
	token := ts.token(t, jwt.RoleAdmin)

	rec := ts.do(t, http.MethodGet, "/api/v1/records/0190f5a4-7b8c-7b4a-8a2b-6b8b8b8b8b8b", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got attendance.RecordResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, attendance.CheckOut, got.CheckType)

	rec = ts.do(t, http.MethodGet, "/api/v1/records/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.report = rule.ConflictReport{
		CheckedAt: "2024-01-15T00:00:00Z",
		Errors:    1,
		Conflicts: []rule.Conflict{{
			Type:     rule.ConflictMultipleDefaults,
			Severity: rule.SeverityError,
			Message:  "2 active default rules",
			RuleIDs:  []int64{1, 2},
		}},
	}
	token := ts.token(t, jwt.RoleAdmin)

	rec := ts.do(t, http.MethodGet, "/api/v1/rules/conflicts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report rule.ConflictReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &report))
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, rule.ConflictMultipleDefaults, report.Conflicts[0].Type)

	rec = ts.do(t, http.MethodPost, "/api/v1/catalog/invalidate", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), ts.catalog.invalidated.Load())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStream_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/punches/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/punches/stream?token="+ts.token(t, jwt.RoleAdmin), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStream_DeliversCommittedPunches(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	tokenRec := ts.do(t, http.MethodPost, "/api/v1/punches/stream-token", ts.token(t, jwt.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, tokenRec.Code)
	var streamToken streamTokenResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, tokenRec).Data, &streamToken))
	require.NotEmpty(t, streamToken.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/punches/stream?token="+streamToken.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	decision := acceptedDecision()
	delivered := ts.hub.Publish(sse.Event{Topic: sse.TopicPunches, Event: "punch.committed", Data: decision})
	require.Equal(t, 1, delivered)

	name, data := readEvent()
	assert.Equal(t, "punch.committed", name)
	var got attendance.Decision
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, *decision.RecordID, *got.RecordID)
}

func TestRevokeToken(t *testing.T) {
	ts := newTestServer(t)
	ts.decisions.decision = acceptedDecision()
	admin := ts.token(t, jwt.RoleAdmin)

	// minted in the same second for the same subject and role
	revoked := ts.token(t, jwt.RoleDevice)
	sibling := ts.token(t, jwt.RoleDevice)
	require.NotEqual(t, revoked, sibling)

	rec := ts.do(t, http.MethodPost, "/api/v1/tokens/revoke", admin, map[string]string{"token": revoked})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got revokeTokenResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.True(t, got.Revoked)
	assert.NotEmpty(t, got.TokenID)

	rec = ts.do(t, http.MethodPost, "/api/v1/punches", revoked, punchBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/punches", sibling, punchBody())
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/rules/conflicts", sibling, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRevokeToken_Invalid(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, jwt.RoleAdmin)

	rec := ts.do(t, http.MethodPost, "/api/v1/tokens/revoke", admin, map[string]string{"token": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/tokens/revoke", admin, map[string]string{"token": "not-a-jwt"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/tokens/revoke", ts.token(t, jwt.RoleDevice), map[string]string{"token": admin})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
