package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krshsl/skillcards/backend/assessment"
	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/repository"
	ws "github.com/krshsl/skillcards/backend/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	repo    *repository.GORMRepository
	handler http.Handler
	hub     *ws.Hub
}

func setupTestServer(t *testing.T, config *Config) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	repo := repository.NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	// No collaborators: template questions and heuristic scoring
	service := assessment.NewService(repo, assessment.Options{Publisher: hub})
	if config == nil {
		config = &Config{}
	}
	srv := NewServer(config, db, service, hub, Capabilities{CardStore: "none", LockBackend: "memory"})
	return &testServer{repo: repo, handler: srv.SetupRoutes(), hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func startInterview(t *testing.T, ts *testServer, skills string, perSkill int) assessment.StartResult {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/interviews/start", StartInterviewRequest{
		CandidateName:     "Jane",
		Skills:            skills,
		SkillArea:         "data",
		QuestionsPerSkill: perSkill,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started assessment.StartResult
	decodeBody(t, rec, &started)
	return started
}

func TestInterviewLifecycleOverHTTP(t *testing.T) {
	ts := setupTestServer(t, nil)
	started := startInterview(t, ts, "SQL, Excel", 1)
	assert.Equal(t, 2, started.TotalQuestions)
	assert.Equal(t, []string{"SQL", "Excel"}, started.Skills)

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/interviews/%d/questions", started.InterviewID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var set assessment.QuestionSet
	decodeBody(t, rec, &set)
	require.Len(t, set.Questions, 2)
	require.Len(t, set.Skills, 2)
	assert.Equal(t, 0, set.Answered)

	answer := strings.Repeat("word ", 30)
	for _, q := range set.Questions {
		rec = ts.do(t, http.MethodPost, "/api/v1/interviews/submit-response", SubmitResponseRequest{
			InterviewID: started.InterviewID,
			QuestionID:  q.ID,
			Response:    answer,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	var submitted assessment.SubmitResult
	decodeBody(t, rec, &submitted)
	assert.True(t, submitted.Progress.Completed)
	assert.Equal(t, 6.0, submitted.Evaluation.Score)
	assert.NotEmpty(t, submitted.Evaluation.Error)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/interviews/%d/results", started.InterviewID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results assessment.Results
	decodeBody(t, rec, &results)
	assert.Equal(t, models.StatusCompleted, results.Status)
	require.Len(t, results.SkillRatings, 2)
	assert.Equal(t, 3, results.OverallRating.StarRating)
	assert.Nil(t, results.CardGeneration)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/interviews/%d/skills/SQL/rating", started.InterviewID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var update assessment.SkillRatingUpdate
	decodeBody(t, rec, &update)
	assert.True(t, update.NewlyRated)

	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListInterviewsResponse
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, int64(2), list.Interviews[0].TotalQuestions)
}

func TestInterviewErrorMapping(t *testing.T) {
	ts := setupTestServer(t, nil)

	pending := &models.Interview{CandidateName: "Jane"}
	require.NoError(t, ts.repo.CreateInterview(context.Background(), pending))

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"missing candidate name", http.MethodPost, "/api/v1/interviews/start", StartInterviewRequest{Skills: "SQL"}, http.StatusBadRequest},
		{"too many questions per skill", http.MethodPost, "/api/v1/interviews/start", StartInterviewRequest{CandidateName: "J", QuestionsPerSkill: 50}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/interviews/submit-response", "not an object", http.StatusBadRequest},
		{"empty response", http.MethodPost, "/api/v1/interviews/submit-response", SubmitResponseRequest{InterviewID: 1, QuestionID: 1}, http.StatusBadRequest},
		{"unknown interview", http.MethodGet, "/api/v1/interviews/404/questions", nil, http.StatusNotFound},
		{"unknown interview results", http.MethodGet, "/api/v1/interviews/404/results", nil, http.StatusNotFound},
		{"invalid id", http.MethodGet, "/api/v1/interviews/abc/results", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/interviews/list?limit=-1", nil, http.StatusBadRequest},
		{"pending interview", http.MethodPost, "/api/v1/interviews/submit-response",
			SubmitResponseRequest{InterviewID: pending.ID, QuestionID: 1, Response: "x"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestResetUnknownSkill(t *testing.T) {
	ts := setupTestServer(t, nil)
	started := startInterview(t, ts, "SQL", 1)

	rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/interviews/%d/skills/Go/rating", started.InterviewID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetSkillWithEscapedSlash(t *testing.T) {
	ts := setupTestServer(t, nil)
	started := startInterview(t, ts, "CI/CD, SQL", 1)

	rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/interviews/%d/skills/CI%%2FCD/rating", started.InterviewID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var update assessment.SkillRatingUpdate
	decodeBody(t, rec, &update)
	assert.Equal(t, "CI/CD", update.Skill)
	assert.Equal(t, 1, update.TotalQuestions)
}

func TestAuthMiddleware(t *testing.T) {
	config := &Config{JWT: JWTConfig{Secret: "test-secret"}}
	ts := setupTestServer(t, config)

	rec := ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewAuthService("other-secret").IssueToken("u1", "admin", time.Minute)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := NewAuthService("test-secret").IssueToken("u1", "admin", -time.Minute)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := NewAuthService("test-secret").IssueToken("u1", "admin", time.Minute)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/interviews/list", nil, "Cookie", "access_token="+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Ambient routes stay public
	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyAccessTokenClaims(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueToken("reviewer", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := auth.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	decodeBody(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "up", health.Database)
	assert.Equal(t, "memory", health.Capabilities.LockBackend)
	assert.False(t, health.Capabilities.CardImages)

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skillcards_http_requests_total")
}

func TestProgressStream(t *testing.T) {
	ts := setupTestServer(t, &Config{WebSocket: WebSocketConfig{AllowedOrigins: "http://localhost:5173"}})
	started := startInterview(t, ts, "SQL", 1)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": []string{"http://localhost:5173"}}
	_, resp, err := websocket.DefaultDialer.Dial(base+"/api/v1/interviews/404/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial(fmt.Sprintf("%s/api/v1/interviews/%d/ws", base, started.InterviewID),
		http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/api/v1/interviews/%d/ws", base, started.InterviewID), header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Subscribers(started.InterviewID) == 1 }, time.Second, 10*time.Millisecond)

	rec := ts.do(t, http.MethodPost, "/api/v1/interviews/submit-response", SubmitResponseRequest{
		InterviewID: started.InterviewID,
		QuestionID:  started.Questions[0].ID,
		Response:    "a short answer",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event assessment.ProgressEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "progress", event.Type)
	assert.Equal(t, started.Questions[0].ID, event.QuestionID)
	assert.True(t, event.Progress.Completed)
	require.NotNil(t, event.SkillUpdate)
	assert.True(t, event.SkillUpdate.NewlyRated)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, &Config{Server: ServerConfig{CORSOrigins: "http://localhost:5173, https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/interviews/start", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/interviews/start", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
