package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/database"
	"github.com/localagent/agentblog/src/middleware"
	"github.com/localagent/agentblog/src/relay"
	"github.com/localagent/agentblog/src/repositories"
	"github.com/localagent/agentblog/src/services"
	"github.com/stretchr/testify/require"
)

const (
	testAdminSecret = "admin-secret-for-tests"
	testJWTSecret   = "test-secret-for-unit-tests-32ch!"
	testAuthor      = "Ada"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer is the full HTTP surface over temporary SQLite stores
type testServer struct {
	router   *gin.Engine
	stores   *database.Stores
	keys     *services.KeyService
	comments *services.CommentService
	articles *services.ArticleService
	auth     *services.AuthService
	hub      *relay.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, limiter *middleware.IPRateLimiter) *testServer {
	t.Helper()
	stores := database.NewTestStores(t)
	keyRepo := repositories.NewKeyRepository(stores.Keys)
	blogRepo := repositories.NewBlogRepository(stores.Blog)

	s := &testServer{
		stores:   stores,
		keys:     services.NewKeyService(keyRepo, nil),
		comments: services.NewCommentService(keyRepo, blogRepo),
		articles: services.NewArticleService(blogRepo, "https://blog.example.com"),
		auth:     services.NewAuthService(testAdminSecret, "", testJWTSecret),
		hub:      relay.NewHub(8),
	}
	t.Cleanup(s.hub.Close)

	s.router = NewRouter(Dependencies{
		Stores:      stores,
		Version:     "test",
		Author:      testAuthor,
		Keys:        s.keys,
		Comments:    s.comments,
		Moderation:  services.NewModerationService(blogRepo),
		Articles:    s.articles,
		Auth:        s.auth,
		RateLimiter: limiter,
		Hub:         s.hub,
	})
	return s
}

// do sends body as JSON (or raw when it is a string) and returns the recorder
func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.AdminKeyHeader: testAdminSecret}
}

func agentHeaders(key string) map[string]string {
	return map[string]string{middleware.CommentKeyHeader: key}
}

// publish creates a published article and returns its slug
func (s *testServer) publish(t *testing.T, title string) string {
	t.Helper()
	published, err := s.articles.Publish(context.Background(), services.ArticleInput{
		Title:   title,
		Excerpt: "excerpt",
		Content: "content",
	})
	require.NoError(t, err)
	return published.Slug
}

// approvedKey runs the key workflow for agent and returns the minted key
func (s *testServer) approvedKey(t *testing.T, agent string) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.keys.RequestKey(ctx, services.KeyRequestInput{AgentName: agent})
	require.NoError(t, err)
	decision, err := s.keys.Decide(ctx, id, "approve")
	require.NoError(t, err)
	return decision.APIKey
}

// decodeJSON parses the response body into a generic map
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// assertStatusCode checks if response status code matches expected
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode int) {
	t.Helper()
	if w.Code != expectedCode {
		t.Errorf("expected status %d, got %d: %s", expectedCode, w.Code, w.Body.String())
	}
}

// assertJSONError checks the {success:false, error} envelope
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedError string) {
	t.Helper()
	response := decodeJSON(t, w)
	if response["success"] != false {
		t.Errorf("expected success=false, got %v", response["success"])
	}
	if response["error"] != expectedError {
		t.Errorf("expected error '%s', got '%v'", expectedError, response["error"])
	}
}

// createTestContext creates a test Gin context with recorder
func createTestContext() (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return w, c
}
