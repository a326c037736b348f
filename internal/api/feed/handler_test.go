//nolint:noctx // Test file uses http.NewRequest for simplicity
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hundredk/challenge-tracker/internal/api/middleware"
	"github.com/hundredk/challenge-tracker/internal/models"
	"github.com/hundredk/challenge-tracker/internal/service/social"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// Mock Social Service
type mockSocialService struct {
	feeds      map[uuid.UUID]*social.Feed
	getErr     error
	storeErr   error
	lastLimit  int
	lastUserID uuid.UUID
	stored     []models.SocialPost
}

func (m *mockSocialService) GetPosts(_ context.Context, userID uuid.UUID, limit int) (*social.Feed, error) {
	m.lastUserID = userID
	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	feed, ok := m.feeds[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", social.ErrProfileNotFound, userID)
	}
	return feed, nil
}

func (m *mockSocialService) StorePosts(_ context.Context, userID uuid.UUID, posts []models.SocialPost) (int64, error) {
	m.lastUserID = userID
	if m.storeErr != nil {
		return 0, m.storeErr
	}
	for _, p := range posts {
		if p.TweetID == "" {
			return 0, fmt.Errorf("%w: tweet_id is required", social.ErrInvalidPost)
		}
	}
	m.stored = append(m.stored, posts...)
	return int64(len(posts)), nil
}

func setupRouter(svc *mockSocialService, callerID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandlerWithInterfaces(svc, logger.Nop())

	router := gin.New()
	api := router.Group("/api/twitter", func(c *gin.Context) {
		if c.GetHeader("X-Test-Anonymous") == "" {
			c.Set(middleware.UserIDKey, callerID)
		}
		c.Next()
	})
	api.GET("/posts", handler.GetPosts)
	api.POST("/posts", handler.StorePosts)
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func TestGetPosts_DefaultsToCaller(t *testing.T) {
	callerID := uuid.New()
	svc := &mockSocialService{feeds: map[uuid.UUID]*social.Feed{
		callerID: {Posts: []models.SocialPost{{TweetID: "1", Content: "day 12"}}, Source: social.SourceAPI},
	}}
	router := setupRouter(svc, callerID)

	req, _ := http.NewRequest("GET", "/api/twitter/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Len(t, response["posts"], 1)
	assert.Equal(t, social.SourceAPI, response["source"])
	assert.Equal(t, callerID, svc.lastUserID)
	assert.Equal(t, social.DefaultLimit, svc.lastLimit)
}

func TestGetPosts_OtherUserWithLimit(t *testing.T) {
	callerID, otherID := uuid.New(), uuid.New()
	svc := &mockSocialService{feeds: map[uuid.UUID]*social.Feed{
		otherID: {Posts: []models.SocialPost{}, Source: social.SourceSynthesized},
	}}
	router := setupRouter(svc, callerID)

	req, _ := http.NewRequest("GET", "/api/twitter/posts?userId="+otherID.String()+"&limit=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, otherID, svc.lastUserID)
	assert.Equal(t, 3, svc.lastLimit)
}

func TestGetPosts_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		err      error
		wantCode int
	}{
		{name: "bad user id", query: "?userId=nope", wantCode: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=-1", wantCode: http.StatusBadRequest},
		{name: "profile missing", err: social.ErrProfileNotFound, wantCode: http.StatusNotFound},
		{name: "no handle", err: social.ErrNoSocialHandle, wantCode: http.StatusNotFound},
		{name: "storage failure", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSocialService{getErr: tt.err}
			router := setupRouter(svc, uuid.New())

			req, _ := http.NewRequest("GET", "/api/twitter/posts"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			response := decode(t, w)
			assert.NotEmpty(t, response["error"])
			assert.Equal(t, []interface{}{}, response["posts"])
		})
	}
}

func TestGetPosts_Unauthenticated(t *testing.T) {
	router := setupRouter(&mockSocialService{}, uuid.New())

	req, _ := http.NewRequest("GET", "/api/twitter/posts", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []interface{}{}, response["posts"])
}

func TestStorePosts(t *testing.T) {
	callerID := uuid.New()
	svc := &mockSocialService{}
	router := setupRouter(svc, callerID)

	body := `{"tweets":[{"tweet_id":"100","content":"shipped"},{"tweet_id":"101","content":"day 3"}]}`
	req, _ := http.NewRequest("POST", "/api/twitter/posts", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(2), response["inserted"])
	assert.Equal(t, callerID, svc.lastUserID)
	require.Len(t, svc.stored, 2)
	assert.Equal(t, "shipped", svc.stored[0].Content)
}

func TestStorePosts_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{name: "missing tweets", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "missing tweet id", body: `{"tweets":[{"content":"x"}]}`, wantCode: http.StatusBadRequest},
		{name: "storage failure", body: `{"tweets":[{"tweet_id":"1"}]}`, err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSocialService{storeErr: tt.err}
			router := setupRouter(svc, uuid.New())

			req, _ := http.NewRequest("POST", "/api/twitter/posts", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}
