package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appvoice "github.com/storyvoice/backend/internal/application/voice"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/infrastructure/auth"
	"github.com/storyvoice/backend/internal/infrastructure/config"
	"github.com/storyvoice/backend/internal/interfaces/http/dto"
	"github.com/storyvoice/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) GetVoiceAccess(ctx context.Context, accountID uuid.UUID) (*voice.VoiceAccessSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voice.VoiceAccessSummary), args.Error(1)
}

func (m *mockQuota) QuotaRemaining(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQuota) SetPreferredVoice(ctx context.Context, accountID uuid.UUID, voiceID string) (string, error) {
	args := m.Called(ctx, accountID, voiceID)
	return args.String(0), args.Error(1)
}

type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) NarrateStory(ctx context.Context, input appvoice.NarrateStoryInput) (*appvoice.NarrationResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appvoice.NarrationResult), args.Error(1)
}

var testJWT = auth.NewJWTService(config.JWTConfig{Secret: "handler-test-secret-at-least-32-chars", Issuer: "test"})

// newTestRouter mounts h behind the real RequestID and JWT middleware
func newTestRouter(h *VoiceHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.JWTAuth(middleware.JWTMiddlewareConfig{JWTService: testJWT}))
	api.GET("/voice/access", h.GetAccess)
	api.POST("/voice/preferred", h.SetPreferred)
	api.POST("/story/audio/batch", h.NarrateBatch)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, accountID uuid.UUID, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accountID != uuid.Nil {
		token, _, err := testJWT.IssueAccessToken(accountID, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}
