package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storyvoice/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator_VoiceID(t *testing.T) {
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.POST("/voice", func(c *gin.Context) {
		var req dto.NarrateStoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{"catalog key", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11","voiceId":"luna"}`, http.StatusOK, ""},
		{"catalog uuid", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11","voiceId":"0b7a4d56-1c2e-4f3a-8b9c-0d1e2f3a4b5c"}`, http.StatusOK, ""},
		{"vendor id", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11","voiceId":"EXAVITQu4vr4xnSDxMaL"}`, http.StatusOK, ""},
		{"path traversal", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11","voiceId":"../etc"}`, http.StatusBadRequest, "voiceId"},
		{"spaces", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11","voiceId":"two words"}`, http.StatusBadRequest, "voiceId"},
		{"missing voice", `{"storyId":"6f1c1d1e-8a55-4a8e-9d7c-3d0c7a9b2f11"}`, http.StatusBadRequest, "voiceId"},
		{"bad story id", `{"storyId":"story-1","voiceId":"luna"}`, http.StatusBadRequest, "storyId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve(router, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantField == "" {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)
		})
	}
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	router := gin.New()
	router.POST("/voice", func(c *gin.Context) {
		var req dto.SetPreferredVoiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(`{"voiceId":`))
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "details")
}
