package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appvoice "github.com/storyvoice/backend/internal/application/voice"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/storyvoice/backend/internal/interfaces/http/dto"
)

// VoiceAccessService is the quota surface the voice endpoints need
type VoiceAccessService interface {
	GetVoiceAccess(ctx context.Context, accountID uuid.UUID) (*voice.VoiceAccessSummary, error)
	QuotaRemaining(ctx context.Context, accountID uuid.UUID) (int64, error)
	SetPreferredVoice(ctx context.Context, accountID uuid.UUID, voiceID string) (string, error)
}

// StoryNarrator synthesizes a story batch
type StoryNarrator interface {
	NarrateStory(ctx context.Context, input appvoice.NarrateStoryInput) (*appvoice.NarrationResult, error)
}

// VoiceHandler serves voice access, preferred voice and narration endpoints
type VoiceHandler struct {
	BaseHandler
	quota    VoiceAccessService
	narrator StoryNarrator
}

// NewVoiceHandler creates a new VoiceHandler
func NewVoiceHandler(quota VoiceAccessService, narrator StoryNarrator) *VoiceHandler {
	return &VoiceHandler{quota: quota, narrator: narrator}
}

// GetAccess godoc
// @Summary      Get voice access
// @Description  Report the voices the account can reach and the synthesis quota left this month
// @Tags         voice
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.VoiceAccessResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/voice/access [get]
func (h *VoiceHandler) GetAccess(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	summary, err := h.quota.GetVoiceAccess(ctx, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	remaining, err := h.quota.QuotaRemaining(ctx, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewVoiceAccessResponse(summary, remaining))
}

// SetPreferred godoc
// @Summary      Set preferred voice
// @Description  Store the account's narration voice. A free account may lock one voice besides the default.
// @Tags         voice
// @Accept       json
// @Produce      json
// @Param        request body dto.SetPreferredVoiceRequest true "Voice key, catalog UUID or vendor voice id"
// @Success      200 {object} dto.Response{data=dto.PreferredVoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/voice/preferred [post]
func (h *VoiceHandler) SetPreferred(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req dto.SetPreferredVoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	canonical, err := h.quota.SetPreferredVoice(c.Request.Context(), accountID, req.VoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.PreferredVoiceResponse{VoiceID: canonical})
}

// NarrateBatch godoc
// @Summary      Narrate a story
// @Description  Synthesize one batch of paragraph audio, consuming one unit of monthly quota
// @Tags         story
// @Accept       json
// @Produce      json
// @Param        request body dto.NarrateStoryRequest true "Story and voice"
// @Success      200 {object} dto.Response{data=dto.NarrationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /api/v1/story/audio/batch [post]
func (h *VoiceHandler) NarrateBatch(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}
	var req dto.NarrateStoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	storyID, err := uuid.Parse(req.StoryID)
	if err != nil {
		h.BadRequest(c, "Invalid story ID")
		return
	}

	result, err := h.narrator.NarrateStory(c.Request.Context(), appvoice.NarrateStoryInput{
		AccountID: accountID,
		StoryID:   storyID,
		VoiceID:   req.VoiceID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewNarrationResponse(
		result.Paragraphs,
		result.TotalParagraphs,
		result.WasTruncated,
		result.VoiceID,
		result.UsedProvider,
		result.PreferredProvider,
		result.ProviderStatus,
	))
}
