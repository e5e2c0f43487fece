package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storyvoice/backend/internal/domain/voice"
)

// AudioReader reads stored narration audio by key
type AudioReader interface {
	GetAudio(ctx context.Context, key string) (*voice.Audio, error)
}

// AudioHandler serves audio from stores that have no public URL of their own
type AudioHandler struct {
	BaseHandler
	reader AudioReader
}

// NewAudioHandler creates a new AudioHandler
func NewAudioHandler(reader AudioReader) *AudioHandler {
	return &AudioHandler{reader: reader}
}

// Get godoc
// @Summary      Download narration audio
// @Description  Stream a stored paragraph when the audio store has no public URL
// @Tags         audio
// @Produce      audio/mpeg
// @Produce      audio/wav
// @Param        key path string true "Audio object key"
// @Success      200 {file} binary
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /api/v1/audio/{key} [get]
func (h *AudioHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		h.BadRequest(c, "Invalid audio key")
		return
	}

	audio, err := h.reader.GetAudio(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// Keys are written once per story, voice and paragraph
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, audio.ContentType, audio.Data)
}
