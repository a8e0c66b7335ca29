package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/middleware"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/pkg/response"
)

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Recording handles POST /api/upload/recording (multipart form, field "file")
func (h *UploadHandler) Recording(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Audio file is required", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ValidationError(c, "Could not read uploaded file", nil)
	}
	defer file.Close()

	result, err := h.service.UploadRecording(c.Context(), middleware.GetUserID(c), file, fileHeader.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}
