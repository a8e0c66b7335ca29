package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/middleware"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/store"
	"github.com/voiceforge/api/pkg/response"
)

type StemHandler struct {
	service   *service.StemService
	validator *validator.Validate
}

func NewStemHandler(svc *service.StemService, v *validator.Validate) *StemHandler {
	return &StemHandler{
		service:   svc,
		validator: v,
	}
}

// Separate handles POST /api/stems/separate: creates the job and dispatches
// its first upstream sub-job.
func (h *StemHandler) Separate(c *fiber.Ctx) error {
	var req model.SeparateStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	st, err := h.service.Start(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return response.NotFound(c, "Input asset not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, st)
}

// Status handles GET /api/stems/status/:jobId. Each call advances the job
// one step, so clients drive the pipeline simply by polling.
func (h *StemHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	st, err := h.service.Status(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, st)
}

// Result handles GET /api/stems/result/:jobId
func (h *StemHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Result(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotCompleted) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// History handles GET /api/stems/history/:jobId
func (h *StemHandler) History(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	snapshots, err := h.service.History(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, snapshots)
}
