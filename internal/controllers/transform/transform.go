package transform

import (
	"errors"

	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/eric2788/vidpost/internal/services/transform"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "transform")

type Controller struct {
	transformSvc *transform.Service
}

func NewController(app *fiber.App, transformSvc *transform.Service) *Controller {
	tc := &Controller{transformSvc: transformSvc}
	app.Post("/api/ai/transform", tc.transform)
	return tc
}

type transformRequest struct {
	VideoKey string `json:"videoKey"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type transformResponse struct {
	Message message `json:"message"`
}

// @Summary Transcript to blog post
// @Description Turns the stored transcript of a video into a markdown post
// @Tags ai
// @Accept json
// @Produce json
// @Success 200 {object} transformResponse
// @Failure 404 {string} string "Transcript not found"
// @Router /api/ai/transform [post]
func (c *Controller) transform(ctx fiber.Ctx) error {
	var req transformRequest
	if err := ctx.Bind().JSON(&req); err != nil || req.VideoKey == "" {
		return fiber.NewError(fiber.StatusBadRequest, "videoKey is required")
	}

	msg, err := c.transformSvc.Transform(ctx.Context(), req.VideoKey)
	switch {
	case err == nil:
		return ctx.JSON(transformResponse{Message: message{Role: msg.Role, Content: msg.Content}})
	case errors.Is(err, transform.ErrTranscriptNotFound):
		return fiber.NewError(fiber.StatusNotFound, "transcript not found")
	case errors.Is(err, storage.ErrInvalidKey):
		return fiber.NewError(fiber.StatusBadRequest, "invalid videoKey")
	case errors.Is(err, transform.ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, "text transform is not configured")
	default:
		logger.Errorf("error transforming %s: %v", req.VideoKey, err)
		return fiber.ErrBadGateway
	}
}
