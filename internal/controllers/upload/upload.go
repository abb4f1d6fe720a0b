package upload

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/eric2788/vidpost/internal/services/video"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "upload")

type Controller struct {
	registry  *video.Registry
	storage   *storage.Service
	publicURL string
	extension string
}

func NewController(app *fiber.App, cfg *config.Config, registry *video.Registry, store *storage.Service) *Controller {
	uc := &Controller{
		registry:  registry,
		storage:   store,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		extension: cfg.AudioExtension,
	}

	app.Post("/api/upload", uc.signUpload)
	app.Get("/api/objects", uc.listObjects)
	app.Get("/api/objects/:key", uc.getObject)
	// authorised by the signed token, not by the session
	app.Put("/objects/:key", uc.putObject)

	return uc
}

type signUploadRequest struct {
	VideoID string `json:"videoId"`
}

type SignUploadResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// @Summary Signed upload destination
// @Description Returns a single-use url accepting one PUT of the converted audio of a video
// @Tags upload
// @Accept json
// @Produce json
// @Success 200 {object} SignUploadResponse
// @Failure 404 {string} string "Video not found"
// @Router /api/upload [post]
func (c *Controller) signUpload(ctx fiber.Ctx) error {
	var req signUploadRequest
	if err := ctx.Bind().JSON(&req); err != nil || req.VideoID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "videoId is required")
	}
	if _, err := c.registry.Get(req.VideoID); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "video not found")
	}

	key := req.VideoID + "." + c.extension
	token, expiresAt, err := c.storage.SignUpload(key)
	if err != nil {
		return parseFiberError(err)
	}
	return ctx.JSON(SignUploadResponse{
		URL:       c.publicURL + "/objects/" + url.PathEscape(key) + "?token=" + url.QueryEscape(token),
		Key:       key,
		ExpiresAt: expiresAt,
	})
}

// @Summary Push an object to a signed destination
// @Tags upload
// @Accept octet-stream
// @Param token query string true "Signed upload token"
// @Success 201 {object} storage.ObjectInfo
// @Failure 403 {string} string "Invalid or used token"
// @Router /objects/{key} [put]
func (c *Controller) putObject(ctx fiber.Ctx) error {
	key := ctx.Params("key")
	token := ctx.Query("token")
	if token == "" {
		return fiber.ErrForbidden
	}
	if err := c.storage.Redeem(token, key); err != nil {
		return parseFiberError(err)
	}

	// the body is only valid during the handler, Write consumes it before returning
	body := ctx.Body()
	info, err := c.storage.Write(ctx.Context(), key, bytes.NewReader(body), int64(len(body)), ctx.Get(fiber.HeaderContentType))
	if err != nil {
		logger.Errorf("error storing object %s: %v", key, err)
		return parseFiberError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(info)
}

// @Summary Stored objects
// @Tags upload
// @Produce json
// @Success 200 {array} storage.ObjectInfo
// @Router /api/objects [get]
func (c *Controller) listObjects(ctx fiber.Ctx) error {
	objects, err := c.storage.List()
	if err != nil {
		return parseFiberError(err)
	}
	if objects == nil {
		objects = []*storage.ObjectInfo{}
	}
	return ctx.JSON(objects)
}

// @Summary Read a stored object
// @Tags upload
// @Produce octet-stream
// @Failure 404 {string} string "Not found"
// @Router /api/objects/{key} [get]
func (c *Controller) getObject(ctx fiber.Ctx) error {
	p, info, err := c.storage.Path(ctx.Params("key"))
	if err != nil {
		return parseFiberError(err)
	}
	if info.ContentType != "" {
		ctx.Set(fiber.HeaderContentType, info.ContentType)
	}
	return ctx.SendFile(p, fiber.SendFile{ByteRange: true})
}

func parseFiberError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidToken):
		return fiber.NewError(fiber.StatusForbidden, "invalid or used upload token")
	case errors.Is(err, storage.ErrInvalidKey):
		return fiber.NewError(fiber.StatusBadRequest, "invalid object key")
	case errors.Is(err, storage.ErrObjectNotFound):
		return fiber.NewError(fiber.StatusNotFound, "object not found")
	case errors.Is(err, storage.ErrObjectBusy):
		return fiber.NewError(fiber.StatusConflict, "object is being written")
	case errors.Is(err, storage.ErrInsufficientSpace):
		return fiber.NewError(fiber.StatusInsufficientStorage, "insufficient disk space")
	default:
		logger.Errorf("unexpected error: %v", err)
		return fiber.ErrInternalServerError
	}
}
