package videos

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/eric2788/vidpost/internal/services/orchestrator"
	"github.com/eric2788/vidpost/internal/services/storage"
	"github.com/eric2788/vidpost/internal/services/video"
	"github.com/eric2788/vidpost/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "videos")

type Controller struct {
	registry     *video.Registry
	orchestrator *orchestrator.Orchestrator
	storage      *storage.Service
}

func NewController(
	app *fiber.App,
	registry *video.Registry,
	orch *orchestrator.Orchestrator,
	store *storage.Service,
) *Controller {
	vc := &Controller{
		registry:     registry,
		orchestrator: orch,
		storage:      store,
	}

	videos := app.Group("/api/videos")
	videos.Get("/", vc.snapshot)
	videos.Post("/", vc.addFiles)
	videos.Post("/convert", vc.startConversion)
	videos.Post("/transcription", vc.startTranscription)
	videos.Post("/transcription/finish", vc.finishTranscription)
	videos.Get("/events", vc.events)
	videos.Get("/:id/preview", vc.preview)
	videos.Put("/:id/transcript", vc.putTranscript)
	videos.Delete("/:id", vc.removeVideo)

	return vc
}

// @Summary Current batch
// @Tags videos
// @Produce json
// @Success 200 {object} video.Snapshot
// @Router /api/videos [get]
func (c *Controller) snapshot(ctx fiber.Ctx) error {
	return ctx.JSON(c.registry.Snapshot())
}

// @Summary Add videos
// @Description Multipart upload, every part under "files" becomes one video
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Success 201 {array} video.Item
// @Router /api/videos [post]
func (c *Controller) addFiles(ctx fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files submitted")
	}

	files := make([]video.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			logger.Warnf("error opening uploaded file %s: %v", h.Filename, err)
			return fiber.ErrBadRequest
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			logger.Warnf("error reading uploaded file %s: %v", h.Filename, err)
			return fiber.ErrBadRequest
		}
		files = append(files, video.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	items, err := c.registry.AddFiles(files)
	if err != nil {
		logger.Errorf("error adding videos: %v", err)
		return fiber.ErrInternalServerError
	}
	return ctx.Status(fiber.StatusCreated).JSON(items)
}

// @Summary Remove a video
// @Tags videos
// @Success 204
// @Failure 404 {string} string "Not found"
// @Failure 409 {string} string "Video is being converted"
// @Router /api/videos/{id} [delete]
func (c *Controller) removeVideo(ctx fiber.Ctx) error {
	if err := c.registry.Remove(ctx.Params("id")); err != nil {
		return parseFiberError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// @Summary Start audio conversion
// @Description Runs the batch in the background, progress is read from the snapshot or the events
// @Tags videos
// @Success 202 {object} video.Snapshot
// @Failure 409 {string} string "Already converting"
// @Router /api/videos/convert [post]
func (c *Controller) startConversion(ctx fiber.Ctx) error {
	if err := c.orchestrator.StartAsync(); err != nil {
		return parseFiberError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(c.registry.Snapshot())
}

// @Summary Mark the batch as being transcribed
// @Tags videos
// @Success 202 {object} video.Snapshot
// @Failure 409 {string} string "Already transcribing"
// @Router /api/videos/transcription [post]
func (c *Controller) startTranscription(ctx fiber.Ctx) error {
	snapshot, err := c.registry.StartTranscription()
	if err != nil {
		return parseFiberError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(snapshot)
}

// @Summary Mark the batch transcription as finished
// @Tags videos
// @Success 200 {object} video.Snapshot
// @Failure 409 {string} string "No transcription running"
// @Router /api/videos/transcription/finish [post]
func (c *Controller) finishTranscription(ctx fiber.Ctx) error {
	snapshot, err := c.registry.FinishTranscription()
	if err != nil {
		return parseFiberError(err)
	}
	return ctx.JSON(snapshot)
}

type eventsResponse struct {
	Events  []video.Event `json:"events"`
	LastSeq int64         `json:"last_seq"`
}

// @Summary Events since a sequence number
// @Tags videos
// @Produce json
// @Param since query int false "Last seen sequence"
// @Success 200 {object} eventsResponse
// @Router /api/videos/events [get]
func (c *Controller) events(ctx fiber.Ctx) error {
	since, err := strconv.ParseInt(ctx.Query("since", "0"), 10, 64)
	if err != nil || since < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid since")
	}
	bus := c.registry.Events()
	events := bus.Since(since)
	if events == nil {
		events = []video.Event{}
	}
	return ctx.JSON(eventsResponse{Events: events, LastSeq: bus.LastSeq()})
}

// @Summary Preview the source of a video
// @Tags videos
// @Produce octet-stream
// @Failure 404 {string} string "Not found"
// @Failure 410 {string} string "Source released after conversion"
// @Router /api/videos/{id}/preview [get]
func (c *Controller) preview(ctx fiber.Ctx) error {
	item, err := c.registry.Get(ctx.Params("id"))
	if err != nil {
		return parseFiberError(err)
	}
	if item.Source == nil {
		return fiber.NewError(fiber.StatusGone, "source released after conversion")
	}
	ctx.Set(fiber.HeaderContentType, utils.Ternary(item.ContentType == "", fiber.MIMEOctetStream, item.ContentType))
	return ctx.Send(item.Source)
}

// @Summary Store the transcript of a converted video
// @Tags videos
// @Accept plain
// @Success 204
// @Failure 404 {string} string "Not found"
// @Failure 409 {string} string "Video is not converted yet"
// @Router /api/videos/{id}/transcript [put]
func (c *Controller) putTranscript(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	item, err := c.registry.Get(id)
	if err != nil {
		return parseFiberError(err)
	} else if item.ConvertedAt == nil {
		return fiber.NewError(fiber.StatusConflict, "video is not converted yet")
	}

	body := ctx.Body()
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty transcript")
	}
	if _, err := c.storage.Write(ctx.Context(), id+".txt", bytes.NewReader(body), int64(len(body)), "text/plain; charset=utf-8"); err != nil {
		logger.Errorf("error storing transcript of %s: %v", id, err)
		return parseFiberError(err)
	}
	if err := c.registry.MarkTranscribed(id); err != nil {
		return parseFiberError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func parseFiberError(err error) error {
	switch {
	case video.IsItemNotFound(err):
		return fiber.NewError(fiber.StatusNotFound, "video not found")
	case errors.Is(err, video.ErrItemBusy):
		return fiber.NewError(fiber.StatusConflict, "video is being converted")
	case errors.Is(err, video.ErrAlreadyConverting):
		return fiber.NewError(fiber.StatusConflict, "conversion already running")
	case errors.Is(err, video.ErrAlreadyTranscribing), errors.Is(err, video.ErrNotTranscribing):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, video.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInsufficientSpace):
		return fiber.NewError(fiber.StatusInsufficientStorage, "insufficient disk space")
	case errors.Is(err, storage.ErrObjectBusy):
		return fiber.NewError(fiber.StatusConflict, "object is being written")
	default:
		logger.Errorf("unexpected error: %v", err)
		return fiber.ErrInternalServerError
	}
}
