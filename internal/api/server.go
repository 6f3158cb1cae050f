package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdelivered/spendsense/internal/extractor"
	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
	"github.com/insightdelivered/spendsense/internal/service"
	"github.com/insightdelivered/spendsense/internal/writer"
)

// multipartOverhead is the room left above the document limit for the
// multipart envelope, so oversized documents reach the service check.
const multipartOverhead = 1 << 20

// ServerConfig holds the settings NewApp needs.
type ServerConfig struct {
	CorsAllowedOrigins string
	MaxUploadBytes     int64
}

// NewApp builds the fiber app with middleware, API routes and /metrics.
func NewApp(cfg ServerConfig, h *Handler, gatherer prometheus.Gatherer) *fiber.App {
	bodyLimit := 4 * 1024 * 1024
	if cfg.MaxUploadBytes > 0 {
		bodyLimit = int(cfg.MaxUploadBytes) + multipartOverhead
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler(h.log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	h.RegisterRoutes(app.Group("/api"))

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return app
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrNotProcessed):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrSessionBusy):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrDocumentTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, writer.ErrUnknownKind):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedFormat), errors.Is(err, models.ErrExtraction),
		errors.Is(err, extractor.ErrUnreadable):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrProcessingTimeout):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			log.Error("api", "request failed", map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"error":  err,
			})
			msg = models.ErrInternal.Error()
		}
		return c.Status(code).JSON(ErrorResponse{Success: false, Error: msg})
	}
}
