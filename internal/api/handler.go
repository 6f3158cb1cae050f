package api

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
	"github.com/insightdelivered/spendsense/internal/service"
	"github.com/insightdelivered/spendsense/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// UploadResponse is the JSON response from the /api/upload endpoint.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Message   string `json:"message"`
}

// StatusResponse is the JSON response from the /api/status endpoint.
type StatusResponse struct {
	SessionID string       `json:"session_id"`
	Filename  string       `json:"filename"`
	State     string       `json:"state"`
	Phase     models.Phase `json:"phase,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	svc     *service.StatementService
	log     logger.Logger
	limiter *rate.Limiter
}

// NewHandler creates the handlers. A nil limiter disables rate limiting of
// /api/process.
func NewHandler(svc *service.StatementService, log logger.Logger, limiter *rate.Limiter) *Handler {
	return &Handler{svc: svc, log: log, limiter: limiter}
}

// NewLimiter returns a token bucket allowing perSecond process requests
// with the given burst, or nil when perSecond is not positive.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RegisterRoutes sets up the API routes under r.
func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Post("/upload", h.Upload)
	r.Post("/process/:id", h.rateLimit, h.Process)
	r.Get("/status/:id", h.Status)
	r.Get("/result/:id", h.Result)
	r.Delete("/session/:id", h.Discard)
	r.Post("/export/:id", h.Export)
}

func (h *Handler) rateLimit(c *fiber.Ctx) error {
	if h.limiter != nil && !h.limiter.Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many processing requests, retry shortly")
	}
	return c.Next()
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "spendsense",
		"version": Version,
	})
}

func (h *Handler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	sess, err := h.svc.Upload(header.Filename, data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(UploadResponse{
		SessionID: sess.ID,
		Filename:  sess.Filename,
		Message:   "File uploaded. Call /api/process/" + sess.ID + " to extract transactions.",
	})
}

func (h *Handler) Process(c *fiber.Ctx) error {
	result, err := h.svc.Process(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) Status(c *fiber.Ctx) error {
	sess, err := h.svc.Status(c.Params("id"))
	if err != nil {
		return err
	}
	resp := StatusResponse{
		SessionID: sess.ID,
		Filename:  sess.Filename,
		State:     string(sess.State),
		Phase:     sess.Phase,
	}
	if sess.Err != nil {
		resp.Error = sess.Err.Error()
	}
	return c.JSON(resp)
}

func (h *Handler) Result(c *fiber.Ctx) error {
	result, err := h.svc.Result(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) Discard(c *fiber.Ctx) error {
	if err := h.svc.Discard(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) Export(c *fiber.Ctx) error {
	kind, err := writer.ParseKind(c.FormValue("export_type", string(writer.KindExcel)))
	if err != nil {
		return err
	}
	includeSummary, err := strconv.ParseBool(c.FormValue("include_summary", "true"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "include_summary must be true or false")
	}

	data, filename, err := h.svc.Export(c.Params("id"), kind, includeSummary)
	if err != nil {
		return err
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, kind.ContentType())
	return c.Send(data)
}
