package handler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"textshare/internal/http/middleware"
	"textshare/internal/service"
)

const (
	healthTimeout     = 2 * time.Second
	retryAfterSeconds = "5"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between HTTP and the note service.
func RegisterRoutes(app *fiber.App, store Pinger, noteSvc service.NoteService, log zerolog.Logger) {
	app.Get("/", Index())
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Post("/notes", SaveNote(noteSvc, log))
	api.Get("/notes/:name", GetNote(noteSvc, log))
	api.Post("/notes/:name/access", AccessNote(noteSvc, log))
}

// Index answers the root path with a plain banner.
func Index() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendString("TextShare API is running")
	}
}

// HealthCheck checks store connectivity only.
func HealthCheck(store Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// SaveNote creates or updates a note by name.
//
//	@Summary	Create or update a note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		note	body		saveNoteRequest	true	"Note to save"
//	@Success	201		{object}	saveNoteResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	503		{object}	errorPayload
//	@Router		/api/notes [post]
func SaveNote(noteSvc service.NoteService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req saveNoteRequest
		if err := c.BodyParser(&req); err != nil {
			if errors.Is(err, errInvalidExpiresIn) {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Expiration must be a whole number of hours")
			}
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Name and content are required")
		}

		res, err := noteSvc.Save(c.UserContext(), service.SaveInput{
			Name:           req.Name,
			Content:        req.Content,
			Password:       req.Password,
			ExpiresInHours: req.ExpiresIn.value,
		})
		if err != nil {
			var ve *service.ValidationError
			if errors.As(err, &ve) {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", ve.Message)
			}
			return writeServiceError(c, log, err, "save note")
		}

		return c.Status(fiber.StatusCreated).JSON(saveNoteResponse{
			Message: "Note saved successfully",
			Name:    res.Name,
		})
	}
}

// GetNote returns the public view of a note.
//
//	@Summary	Fetch a note
//	@Tags		notes
//	@Produce	json
//	@Param		name	path		string	true	"Note name"
//	@Success	200		{object}	model.NoteView
//	@Failure	404		{object}	errorPayload
//	@Router		/api/notes/{name} [get]
func GetNote(noteSvc service.NoteService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := noteSvc.Get(c.UserContext(), noteName(c))
		if err != nil {
			return writeServiceError(c, log, err, "get note")
		}
		return c.JSON(view)
	}
}

// AccessNote verifies the password of a protected note and returns its content.
//
//	@Summary	Unlock a protected note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		name	path		string				true	"Note name"
//	@Param		body	body		accessNoteRequest	true	"Password"
//	@Success	200		{object}	model.NoteView
//	@Failure	400		{object}	errorPayload
//	@Failure	401		{object}	errorPayload
//	@Failure	404		{object}	errorPayload
//	@Router		/api/notes/{name}/access [post]
func AccessNote(noteSvc service.NoteService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req accessNoteRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}

		view, err := noteSvc.Access(c.UserContext(), noteName(c), req.Password)
		if err != nil {
			return writeServiceError(c, log, err, "access note")
		}
		return c.JSON(view)
	}
}

// noteName returns the decoded :name path segment. Params aliases the request
// buffer, so the value is copied before it reaches the service.
func noteName(c *fiber.Ctx) string {
	raw := utils.CopyString(c.Params("name"))
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// writeServiceError maps service errors to responses. Internal failures are logged, never echoed.
func writeServiceError(c *fiber.Ctx, log zerolog.Logger, err error, op string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Note not found")
	case errors.Is(err, service.ErrNoPassword):
		return writeError(c, fiber.StatusBadRequest, "NOT_PASSWORD_PROTECTED", "This note is not password protected")
	case errors.Is(err, service.ErrUnauthorized):
		return writeError(c, fiber.StatusUnauthorized, "INVALID_PASSWORD", "Invalid password")
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Warn().Err(err).Str("request_id", middleware.RequestIDFromCtx(c)).Str("op", op).Msg("note store unavailable")
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable, please retry")
	default:
		log.Error().Err(err).Str("request_id", middleware.RequestIDFromCtx(c)).Str("op", op).Msg("unexpected note service error")
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
