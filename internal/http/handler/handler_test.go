package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"textshare/internal/http/middleware"
	"textshare/internal/model"
	"textshare/internal/repository"
	"textshare/internal/repository/memory"
	repoMocks "textshare/internal/repository/mocks"
	"textshare/internal/service"
	serviceMocks "textshare/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func intPtr(i int) *int { return &i }

func TestHealthCheck(t *testing.T) {
	mRepo := new(repoMocks.MockNoteRepository)
	app := fiber.New()
	app.Get("/health", HealthCheck(mRepo))

	t.Run("healthy", func(t *testing.T) {
		mRepo.On("Ping", mock.Anything).Return(nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		mRepo.On("Ping", mock.Anything).Return(repository.ErrUnavailable).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	mRepo.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	app := fiber.New()
	app.Get("/", Index())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "TextShare API is running", string(body))
}

func TestSaveNote(t *testing.T) {
	mockSvc := new(serviceMocks.MockNoteService)
	app := fiber.New()
	app.Post("/api/notes", SaveNote(mockSvc, zerolog.Nop()))

	t.Run("success with string expiry", func(t *testing.T) {
		in := service.SaveInput{Name: "n1", Content: "hello", Password: "secret", ExpiresInHours: intPtr(24)}
		mockSvc.On("Save", mock.Anything, in).Return(&service.SaveResult{Name: "n1"}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes",
			`{"name":"n1","content":"hello","password":"secret","expiresIn":"24"}`))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var body saveNoteResponse
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "n1", body.Name)
		assert.Equal(t, "Note saved successfully", body.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("numeric expiry and no password", func(t *testing.T) {
		in := service.SaveInput{Name: "n2", Content: "x", ExpiresInHours: intPtr(3)}
		mockSvc.On("Save", mock.Anything, in).Return(&service.SaveResult{Name: "n2"}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"n2","content":"x","expiresIn":3}`))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty expiry string is absent", func(t *testing.T) {
		in := service.SaveInput{Name: "n3", Content: "x"}
		mockSvc.On("Save", mock.Anything, in).Return(&service.SaveResult{Name: "n3"}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"n3","content":"x","expiresIn":""}`))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("non numeric expiry", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"n1","content":"x","expiresIn":"soon"}`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	})

	t.Run("validation error from service", func(t *testing.T) {
		mockSvc.On("Save", mock.Anything, service.SaveInput{Content: "x"}).
			Return(nil, &service.ValidationError{Message: "Name and content are required"}).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"content":"x"}`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "Name and content are required", body.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_BODY", body.Error.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		mockSvc.On("Save", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("save note: %w: timeout", service.ErrStoreUnavailable)).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"n1","content":"x"}`))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
		raw, _ := io.ReadAll(resp.Body)
		assert.NotContains(t, string(raw), "timeout")
		mockSvc.AssertExpectations(t)
	})

	t.Run("unexpected error", func(t *testing.T) {
		mockSvc.On("Save", mock.Anything, mock.Anything).Return(nil, errors.New("pq: relation missing")).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"n1","content":"x"}`))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.NotContains(t, string(raw), "relation")
		mockSvc.AssertExpectations(t)
	})
}

func TestGetNote(t *testing.T) {
	mockSvc := new(serviceMocks.MockNoteService)
	app := fiber.New()
	app.Get("/api/notes/:name", GetNote(mockSvc, zerolog.Nop()))

	t.Run("protected note", func(t *testing.T) {
		hasPassword := true
		mockSvc.On("Get", mock.Anything, "n1").
			Return(&model.NoteView{Name: "n1", HasPassword: &hasPassword, CreatedAt: time.Now()}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/n1", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "n1", body["name"])
		assert.Equal(t, true, body["hasPassword"])
		assert.Contains(t, body, "content")
		assert.Nil(t, body["content"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, "missing").Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/missing", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("url encoded name", func(t *testing.T) {
		content := "x"
		mockSvc.On("Get", mock.Anything, "my note").Return(&model.NoteView{Name: "my note", Content: &content}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/my%20note", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestAccessNote(t *testing.T) {
	mockSvc := new(serviceMocks.MockNoteService)
	app := fiber.New()
	app.Post("/api/notes/:name/access", AccessNote(mockSvc, zerolog.Nop()))

	tests := []struct {
		name       string
		password   string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"not found", "pw", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"not protected", "pw", service.ErrNoPassword, http.StatusBadRequest, "NOT_PASSWORD_PROTECTED"},
		{"wrong password", "wrong", service.ErrUnauthorized, http.StatusUnauthorized, "INVALID_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc.On("Access", mock.Anything, "n1", tt.password).Return(nil, tt.svcErr).Once()

			resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes/n1/access", `{"password":"`+tt.password+`"}`))

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var res errorPayload
			json.NewDecoder(resp.Body).Decode(&res)
			assert.Equal(t, tt.wantCode, res.Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("success", func(t *testing.T) {
		content := "hello"
		mockSvc.On("Access", mock.Anything, "n1", "secret").
			Return(&model.NoteView{Name: "n1", Content: &content}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes/n1/access", `{"password":"secret"}`))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "hello", body["content"])
		assert.NotContains(t, body, "hasPassword")
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty body uses empty password", func(t *testing.T) {
		mockSvc.On("Access", mock.Anything, "n1", "").Return(nil, service.ErrUnauthorized).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/api/notes/n1/access", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/notes/n1/access", `{"password":`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRegisterRoutes_NoteLifecycle(t *testing.T) {
	repo := memory.NewNoteMemory()
	svc := service.NewNoteService(repo, service.NewBcryptHasher(bcrypt.MinCost), service.Options{Logger: zerolog.Nop()})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, repo, svc, zerolog.Nop())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/notes",
		`{"name":"n1","content":"hello","password":"secret","expiresIn":"24"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/n1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, true, view["hasPassword"])
	assert.Nil(t, view["content"])
	assert.NotNil(t, view["expiresAt"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/notes/n1/access", `{"password":"wrong"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "hello")

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/notes/n1/access", `{"password":"secret"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "hello", view["content"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"pub","content":"open"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/notes/pub/access", `{"password":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/notes", `{"name":"pub","content":"gone","expiresIn":"3000000"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/pub", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "open", view["content"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, "Note not found", e.Message)
}

func TestGetNote_SpanKeepsRequestedName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	svc := service.NewNoteService(memory.NewNoteMemory(), service.NewBcryptHasher(bcrypt.MinCost), service.Options{Logger: zerolog.Nop()})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/api/notes/:name", GetNote(svc, zerolog.Nop()))

	names := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"}
	for _, name := range names {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/notes/"+name, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	var recorded []string
	for _, span := range recorder.Ended() {
		if span.Name() != "NoteService.Get" {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == "note.name" {
				recorded = append(recorded, kv.Value.AsString())
			}
		}
	}
	assert.Equal(t, names, recorded)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})
	app.Get("/health", LivenessProbe())
	app.Get("/bad", func(c *fiber.Ctx) error {
		return fiber.ErrBadRequest
	})
	app.Get("/panic-free-error", func(c *fiber.Ctx) error {
		return errors.New("raw error")
	})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})

	t.Run("bad request", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/bad", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/panic-free-error", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
		assert.Equal(t, "internal server error", res.Message)
	})
}

func TestHoursUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{`{"expiresIn":24}`, intPtr(24), false},
		{`{"expiresIn":"24"}`, intPtr(24), false},
		{`{"expiresIn":" 5 "}`, intPtr(5), false},
		{`{"expiresIn":""}`, nil, false},
		{`{"expiresIn":null}`, nil, false},
		{`{}`, nil, false},
		{`{"expiresIn":3000000}`, intPtr(3000000), false},
		{`{"expiresIn":"99999999999999999999"}`, nil, true},
		{`{"expiresIn":1.5}`, nil, true},
		{`{"expiresIn":"abc"}`, nil, true},
		{`{"expiresIn":true}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var req saveNoteRequest
			err := json.Unmarshal([]byte(tt.in), &req)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidExpiresIn)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.ExpiresIn.value)
		})
	}
}
