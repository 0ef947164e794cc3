package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tordrt/metamind/internal/chat"
	"github.com/tordrt/metamind/internal/docs"
	"github.com/tordrt/metamind/internal/llm"
	"github.com/tordrt/metamind/internal/schema"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errSessionNotFound = errors.New("session not found")

// statusFor maps an action error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var extractionErr *schema.ExtractionError
	var parseErr *docs.ResponseParseError
	var apiErr *llm.APIError

	switch {
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest, "EMPTY_QUESTION"
	case errors.Is(err, chat.ErrNoSchema):
		return http.StatusConflict, "NO_SCHEMA"
	case errors.As(err, &extractionErr):
		return http.StatusUnprocessableEntity, string(extractionErr.Kind)
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, string(parseErr.Kind)
	case errors.As(err, &apiErr):
		switch apiErr.Kind {
		case llm.AuthFailed:
			return http.StatusUnauthorized, string(apiErr.Kind)
		case llm.RateLimited:
			return http.StatusTooManyRequests, string(apiErr.Kind)
		default:
			return http.StatusBadGateway, string(apiErr.Kind)
		}
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", "path", c.Path(), "code", code, "error", err)
	} else {
		s.log.Info("request rejected", "path", c.Path(), "code", code, "error", err)
	}
	return c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: err.Error()}})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: errorDetail{Code: "BAD_REQUEST", Message: msg}})
}
