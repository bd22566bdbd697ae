package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as an ErrorResponse carrying the user message and
// code from core.MapError.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/history"
	"github.com/JonMunkholm/csvcompare/internal/pipeline"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errFileTooLarge = errors.New("file too large")
	errInvalidForm  = errors.New("invalid upload form")
	errNoFile       = errors.New("no file provided")
	errInvalidRunID = errors.New("invalid run id")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the mapped
// user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userErr := core.NewUserError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", userErr.Technical.Error(),
		"code", userErr.User.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userErr.Technical.Error(),
		Message: userErr.User.Message,
		Action:  userErr.User.Action,
		Code:    userErr.User.Code,
	})
}

// statusFor picks the HTTP status of a comparison error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var parseErr *core.ParseError
	var rowErr *core.RowCountError

	switch {
	case errors.Is(err, pipeline.ErrTooManyComparisons):
		return http.StatusServiceUnavailable
	case errors.Is(err, history.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rules.ErrInvalidRules),
		errors.Is(err, errInvalidForm),
		errors.Is(err, errNoFile),
		errors.Is(err, errInvalidRunID):
		return http.StatusBadRequest
	case errors.As(err, &parseErr),
		errors.As(err, &rowErr),
		errors.Is(err, core.ErrRegexCompilation),
		errors.Is(err, core.ErrInvalidAccess),
		errors.Is(err, core.ErrUnexpectedValue),
		errors.Is(err, core.ErrUnterminatedLiteral),
		errors.Is(err, core.ErrUnstableColumnCount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// clientIP returns the request's client address without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
