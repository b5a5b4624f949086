package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// PublicError is the failure body returned to clients
type PublicError struct {
	Status   int         `json:"status"`
	Kind     FailureKind `json:"kind"`
	TextCode string      `json:"text_code,omitempty"`
	Message  string      `json:"message"`
}

var genericMessages = map[FailureKind]string{
	FailureUnauthorized: "authentication required",
	FailureForbidden:    "access denied",
	FailureNotFound:     "resource not found",
	FailureBadRequest:   "bad request",
	FailureConflict:     "request conflicts with current state",
	FailureInternal:     "an unexpected server error occurred",
}

var kindStatus = map[FailureKind]int{
	FailureUnauthorized: http.StatusUnauthorized,
	FailureForbidden:    http.StatusForbidden,
	FailureNotFound:     http.StatusNotFound,
	FailureBadRequest:   http.StatusBadRequest,
	FailureConflict:     http.StatusConflict,
	FailureInternal:     http.StatusInternalServerError,
}

// PublicFailure maps err to what a client may see. Metadata never leaves
// the process and internal failures only carry a generic message.
func PublicFailure(err error) PublicError {
	kind := KindOf(err)
	if kind == FailureNone {
		return PublicError{Status: http.StatusOK}
	}

	out := PublicError{
		Status:  kindStatus[kind],
		Kind:    kind,
		Message: genericMessages[kind],
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return out
	}

	out.TextCode = richErr.TextCode
	if kind != FailureInternal && richErr.Message != "" {
		out.Message = richErr.Message
	}
	if kind != FailureInternal && richErr.Code >= 400 && richErr.Code < 500 {
		out.Status = richErr.Code
	}
	return out
}

// FailureHandler returns a router error handler, suited for
// jwtware.Config.ErrorHandler, that logs err and renders PublicFailure.
func FailureHandler(logger Logger) func(router.Context, error) error {
	if logger == nil {
		logger = defLogger{name: "auth.http"}
	}
	return func(c router.Context, err error) error {
		public := PublicFailure(err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			logger.Info(
				"request rejected",
				"error", richErr.Message,
				"category", richErr.Category,
				"text_code", richErr.TextCode,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Error("request failed", "error", err)
		}

		return c.JSON(public.Status, public)
	}
}
