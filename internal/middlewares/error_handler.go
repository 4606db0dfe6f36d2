package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type errorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	APIVersion string    `json:"apiVersion"`
	Error      errorInfo `json:"error"`
}

// ErrorHandler turns errors that escaped the handlers into JSON error
// envelopes. Unexpected errors are logged and masked.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code == fiber.StatusInternalServerError {
		slog.Error("unhandled error", "path", ctx.Path(), "error", err)
		message = "Internal server error"
	}

	return ctx.Status(code).JSON(errorResponse{
		APIVersion: "1.0",
		Error:      errorInfo{Code: code, Message: message},
	})
}
