package api

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/onsite-hq/onsite/internal/middlewares"
	"github.com/onsite-hq/onsite/internal/verification"
	"github.com/spf13/cast"
)

type VerificationHandler struct {
	manager *verification.Manager
}

func NewVerificationHandler(manager *verification.Manager) *VerificationHandler {
	return &VerificationHandler{manager: manager}
}

type triggerRequest struct {
	EmployeeIDs    []uint `json:"employeeIds"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type triggerSkipResponse struct {
	EmployeeID uint   `json:"employeeId"`
	Reason     string `json:"reason"`
}

type triggerResponse struct {
	Created []verificationSessionResponse `json:"created"`
	Skipped []triggerSkipResponse         `json:"skipped,omitempty"`
}

// PostTrigger opens verification sessions for the listed employees, or for
// every active employee when the list is empty. Admin only.
func (h *VerificationHandler) PostTrigger(ctx *fiber.Ctx) error {
	var req triggerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}

	triggeredBy := "admin:" + cast.ToString(middlewares.EmployeeID(ctx))
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	created, skipped, err := h.manager.Trigger(ctx.Context(), req.EmployeeIDs, timeout, triggeredBy)
	if err != nil {
		return err
	}

	resp := triggerResponse{Created: make([]verificationSessionResponse, 0, len(created))}
	for _, session := range created {
		resp.Created = append(resp.Created, newVerificationSessionResponse(session))
	}
	for _, skip := range skipped {
		resp.Skipped = append(resp.Skipped, triggerSkipResponse{
			EmployeeID: skip.EmployeeID,
			Reason:     skip.Reason.Error(),
		})
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(resp))
}

type respondRequest struct {
	Sample string `json:"sample"` // base64 encoded capture
}

func (h *VerificationHandler) PostRespond(ctx *fiber.Ctx) error {
	sessionID := cast.ToUint(ctx.Params("id"))
	if sessionID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid session id"),
		)
	}
	var req respondRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	sample, err := base64.StdEncoding.DecodeString(req.Sample)
	if err != nil || len(sample) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Sample must be non-empty base64"),
		)
	}

	employeeID := middlewares.EmployeeID(ctx)
	session, err := h.manager.Respond(ctx.Context(), sessionID, employeeID, sample)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrNotFound), errors.Is(err, verification.ErrNotYours):
			return ctx.Status(fiber.StatusNotFound).JSON(
				NewErrorResponse(fiber.StatusNotFound, "Verification session not found"),
			)
		case errors.Is(err, verification.ErrAlreadyResolved):
			return ctx.Status(fiber.StatusConflict).JSON(
				NewErrorResponse(fiber.StatusConflict, err.Error()),
			)
		}
		return err
	}
	return ctx.JSON(NewDataResponse(newVerificationSessionResponse(session)))
}

func (h *VerificationHandler) GetSession(ctx *fiber.Ctx) error {
	sessionID := cast.ToUint(ctx.Params("id"))
	if sessionID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid session id"),
		)
	}

	session, err := h.manager.Get(ctx.Context(), sessionID, middlewares.EmployeeID(ctx), middlewares.IsAdmin(ctx))
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) || errors.Is(err, verification.ErrNotYours) {
			return ctx.Status(fiber.StatusNotFound).JSON(
				NewErrorResponse(fiber.StatusNotFound, "Verification session not found"),
			)
		}
		return err
	}
	return ctx.JSON(NewDataResponse(newVerificationSessionResponse(session)))
}

func (h *VerificationHandler) GetHistory(ctx *fiber.Ctx) error {
	sessions, err := h.manager.Recent(ctx.Context(), middlewares.EmployeeID(ctx))
	if err != nil {
		return err
	}
	resp := make([]verificationSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, newVerificationSessionResponse(session))
	}
	return ctx.JSON(NewDataResponse(resp))
}

type sweepResponse struct {
	Expired int `json:"expired"`
}

// PostSweep forces an expiry sweep outside the scheduler cadence. Admin only.
func (h *VerificationHandler) PostSweep(ctx *fiber.Ctx) error {
	count, err := h.manager.Sweep(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(sweepResponse{Expired: count}))
}
