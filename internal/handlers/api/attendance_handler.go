package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/onsite-hq/onsite/internal/attendance"
	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/internal/middlewares"
	"github.com/spf13/cast"
)

type AttendanceHandler struct {
	ledger *attendance.Ledger
}

func NewAttendanceHandler(ledger *attendance.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger}
}

type checkInRequest struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	AccuracyM float64    `json:"accuracyM"`
	Timestamp *time.Time `json:"timestamp"`
}

type checkInResponse struct {
	Session  attendanceSessionResponse `json:"session"`
	Geofence *geofenceResponse         `json:"geofence,omitempty"`
}

func attendanceErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyActive),
		errors.Is(err, attendance.ErrNoActiveSession):
		return fiber.StatusConflict, true
	case errors.Is(err, attendance.ErrOutsideGeofence):
		return fiber.StatusUnprocessableEntity, true
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, attendance.ErrEmployeeInactive):
		return fiber.StatusForbidden, true
	}
	return 0, false
}

func (h *AttendanceHandler) PostCheckIn(ctx *fiber.Ctx) error {
	var req checkInRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 || req.AccuracyM < 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid coordinates"),
		)
	}
	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	employeeID := middlewares.EmployeeID(ctx)
	session, fence, err := h.ledger.CheckIn(ctx.Context(), employeeID, geo.Point{Lat: req.Lat, Lng: req.Lng}, req.AccuracyM, ts)
	if err != nil {
		if code, ok := attendanceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}

	resp := checkInResponse{Session: newAttendanceSessionResponse(session)}
	if fence != nil {
		fenceResp := newGeofenceResponse(fence)
		resp.Geofence = &fenceResp
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(resp))
}

type checkOutRequest struct {
	Timestamp *time.Time `json:"timestamp"`
}

func (h *AttendanceHandler) PostCheckOut(ctx *fiber.Ctx) error {
	var req checkOutRequest
	if err := ctx.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	employeeID := middlewares.EmployeeID(ctx)
	session, err := h.ledger.CheckOut(ctx.Context(), employeeID, ts)
	if err != nil {
		if code, ok := attendanceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}
	return ctx.JSON(NewDataResponse(newAttendanceSessionResponse(session)))
}

func (h *AttendanceHandler) GetActive(ctx *fiber.Ctx) error {
	employeeID := middlewares.EmployeeID(ctx)
	session, err := h.ledger.ActiveSession(ctx.Context(), employeeID)
	if err != nil {
		return err
	}
	if session == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "No active attendance session"),
		)
	}
	return ctx.JSON(NewDataResponse(newAttendanceSessionResponse(session)))
}

func (h *AttendanceHandler) GetHistory(ctx *fiber.Ctx) error {
	employeeID := middlewares.EmployeeID(ctx)
	limit := ctx.QueryInt("limit")

	sessions, err := h.ledger.History(ctx.Context(), employeeID, limit)
	if err != nil {
		return err
	}
	resp := make([]attendanceSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, newAttendanceSessionResponse(session))
	}
	return ctx.JSON(NewDataResponse(resp))
}

// PostForceClose closes another employee's stuck session. Admin only.
func (h *AttendanceHandler) PostForceClose(ctx *fiber.Ctx) error {
	employeeID := cast.ToUint(ctx.Params("employeeId"))
	if employeeID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid employee id"),
		)
	}

	closedBy := cast.ToString(middlewares.EmployeeID(ctx))
	session, err := h.ledger.ForceClose(ctx.Context(), employeeID, closedBy)
	if err != nil {
		if code, ok := attendanceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}
	return ctx.JSON(NewDataResponse(newAttendanceSessionResponse(session)))
}
