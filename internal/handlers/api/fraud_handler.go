package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/onsite-hq/onsite/internal/fraud"
	"github.com/onsite-hq/onsite/internal/middlewares"
	"github.com/onsite-hq/onsite/model"
	"github.com/spf13/cast"
)

const defaultAlertPageSize = 50

type FraudHandler struct {
	alerts fraud.AlertRepository
	engine *fraud.Engine
}

func NewFraudHandler(alerts fraud.AlertRepository, engine *fraud.Engine) *FraudHandler {
	return &FraudHandler{alerts: alerts, engine: engine}
}

// GetAlerts lists alerts, filtered by employee when employeeId is given,
// otherwise the unresolved backlog. Admin only.
func (h *FraudHandler) GetAlerts(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", defaultAlertPageSize)
	if limit <= 0 || limit > defaultAlertPageSize {
		limit = defaultAlertPageSize
	}

	var (
		alerts []*model.FraudAlert
		err    error
	)
	if employeeID := cast.ToUint(ctx.Query("employeeId")); employeeID != 0 {
		alerts, err = h.alerts.FindByEmployee(ctx.Context(), employeeID, limit)
	} else {
		alerts, err = h.alerts.FindUnresolved(ctx.Context(), limit)
	}
	if err != nil {
		return err
	}

	resp := make([]fraudAlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		resp = append(resp, newFraudAlertResponse(alert))
	}
	return ctx.JSON(NewDataResponse(resp))
}

// PostResolve marks an alert handled. The alert row itself is immutable
// evidence; only the resolved flag changes. Admin only.
func (h *FraudHandler) PostResolve(ctx *fiber.Ctx) error {
	alertID := cast.ToUint(ctx.Params("id"))
	if alertID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid alert id"),
		)
	}

	resolvedBy := "admin:" + cast.ToString(middlewares.EmployeeID(ctx))
	rows, err := h.alerts.Resolve(ctx.Context(), alertID, resolvedBy)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Alert not found or already resolved"),
		)
	}

	alert, err := h.alerts.FindByID(ctx.Context(), alertID)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newFraudAlertResponse(alert)))
}

// PostEvaluate reruns the history-based heuristics for one employee. Admin
// only; any alerts land in the regular alert list.
func (h *FraudHandler) PostEvaluate(ctx *fiber.Ctx) error {
	employeeID := cast.ToUint(ctx.Params("employeeId"))
	if employeeID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid employee id"),
		)
	}

	h.engine.EvaluateEmployee(ctx.Context(), employeeID)
	return ctx.SendStatus(fiber.StatusAccepted)
}
