package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/onsite-hq/onsite/internal/geofence"
	"github.com/spf13/cast"
)

type GeofenceHandler struct {
	service *geofence.Service
}

func NewGeofenceHandler(service *geofence.Service) *GeofenceHandler {
	return &GeofenceHandler{service: service}
}

type geofenceRequest struct {
	Name         string  `json:"name"`
	CenterLat    float64 `json:"centerLat"`
	CenterLng    float64 `json:"centerLng"`
	RadiusMeters float64 `json:"radiusMeters"`
	Active       *bool   `json:"active"`
}

func geofenceErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, geofence.ErrNameEmpty),
		errors.Is(err, geofence.ErrInvalidRadius),
		errors.Is(err, geofence.ErrInvalidLatitude),
		errors.Is(err, geofence.ErrInvalidLongitude):
		return fiber.StatusBadRequest, true
	case errors.Is(err, geofence.ErrFenceNotFound):
		return fiber.StatusNotFound, true
	}
	return 0, false
}

func (h *GeofenceHandler) GetList(ctx *fiber.Ctx) error {
	fences, err := h.service.List(ctx.Context())
	if err != nil {
		return err
	}
	resp := make([]geofenceResponse, 0, len(fences))
	for _, fence := range fences {
		resp = append(resp, newGeofenceResponse(fence))
	}
	return ctx.JSON(NewDataResponse(resp))
}

func (h *GeofenceHandler) PostCreate(ctx *fiber.Ctx) error {
	var req geofenceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}

	fence, err := h.service.Create(ctx.Context(), req.Name, req.CenterLat, req.CenterLng, req.RadiusMeters)
	if err != nil {
		if code, ok := geofenceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newGeofenceResponse(fence)))
}

func (h *GeofenceHandler) PutUpdate(ctx *fiber.Ctx) error {
	fenceID := cast.ToUint(ctx.Params("id"))
	if fenceID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid geofence id"),
		)
	}
	var req geofenceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	fence, err := h.service.Update(ctx.Context(), fenceID, req.Name, req.CenterLat, req.CenterLng, req.RadiusMeters, active)
	if err != nil {
		if code, ok := geofenceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}
	return ctx.JSON(NewDataResponse(newGeofenceResponse(fence)))
}

func (h *GeofenceHandler) DeleteFence(ctx *fiber.Ctx) error {
	fenceID := cast.ToUint(ctx.Params("id"))
	if fenceID == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid geofence id"),
		)
	}

	if err := h.service.Deactivate(ctx.Context(), fenceID); err != nil {
		if code, ok := geofenceErrorStatus(err); ok {
			return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
		}
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
