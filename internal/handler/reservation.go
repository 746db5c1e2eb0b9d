package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dinetab/table-reservation/internal/middleware"
	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/service"
)

// ReservationHandler exposes the reservation lifecycle over HTTP. All
// routes sit behind the JWT middleware, so every request carries an
// authenticated principal; authorization decisions beyond that live in
// the service layer, not here.
type ReservationHandler struct {
	Svc *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// List handles GET /v1/reservations. Guests see their own recent
// reservations; employees see everyone's.
func (h *ReservationHandler) List(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	out, err := h.Svc.List(c.Request().Context(), p)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req model.NewReservation
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RestaurantInfo.ID == "" || req.TableInfo.ID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant and table ids required"})
	}
	if req.ReservationDateTime <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservationDateTime required"})
	}

	res, err := h.Svc.Create(c.Request().Context(), req, p)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PUT /v1/reservations/:id. Only confirmed reservations
// can be edited; moving the booking to another table shifts one capacity
// unit between the tables in the same transaction.
func (h *ReservationHandler) Update(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation id required"})
	}

	var req model.UpdateReservation
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TableInfo.ID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "table id required"})
	}
	if req.ReservationDateTime <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservationDateTime required"})
	}

	res, err := h.Svc.Update(c.Request().Context(), id, req, p)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateStatus handles PUT /v1/reservations/:id/status. The only valid
// targets are the two terminal states; cancellation is open to the owner
// and staff, completion to staff only.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation id required"})
	}

	var req model.UpdateStatusReservation
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	res, err := h.Svc.UpdateStatus(c.Request().Context(), id, req, p)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// serviceError maps service-layer sentinels onto HTTP responses. The
// ambiguous-commit case gets its own status so clients know the outcome
// is unknown rather than failed.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrRestaurantNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotConfirmed),
		errors.Is(err, service.ErrCapacityExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTxFailed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "write conflict, please retry"})
	case errors.Is(err, service.ErrTxAmbiguous):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "commit outcome unknown"})
	case errors.Is(err, service.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
	case errors.Is(err, service.ErrQueryFailed):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
