package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/store"
)

// RestaurantHandler serves the restaurant read model and the
// employee-only onboarding endpoint. The public listing is fronted by
// the response cache, so its capacity counters may trail the truth by
// one cache TTL; the reservation engine never reads through it.
type RestaurantHandler struct {
	Store store.Store
}

func NewRestaurantHandler(s store.Store) *RestaurantHandler {
	if s == nil {
		panic("nil store passed to NewRestaurantHandler")
	}
	return &RestaurantHandler{Store: s}
}

type newTableReq struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

type newRestaurantReq struct {
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	Address string        `json:"address"`
	Phone   string        `json:"phone"`
	Tables  []newTableReq `json:"tables"`
}

// List handles GET /v1/restaurants.
func (h *RestaurantHandler) List(c echo.Context) error {
	out, err := h.Store.QueryRestaurants(c.Request().Context())
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"restaurants": out})
}

// Create handles POST /v1/restaurants. Table ids are generated
// server-side; clients only describe size and starting capacity.
func (h *RestaurantHandler) Create(c echo.Context) error {
	var req newRestaurantReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if len(req.Tables) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one table required"})
	}
	for _, t := range req.Tables {
		if t.Size < 1 || t.Capacity < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "table size and capacity must be positive"})
		}
	}

	r := model.Restaurant{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
		Tables:  make([]model.Table, 0, len(req.Tables)),
	}
	for _, t := range req.Tables {
		r.Tables = append(r.Tables, model.Table{
			ID:       uuid.NewString(),
			Size:     t.Size,
			Capacity: t.Capacity,
		})
	}

	err := h.Store.RunTransaction(c.Request().Context(), func(tx store.Tx) error {
		return tx.Insert(c.Request().Context(), store.CollectionRestaurants, r.ID, &r)
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "restaurant already exists"})
		case errors.Is(err, store.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
		}
	}
	return c.JSON(http.StatusCreated, r)
}
