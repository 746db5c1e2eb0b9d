package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/table-reservation/internal/middleware"
	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/service"
	"github.com/dinetab/table-reservation/internal/store"
	"github.com/dinetab/table-reservation/internal/utils"
)

const testSecret = "handler-test-secret"

type testApp struct {
	e   *echo.Echo
	mem *store.Memory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	mem := store.NewMemory()
	svc := service.NewReservationService(mem, 6*time.Hour, nil)

	e := echo.New()
	g := e.Group("/v1", middleware.JWTAuth(testSecret))
	rh := NewReservationHandler(svc)
	g.GET("/reservations", rh.List)
	g.POST("/reservations", rh.Create)
	g.PUT("/reservations/:id", rh.Update)
	g.PUT("/reservations/:id/status", rh.UpdateStatus)

	sh := NewRestaurantHandler(mem)
	e.GET("/v1/restaurants", sh.List)
	emp := e.Group("/v1", middleware.JWTAuth(testSecret), middleware.RequireEmployee())
	emp.POST("/restaurants", sh.Create)

	return &testApp{e: e, mem: mem}
}

func token(t *testing.T, p model.Principal) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, 1, p, 15)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func (a *testApp) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func seedTestRestaurant(t *testing.T, a *testApp) model.Restaurant {
	t.Helper()
	staff := token(t, model.Principal{Username: "staff", IsEmployee: true})
	body := `{"name":"Trattoria Da Mario","address":"12 Via Roma","tables":[{"size":4,"capacity":2},{"size":2,"capacity":1}]}`
	rec := a.do(t, http.MethodPost, "/v1/restaurants", staff, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var r model.Restaurant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	require.NotEmpty(t, r.ID)
	require.Len(t, r.Tables, 2)
	return r
}

func TestRestaurantCreate_GuestForbidden(t *testing.T) {
	a := newTestApp(t)
	guest := token(t, model.Principal{Username: "alice"})

	rec := a.do(t, http.MethodPost, "/v1/restaurants", guest, `{"name":"X","tables":[{"size":2,"capacity":1}]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRestaurantList_Public(t *testing.T) {
	a := newTestApp(t)
	seedTestRestaurant(t, a)

	rec := a.do(t, http.MethodGet, "/v1/restaurants", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Restaurants []model.Restaurant `json:"restaurants"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Restaurants, 1)
	assert.Equal(t, "Trattoria Da Mario", resp.Restaurants[0].Name)
}

func TestReservationCreate_FullFlow(t *testing.T) {
	a := newTestApp(t)
	r := seedTestRestaurant(t, a)
	guest := token(t, model.Principal{Username: "alice", Email: "alice@example.com"})

	when := time.Now().Add(2 * time.Hour).UnixMilli()
	body := `{"restaurantInfo":{"id":"` + r.ID + `"},"tableInfo":{"id":"` + r.Tables[0].ID + `"},"reservationDateTime":` + itoa(when) + `}`
	rec := a.do(t, http.MethodPost, "/v1/reservations", guest, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, "alice", res.GuestName)
	assert.Equal(t, r.Tables[0].ID, res.TableInfo.ID)

	// The guest sees it in the listing.
	rec = a.do(t, http.MethodGet, "/v1/reservations", guest, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Reservations []model.Reservation `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Reservations, 1)
	assert.Equal(t, res.ID, list.Reservations[0].ID)
}

func TestReservationCreate_Unauthenticated(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/v1/reservations", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReservationCreate_MissingFields(t *testing.T) {
	a := newTestApp(t)
	guest := token(t, model.Principal{Username: "alice"})

	rec := a.do(t, http.MethodPost, "/v1/reservations", guest, `{"restaurantInfo":{"id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationErrors_MapToStatusCodes(t *testing.T) {
	a := newTestApp(t)
	r := seedTestRestaurant(t, a)
	guest := token(t, model.Principal{Username: "alice", Email: "alice@example.com"})
	intruder := token(t, model.Principal{Username: "bob", Email: "bob@example.com"})
	staff := token(t, model.Principal{Username: "staff", IsEmployee: true})

	when := time.Now().Add(time.Hour).UnixMilli()

	// Unknown restaurant -> 404.
	body := `{"restaurantInfo":{"id":"nope"},"tableInfo":{"id":"x"},"reservationDateTime":` + itoa(when) + `}`
	rec := a.do(t, http.MethodPost, "/v1/reservations", guest, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Book out the single two-seater, then hit 409 on the next attempt.
	small := r.Tables[1]
	body = `{"restaurantInfo":{"id":"` + r.ID + `"},"tableInfo":{"id":"` + small.ID + `"},"reservationDateTime":` + itoa(when) + `}`
	rec = a.do(t, http.MethodPost, "/v1/reservations", guest, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = a.do(t, http.MethodPost, "/v1/reservations", intruder, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Someone else's reservation -> 403.
	update := `{"guestEmail":"bob@example.com","tableInfo":{"id":"` + small.ID + `"},"reservationDateTime":` + itoa(when) + `}`
	rec = a.do(t, http.MethodPut, "/v1/reservations/"+res.ID, intruder, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Guest cannot complete -> 403; staff can -> 200.
	rec = a.do(t, http.MethodPut, "/v1/reservations/"+res.ID+"/status", guest, `{"status":"completed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodPut, "/v1/reservations/"+res.ID+"/status", staff, `{"status":"completed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Terminal state -> 409 on any further transition.
	rec = a.do(t, http.MethodPut, "/v1/reservations/"+res.ID+"/status", guest, `{"status":"canceled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bogus target -> 400.
	rec = a.do(t, http.MethodPut, "/v1/reservations/"+res.ID+"/status", staff, `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrRestaurantNotFound, http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrInvalidStatus, http.StatusBadRequest},
		{service.ErrCapacityExhausted, http.StatusConflict},
		{service.ErrTxFailed, http.StatusConflict},
		{service.ErrTxAmbiguous, http.StatusBadGateway},
		{service.ErrUnavailable, http.StatusServiceUnavailable},
		{service.ErrQueryFailed, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, serviceError(c, tc.err))
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
