package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/reservation-core/internal/handler"
	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/repository"
	"github.com/spacebook/reservation-core/internal/service"
	"github.com/spacebook/reservation-core/internal/utils"
)

const secret = "router-secret"

type app struct {
	e        *echo.Echo
	store    *repository.MemoryStore
	owner    model.User
	customer model.User
	space    model.Space
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := repository.NewMemoryStore()
	a := &app{store: store}
	a.owner = store.PutUser(model.User{Email: "owner@example.com"})
	a.customer = store.PutUser(model.User{Email: "guest@example.com"})
	a.space = store.PutSpace(model.Space{UserID: a.owner.ID, Title: "Studio", PricePerHour: "25.00"})

	now := func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }
	resSvc := service.NewReservationService(store.Reservations(), store.Spaces(), store.Reviews(), nil, service.WithClock(now))
	wdSvc := service.NewWithdrawalService(store.Users(), store.Spaces(), store.Reservations(), store.Payments(), nil, nil, service.WithClock(now))
	errs := handler.ErrorResponder{ExposeCause: true}

	a.e = echo.New()
	RegisterRoutes(a.e)
	RegisterAPI(a.e, Deps{
		Reservations: handler.NewReservationHandler(resSvc, errs),
		Withdrawals:  handler.NewWithdrawHandler(wdSvc, errs),
		JWTSecret:    secret,
	})
	return a
}

func (a *app) do(t *testing.T, method, path string, user uint64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != 0 {
		tok, err := utils.NewAccessToken(secret, user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type messageBody struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestWithdrawFlow(t *testing.T) {
	a := newApp(t)
	for _, price := range []string{"50.00", "75.00"} {
		a.store.PutReservation(model.Reservation{SpaceID: a.space.ID, UserID: a.customer.ID, State: model.StateCompleted, TotalPrice: price})
	}

	rec := a.do(t, http.MethodGet, "/api/withdraw/balance", a.owner.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "125.00", decode[service.Balance](t, rec).Amount)

	body := `{"accountType":"bank","accountName":"Owner","accountNumber":"PK001","withdrawAmount":124}`
	rec = a.do(t, http.MethodPost, "/api/withdraw", a.owner.ID, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = `{"accountType":"bank","accountName":"Owner","accountNumber":"PK001"}`
	rec = a.do(t, http.MethodPost, "/api/withdraw", a.owner.ID, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[messageBody](t, rec).Message, "All fields are required")

	body = `{"accountType":"bank","accountName":"Owner","accountNumber":"PK001","withdrawAmount":"125.00"}`
	rec = a.do(t, http.MethodPost, "/api/withdraw", a.owner.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg := decode[messageBody](t, rec)
	assert.Equal(t, "Withdraw request submitted successfully.", msg.Message)
	var p model.Payment
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, "125.00", p.WithdrawAmount)

	body = `{"accountType":"bank","accountName":"Owner","accountNumber":"PK001","withdrawAmount":"100.00"}`
	rec = a.do(t, http.MethodPost, "/api/withdraw", a.owner.ID, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/withdraw", a.owner.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Payment](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/withdraw", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReservationFlow(t *testing.T) {
	a := newApp(t)

	body := `{"spaceId":` + jsonID(a.space.ID) + `,"arrivalDate":"2024-01-02","arrivalTime":"10:00","leaveDate":"2024-01-02","leaveTime":"12:00"}`
	rec := a.do(t, http.MethodPost, "/api/reservation/createReservation", a.customer.ID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res model.Reservation
	require.NoError(t, json.Unmarshal(decode[messageBody](t, rec).Data, &res))
	assert.Equal(t, model.StatePending, res.State)
	assert.Equal(t, "50.00", res.TotalPrice)

	rec = a.do(t, http.MethodPost, "/api/reservation/createReservation", a.customer.ID, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	idBody := `{"reservationId":` + jsonID(res.ID) + `}`
	rec = a.do(t, http.MethodPatch, "/api/reservation/confirm", a.customer.ID, idBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/reservation/confirm", a.owner.ID, idBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Reservation status updated", decode[messageBody](t, rec).Message)

	rec = a.do(t, http.MethodPatch, "/api/reservation/reserved", a.owner.ID, idBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reservation/get/"+jsonID(res.ID), a.customer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StateConfirmed, decode[model.Reservation](t, rec).State)

	rec = a.do(t, http.MethodGet, "/api/reservation/get", a.owner.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/reservation/getuserreservation", a.customer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(t, http.MethodPatch, "/api/reservation/cancel", a.customer.ID, `{"reservationId":"`+jsonID(res.ID)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPatch, "/api/reservation/cancel", a.customer.ID, idBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	a := newApp(t)
	a.store.PutReservation(model.Reservation{SpaceID: a.space.ID, State: model.StatePending})

	rec := a.do(t, http.MethodGet, "/api/reservation/getallreservation", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/reservation/getspacespecificreservation/"+jsonID(a.space.ID), 0, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reservation/getspacespecificreservation/999", 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reservation/getspacespecificreservation/abc", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/reservation/createReservation", 0, `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/healthz", 0, "").Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/metrics", 0, "").Code)
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
