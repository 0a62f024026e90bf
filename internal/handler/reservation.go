package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spacebook/reservation-core/internal/model"
	"github.com/spacebook/reservation-core/internal/service"
)

// ReservationHandler exposes the reservation lifecycle.  Authenticated
// routes read the caller from the JWT middleware.
type ReservationHandler struct {
	svc  *service.ReservationService
	errs ErrorResponder
}

func NewReservationHandler(svc *service.ReservationService, errs ErrorResponder) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc, errs: errs}
}

type createReservationRequest struct {
	SpaceID     flexID `json:"spaceId"`
	UserID      flexID `json:"userId"`
	ArrivalDate string `json:"arrivalDate"`
	ArrivalTime string `json:"arrivalTime"`
	LeaveDate   string `json:"leaveDate"`
	LeaveTime   string `json:"leaveTime"`
}

func (r createReservationRequest) input() service.CreateInput {
	return service.CreateInput{
		SpaceID:     uint64(r.SpaceID),
		UserID:      uint64(r.UserID),
		ArrivalDate: r.ArrivalDate,
		ArrivalTime: r.ArrivalTime,
		LeaveDate:   r.LeaveDate,
		LeaveTime:   r.LeaveTime,
	}
}

// Create handles POST /api/reservation/createReservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return h.errs.Respond(c, err, "")
	}
	res, err := h.svc.Create(c.Request().Context(), uid, req.input())
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while creating the reservation.")
	}
	return c.JSON(http.StatusCreated, envelope{Message: "Reservation created successfully.", Data: res})
}

// CreateCustom handles POST /api/reservation/createCustomReservation, an
// owner booking their own space for a walk-in customer.
func (h *ReservationHandler) CreateCustom(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return h.errs.Respond(c, err, "")
	}
	res, err := h.svc.CreateCustom(c.Request().Context(), uid, req.input())
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while creating the reservation.")
	}
	return c.JSON(http.StatusCreated, envelope{Message: "Reservation created successfully.", Data: res})
}

type reviewRequest struct {
	ReservationID flexID `json:"reservationId"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// PostReview handles POST /api/reservation/postreview.
func (h *ReservationHandler) PostReview(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return h.errs.Respond(c, err, "")
	}
	rv, err := h.svc.PostReview(c.Request().Context(), uid, service.ReviewInput{
		ReservationID: uint64(req.ReservationID),
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while posting the review.")
	}
	return c.JSON(http.StatusCreated, envelope{Message: "Review posted successfully.", Data: rv})
}

// ListReviews handles GET /api/reservation/getreviews/:spaceId.
func (h *ReservationHandler) ListReviews(c echo.Context) error {
	spaceID, err := pathID(c, "spaceId")
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	list, err := h.svc.ListReviews(c.Request().Context(), spaceID)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching reviews.")
	}
	return c.JSON(http.StatusOK, list)
}

// ListOwned handles GET /api/reservation/get: reservations made on the
// caller's spaces.
func (h *ReservationHandler) ListOwned(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	list, err := h.svc.ListForOwner(c.Request().Context(), uid)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching reservations.")
	}
	return c.JSON(http.StatusOK, list)
}

// ListMine handles GET /api/reservation/getuserreservation: reservations
// booked by the caller.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	list, err := h.svc.ListForUser(c.Request().Context(), uid)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching reservations.")
	}
	return c.JSON(http.StatusOK, list)
}

// ListAll handles GET /api/reservation/getallreservation.
func (h *ReservationHandler) ListAll(c echo.Context) error {
	list, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching reservations.")
	}
	return c.JSON(http.StatusOK, list)
}

// ListBySpace handles GET /api/reservation/getspacespecificreservation/:spaceId.
func (h *ReservationHandler) ListBySpace(c echo.Context) error {
	spaceID, err := pathID(c, "spaceId")
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	list, err := h.svc.ListBySpace(c.Request().Context(), spaceID)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching reservations.")
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /api/reservation/get/:reservationId.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	id, err := pathID(c, "reservationId")
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	res, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching the reservation.")
	}
	return c.JSON(http.StatusOK, res)
}

type transitionRequest struct {
	ReservationID flexID `json:"reservationId"`
}

// Cancel handles PATCH /api/reservation/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	return h.transition(c, model.StateCancelled)
}

// Confirm handles PATCH /api/reservation/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.transition(c, model.StateConfirmed)
}

// MarkReserved handles PATCH /api/reservation/reserved.  Clients cannot
// drive this edge, so the request is always refused with 409; the route
// stays for compatibility.
func (h *ReservationHandler) MarkReserved(c echo.Context) error {
	return h.transition(c, model.StateReserved)
}

func (h *ReservationHandler) transition(c echo.Context, to model.State) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return h.errs.Respond(c, err, "")
	}
	if req.ReservationID == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "reservationId is required."})
	}

	ctx := c.Request().Context()
	actor := service.Actor{UserID: uid}
	id := uint64(req.ReservationID)
	var res *model.Reservation
	switch to {
	case model.StateCancelled:
		res, err = h.svc.Cancel(ctx, id, actor)
	case model.StateConfirmed:
		res, err = h.svc.Confirm(ctx, id, actor)
	default:
		res, err = h.svc.MarkReserved(ctx, id, actor)
	}
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while updating the reservation.")
	}
	return c.JSON(http.StatusOK, envelope{Message: "Reservation status updated", Data: res})
}
