package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spacebook/reservation-core/internal/service"
)

// WithdrawHandler exposes earnings withdrawal for space owners.
type WithdrawHandler struct {
	svc  *service.WithdrawalService
	errs ErrorResponder
}

func NewWithdrawHandler(svc *service.WithdrawalService, errs ErrorResponder) *WithdrawHandler {
	if svc == nil {
		panic("nil service passed to NewWithdrawHandler")
	}
	return &WithdrawHandler{svc: svc, errs: errs}
}

type withdrawRequest struct {
	AccountType    flexString `json:"accountType"`
	AccountName    flexString `json:"accountName"`
	AccountNumber  flexString `json:"accountNumber"`
	WithdrawAmount flexString `json:"withdrawAmount"`
}

// Request handles POST /api/withdraw.
func (h *WithdrawHandler) Request(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	var req withdrawRequest
	if err := c.Bind(&req); err != nil {
		return h.errs.Respond(c, err, "")
	}
	p, err := h.svc.RequestWithdrawal(c.Request().Context(), service.WithdrawalRequest{
		UserID:         uid,
		AccountType:    string(req.AccountType),
		AccountName:    string(req.AccountName),
		AccountNumber:  string(req.AccountNumber),
		WithdrawAmount: string(req.WithdrawAmount),
	})
	if err != nil {
		return h.errs.Respond(c, err, "An internal server error occurred while processing the withdraw request.")
	}
	return c.JSON(http.StatusOK, envelope{Message: "Withdraw request submitted successfully.", Data: p})
}

// List handles GET /api/withdraw.
func (h *WithdrawHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "User ID is required."})
	}
	list, err := h.svc.ListWithdrawals(c.Request().Context(), uid)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while fetching withdraw requests.")
	}
	return c.JSON(http.StatusOK, list)
}

// Balance handles GET /api/withdraw/balance.
func (h *WithdrawHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.errs.Respond(c, err, "")
	}
	bal, err := h.svc.Balance(c.Request().Context(), uid)
	if err != nil {
		return h.errs.Respond(c, err, "An error occurred while computing the balance.")
	}
	return c.JSON(http.StatusOK, bal)
}
