package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type processPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

type refundBookingRequest struct {
	Amount *float64 `json:"amount"`
}

type refundRequest struct {
	PaymentIntentID string   `json:"payment_intent_id" binding:"required"`
	Amount          *float64 `json:"amount"`
}

type paymentMethodRequest struct {
	Number   string `json:"number" binding:"required"`
	ExpMonth int    `json:"exp_month" binding:"required"`
	ExpYear  int    `json:"exp_year" binding:"required"`
	CVC      string `json:"cvc"`
}

type intentResponse struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

type paymentResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Intent  *intentResponse `json:"intent,omitempty"`
	Booking bookingResponse `json:"booking"`
}

type reconcileResponse struct {
	Updated      bool            `json:"updated"`
	IntentStatus string          `json:"intent_status,omitempty"`
	Booking      bookingResponse `json:"booking"`
}

type refundResponse struct {
	ID              string  `json:"id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
}

func newIntentResponse(intent *domain.PaymentIntent) *intentResponse {
	if intent == nil {
		return nil
	}
	return &intentResponse{
		ID:       intent.ID,
		Amount:   domain.FromMinorUnits(intent.Amount),
		Currency: intent.Currency,
		Status:   string(intent.Status),
	}
}

func newRefundResponse(r *domain.Refund) refundResponse {
	return refundResponse{
		ID:              r.ID,
		PaymentIntentID: r.PaymentIntentID,
		Amount:          domain.FromMinorUnits(r.Amount),
		Status:          string(r.Status),
	}
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/bookings/:id/payments", h.process)
	router.POST("/bookings/:id/retry", h.retry)
	router.POST("/bookings/:id/reconcile", h.reconcile)
	router.POST("/bookings/:id/refunds", h.refundBooking)
	router.POST("/refunds", h.refund)
	router.POST("/payment-methods", h.tokenize)
}

// process answers 200 for a completed payment and 402 when the processor
// refused it. The booking is returned either way.
func (h *PaymentHandler) process(c *gin.Context) {
	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.service.ProcessPayment(c.Request.Context(), c.Param("id"), req.PaymentMethodID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := paymentResponse{
		Success: result.Success,
		Intent:  newIntentResponse(result.Intent),
		Booking: newBookingResponse(result.Booking),
	}
	if result.Success {
		c.JSON(http.StatusOK, resp)
		return
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		var gwErr *domain.GatewayError
		if errors.As(result.Err, &gwErr) {
			resp.Code = gwErr.Code
		}
	}
	c.JSON(http.StatusPaymentRequired, resp)
}

func (h *PaymentHandler) retry(c *gin.Context) {
	updated, err := h.service.RetryPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(updated))
}

func (h *PaymentHandler) reconcile(c *gin.Context) {
	result, err := h.service.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := reconcileResponse{Updated: result.Updated, Booking: newBookingResponse(result.Booking)}
	if result.Intent != nil {
		resp.IntentStatus = string(result.Intent.Status)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) refundBooking(c *gin.Context) {
	var req refundBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	refund, err := h.service.RefundBooking(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRefundResponse(refund))
}

func (h *PaymentHandler) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	refund, err := h.service.Refund(c.Request.Context(), req.PaymentIntentID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRefundResponse(refund))
}

func (h *PaymentHandler) tokenize(c *gin.Context) {
	var req paymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	method, err := h.service.TokenizeCard(c.Request.Context(), domain.CardDetails{
		Number:   req.Number,
		ExpMonth: req.ExpMonth,
		ExpYear:  req.ExpYear,
		CVC:      req.CVC,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, method)
}
