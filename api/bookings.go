package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/pricing"
	"github.com/Domenick1991/staybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	service booking.BookingUseCase
}

type stayRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Travelers int    `json:"travelers" binding:"required,min=1"`
	RoomType  string `json:"room_type" binding:"required"`
}

func (r stayRequest) dates() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date: expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date: expected YYYY-MM-DD")
	}
	return start, end, nil
}

type createBookingRequest struct {
	stayRequest
	UserID      string `json:"user_id" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type quoteResponse struct {
	TotalPrice float64 `json:"total_price"`
	Nights     int     `json:"nights"`
}

type bookingResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Destination     string  `json:"destination"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	RoomType        string  `json:"room_type"`
	Travelers       int     `json:"travelers"`
	TotalPrice      float64 `json:"total_price"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"payment_status"`
	PaymentIntentID string  `json:"payment_intent_id,omitempty"`
	RefundedAmount  float64 `json:"refunded_amount"`
	CreatedAt       string  `json:"created_at"`
}

type statsResponse struct {
	TotalBookings     int64   `json:"total_bookings"`
	PendingBookings   int64   `json:"pending_bookings"`
	ConfirmedBookings int64   `json:"confirmed_bookings"`
	CancelledBookings int64   `json:"cancelled_bookings"`
	PaymentsCompleted int64   `json:"payments_completed"`
	PaymentsPending   int64   `json:"payments_pending"`
	PaymentsFailed    int64   `json:"payments_failed"`
	TotalRevenue      float64 `json:"total_revenue"`
	RefundedAmount    float64 `json:"refunded_amount"`
	PendingAmount     float64 `json:"pending_amount"`
}

func newStatsResponse(s *domain.BookingStats) statsResponse {
	return statsResponse{
		TotalBookings:     s.Total,
		PendingBookings:   s.Pending,
		ConfirmedBookings: s.Confirmed,
		CancelledBookings: s.Cancelled,
		PaymentsCompleted: s.PaymentsCompleted,
		PaymentsPending:   s.PaymentsPending,
		PaymentsFailed:    s.PaymentsFailed,
		TotalRevenue:      s.Revenue,
		RefundedAmount:    s.RefundedAmount,
		PendingAmount:     s.PendingAmount,
	}
}

func newBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		Destination:     b.Destination,
		StartDate:       b.StartDate.Format(dateLayout),
		EndDate:         b.EndDate.Format(dateLayout),
		RoomType:        string(b.RoomType),
		Travelers:       b.Travelers,
		TotalPrice:      b.TotalPrice,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaymentIntentID: b.PaymentIntentID,
		RefundedAmount:  b.RefundedAmount,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/quotes", h.quote)
	router.POST("/bookings", h.create)
	router.GET("/bookings", h.list)
	router.GET("/bookings/stats", h.stats)
	router.GET("/bookings/:id", h.get)
	router.DELETE("/bookings/:id", h.cancel)
	router.GET("/users/:userId/bookings", h.listByUser)
}

func (h *BookingHandler) quote(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, end, err := req.dates()
	if err != nil {
		badRequest(c, err)
		return
	}

	total, err := h.service.Quote(booking.QuoteInput{
		StartDate: start,
		EndDate:   end,
		Travelers: req.Travelers,
		RoomType:  domain.RoomType(req.RoomType),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{TotalPrice: total, Nights: pricing.Nights(start, end)})
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, end, err := req.dates()
	if err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:      req.UserID,
		Destination: req.Destination,
		StartDate:   start,
		EndDate:     end,
		Travelers:   req.Travelers,
		RoomType:    domain.RoomType(req.RoomType),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(found))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(cancelled))
}

func (h *BookingHandler) listByUser(c *gin.Context) {
	bookings, err := h.service.ListUserBookings(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newBookingList(bookings))
}

// list serves GET /bookings?status=&limit=.
func (h *BookingHandler) list(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, errors.New("limit: expected an integer"))
			return
		}
		limit = n
	}
	status := domain.BookingStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))

	bookings, err := h.service.ListBookings(c.Request.Context(), status, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingList(bookings))
}

func (h *BookingHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatsResponse(stats))
}

func newBookingList(bookings []domain.Booking) []bookingResponse {
	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, newBookingResponse(&bookings[i]))
	}
	return resp
}
