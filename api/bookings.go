package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vetrodar/cabinbooking/internal/domain"
	"github.com/vetrodar/cabinbooking/internal/pricing"
	"github.com/vetrodar/cabinbooking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type checkoutRequest struct {
	TripID     int64  `json:"trip_id"`
	Guests     int    `json:"guests"`
	Email      string `json:"email"`
	TotalCents int64  `json:"total_cents"`
}

type quoteRequest struct {
	Guests int `json:"guests"`
}

type bookingResponse struct {
	Token      string `json:"token"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expires_at"`
	TripID     int64  `json:"trip_id"`
	Guests     int    `json:"guests"`
	Cabins     int    `json:"cabins"`
	TotalCents int64  `json:"total_cents"`
	Email      string `json:"email"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.checkout)
	router.PUT("/:token", h.confirm)
	router.DELETE("/:token", h.cancel)
}

// RegisterQuotes hangs the advisory quote endpoint off the trips group.
func (h *BookingHandler) RegisterQuotes(router *gin.RouterGroup) {
	router.POST("/:id/quote", h.quote)
}

func (h *BookingHandler) quote(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), tripID, req.Guests)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	if !quote.Valid {
		status := http.StatusBadRequest
		if quote.Reason == pricing.ReasonNotEnoughCabins {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": quote.Message, "quote": quote})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *BookingHandler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), booking.CheckoutInput{
		TripID:     req.TripID,
		Guests:     req.Guests,
		Email:      req.Email,
		TotalCents: req.TotalCents,
	})
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	resp := toBookingResponse(result.Booking)
	resp.PaymentRef = result.PaymentRef
	c.JSON(http.StatusCreated, resp)
}

func (h *BookingHandler) confirm(c *gin.Context) {
	token := c.Param("token")
	booking, err := h.service.ConfirmBooking(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	token := c.Param("token")
	booking, err := h.service.CancelBooking(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Token:      b.Token,
		Status:     string(b.Status),
		ExpiresAt:  b.ExpiresAt.Format(time.RFC3339),
		TripID:     b.TripID,
		Guests:     b.Guests,
		Cabins:     b.Cabins,
		TotalCents: b.TotalCents,
		Email:      b.Email,
	}
}

// statusFromError maps service sentinels onto the HTTP contract: malformed
// input is the client's fault (400), losing an inventory race or submitting a
// stale price is a retryable conflict (409).
func statusFromError(err error) int {
	switch {
	case errors.Is(err, booking.ErrTripNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrEmailRequired), errors.Is(err, booking.ErrGroupTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotEnoughCabins), errors.Is(err, booking.ErrPriceMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
