package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"booking-service/internal/domain"
	"booking-service/internal/notify"
)

// BookingResult is what a customer sees after booking.
type BookingResult struct {
	ID            int64                `json:"id"`
	Date          string               `json:"date"`
	StartTime     string               `json:"start_time"`
	EndTime       string               `json:"end_time"`
	Service       string               `json:"service"`
	Address       string               `json:"address,omitempty"`
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email"`
	Status        domain.BookingStatus `json:"status"`
}

// Book consumes an open slot for the customer in req. Closing the slot and
// recording the booking happen atomically in the store; the owner is notified
// only after that succeeds and notification failures never fail the booking.
func (a *App) Book(ctx context.Context, req domain.BookingRequest, claims *Claims) (BookingResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return BookingResult{}, err
	}

	slot, err := a.Store.GetSlot(ctx, req.AvailabilityID)
	if errors.Is(err, domain.ErrSlotNotFound) || (err == nil && !slot.IsOpen) {
		return BookingResult{}, domain.ErrSlotUnavailable
	}
	if err != nil {
		return BookingResult{}, err
	}

	userID, err := a.customer(ctx, claims, req.CustomerName, req.CustomerEmail)
	if err != nil {
		return BookingResult{}, err
	}

	b, err := a.Store.BookSlot(ctx, domain.NewBooking{
		SlotID:  req.AvailabilityID,
		UserID:  userID,
		Service: req.Service,
		Address: req.Address,
	})
	if err != nil {
		return BookingResult{}, err
	}

	a.notifyBooking(ctx, notify.BookingEvent{
		BookingID:     b.ID,
		Service:       b.Service,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Address:       b.Address,
	})

	return BookingResult{
		ID:            b.ID,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Service:       b.Service,
		Address:       b.Address,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Status:        b.Status,
	}, nil
}

func (a *App) notifyBooking(ctx context.Context, ev notify.BookingEvent) {
	if a.Dispatcher == nil {
		return
	}
	if err := a.Dispatcher.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
		a.logger().Error("failed to dispatch booking notification",
			zap.Int64("booking_id", ev.BookingID), zap.Error(err))
	}
}

// Cancel marks a booking CANCELLED. Only the owner or the booking's user may do so.
// The slot stays closed until the owner reopens it.
func (a *App) Cancel(ctx context.Context, id int64, claims *Claims) error {
	b, err := a.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !claims.Owner() && (claims == nil || claims.ID != b.UserID) {
		return domain.Forbidden("Not allowed to cancel this booking.")
	}
	return a.Store.CancelBooking(ctx, id)
}

// POST /bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req domain.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "Missing booking data.")
		return
	}
	res, err := a.Book(c.Request.Context(), req, caller(c))
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /bookings/me
func (a *App) MyBookingsHandler(c *gin.Context) {
	bookings, err := a.Store.ListBookingsByUser(c.Request.Context(), caller(c).ID)
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GET /bookings/all
func (a *App) AllBookingsHandler(c *gin.Context) {
	bookings, err := a.Store.ListAllBookings(c.Request.Context())
	if err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// DELETE /bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		a.badRequest(c, "Invalid booking ID.")
		return
	}
	if err := a.Cancel(c.Request.Context(), id, caller(c)); err != nil {
		a.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": domain.StatusCancelled})
}
