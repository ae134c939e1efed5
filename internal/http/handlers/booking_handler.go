// README: Booking handlers for view, confirm, reject, cancel and passenger leg completion.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

type BookingHandler struct {
	rides *ride.Service
	loc   *time.Location
}

func NewBookingHandler(svc *ride.Service, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{rides: svc, loc: loc}
}

// Get handles GET /api/bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, r, err := h.rides.GetBooking(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": newBookingView(b, h.loc), "ride": newRideView(r, h.loc)})
}

type bookingAction func(ctx context.Context, bookingID, actor types.ID) (*ride.Booking, error)

func (h *BookingHandler) transition(c *gin.Context, action bookingAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := action(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newBookingView(b, h.loc))
}

func (h *BookingHandler) Confirm(c *gin.Context) { h.transition(c, h.rides.ConfirmBooking) }

func (h *BookingHandler) Reject(c *gin.Context) { h.transition(c, h.rides.RejectBooking) }

// Cancel serves both the passenger withdrawing and the driver removing a passenger.
func (h *BookingHandler) Cancel(c *gin.Context) { h.transition(c, h.rides.CancelBooking) }

// Complete handles POST /api/bookings/:id/complete (passenger reached their drop-off).
func (h *BookingHandler) Complete(c *gin.Context) { h.transition(c, h.rides.CompletePassengerLeg) }
