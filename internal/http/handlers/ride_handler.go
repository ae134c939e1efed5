// README: Ride handlers for offer, search, lifecycle, settlement, summary and sweep.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

type RideHandler struct {
	rides *ride.Service
	loc   *time.Location
}

func NewRideHandler(svc *ride.Service, loc *time.Location) *RideHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RideHandler{rides: svc, loc: loc}
}

type offerRideReq struct {
	VehicleID   string  `json:"vehicle_id" binding:"required"`
	Origin      string  `json:"origin" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
	StartTime   string  `json:"start_time" binding:"required"`
	Seats       int     `json:"seats" binding:"required,min=1"`
	DistanceKm  float64 `json:"distance_km" binding:"required,gt=0,lte=5000"`
	Package     string  `json:"package_type" binding:"required,package_type"`
}

// Offer handles POST /api/rides.
func (h *RideHandler) Offer(c *gin.Context) {
	var req offerRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if !isValidID(req.VehicleID) {
		writeError(c, http.StatusBadRequest, "invalid vehicle_id")
		return
	}
	start, err := parseStartTime(req.StartTime, h.loc)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	pkg, _ := types.ParsePackage(req.Package)
	r, err := h.rides.OfferRide(c.Request.Context(), ride.OfferCommand{
		DriverID:    caller(c),
		VehicleID:   types.ID(req.VehicleID),
		Origin:      req.Origin,
		Destination: req.Destination,
		StartTime:   start,
		Seats:       req.Seats,
		DistanceKm:  req.DistanceKm,
		Package:     pkg,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRideView(r, h.loc))
}

// Search handles GET /api/rides.
func (h *RideHandler) Search(c *gin.Context) {
	q := ride.SearchQuery{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Package:     types.PackageType(c.Query("package")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		q.Limit = n
	}
	rides, err := h.rides.SearchRides(c.Request.Context(), q)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": newRideViews(rides, h.loc)})
}

func (h *RideHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GetRide(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRideView(r, h.loc))
}

func (h *RideHandler) Bookings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	bookings, err := h.rides.RideBookings(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": newBookingViews(bookings, h.loc)})
}

type bookReq struct {
	Seats   int    `json:"seats" binding:"required,min=1"`
	Pickup  string `json:"pickup" binding:"max=200"`
	Drop    string `json:"drop" binding:"max=200"`
	Contact string `json:"contact" binding:"max=50"`
}

// Book handles POST /api/rides/:id/bookings.
func (h *RideHandler) Book(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	b, err := h.rides.RequestBooking(c.Request.Context(), ride.BookCommand{
		RideID:      id,
		PassengerID: caller(c),
		Seats:       req.Seats,
		Pickup:      req.Pickup,
		Drop:        req.Drop,
		Contact:     req.Contact,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newBookingView(b, h.loc))
}

type rideAction func(ctx context.Context, rideID, actor types.ID) (*ride.Ride, error)

func (h *RideHandler) transition(c *gin.Context, action rideAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := action(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRideView(r, h.loc))
}

// Start handles POST /api/rides/:id/start.
func (h *RideHandler) Start(c *gin.Context) { h.transition(c, h.rides.StartRide) }

// End handles POST /api/rides/:id/end.
func (h *RideHandler) End(c *gin.Context) { h.transition(c, h.rides.EndRide) }

// Cancel handles POST /api/rides/:id/cancel.
func (h *RideHandler) Cancel(c *gin.Context) { h.transition(c, h.rides.CancelRide) }

func (h *RideHandler) Settlement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.rides.Settlement(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// Summary handles GET /api/me/summary.
func (h *RideHandler) Summary(c *gin.Context) {
	sum, err := h.rides.Summary(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"active_rides":    newRideViews(sum.ActiveRides, h.loc),
		"past_rides":      newRideViews(sum.PastRides, h.loc),
		"active_bookings": newBookingViews(sum.ActiveBookings, h.loc),
		"past_bookings":   newBookingViews(sum.PastBookings, h.loc),
		"sweep":           sum.Sweep,
	})
}

// Sweep handles POST /api/admin/sweep; partial failures return 500 with the counts so far.
func (h *RideHandler) Sweep(c *gin.Context) {
	report, err := h.rides.SweepNow(c.Request.Context())
	body := gin.H{
		"auto_completed": report.AutoCompleted,
		"repaired":       report.Repaired,
		"failed":         report.Failed,
		"completed":      report.Completed(),
	}
	if err != nil {
		_ = c.Error(err)
		body["error"] = "sweep finished with errors"
		writeJSON(c, http.StatusInternalServerError, body)
		return
	}
	writeJSON(c, http.StatusOK, body)
}
