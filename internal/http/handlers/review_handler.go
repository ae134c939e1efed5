// README: Review handlers; passengers flag drivers, drivers flag passengers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/review"
)

type ReviewHandler struct {
	reviews *review.Service
}

func NewReviewHandler(svc *review.Service) *ReviewHandler {
	return &ReviewHandler{reviews: svc}
}

type reviewReq struct {
	Flag    string `json:"flag" binding:"required,review_flag"`
	Comment string `json:"comment" binding:"max=500"`
}

type reviewAction func(ctx context.Context, cmd review.Command) (*review.Review, error)

func (h *ReviewHandler) submit(c *gin.Context, action reviewAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	rv, err := action(c.Request.Context(), review.Command{
		BookingID: id,
		Actor:     caller(c),
		Flag:      req.Flag,
		Comment:   req.Comment,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rv)
}

// ReviewDriver handles POST /api/bookings/:id/review.
func (h *ReviewHandler) ReviewDriver(c *gin.Context) { h.submit(c, h.reviews.ReviewDriver) }

// RatePassenger handles POST /api/bookings/:id/rate-passenger.
func (h *ReviewHandler) RatePassenger(c *gin.Context) { h.submit(c, h.reviews.RatePassenger) }

// ForUser handles GET /api/users/:id/reviews.
func (h *ReviewHandler) ForUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reviews, err := h.reviews.ForUser(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if reviews == nil {
		reviews = []*review.Review{}
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": id, "stats": review.Summarize(reviews), "reviews": reviews})
}
