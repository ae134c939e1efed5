// README: Wallet handlers for ride expenses.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/wallet"
)

type WalletHandler struct {
	wallet *wallet.Service
}

func NewWalletHandler(svc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: svc}
}

type expenseReq struct {
	Fuel        float64 `json:"fuel_cost" binding:"gte=0,lte=10000000"`
	Toll        float64 `json:"toll_cost" binding:"gte=0,lte=10000000"`
	Other       float64 `json:"other_cost" binding:"gte=0,lte=10000000"`
	Description string  `json:"description" binding:"max=200"`
}

// Add handles POST /api/rides/:id/expenses.
func (h *WalletHandler) Add(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req expenseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	e, err := h.wallet.AddExpense(c.Request.Context(), wallet.ExpenseCommand{
		RideID:      id,
		Actor:       caller(c),
		Fuel:        req.Fuel,
		Toll:        req.Toll,
		Other:       req.Other,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, e)
}

func (h *WalletHandler) List(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l, err := h.wallet.List(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, l)
}
