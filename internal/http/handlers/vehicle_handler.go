// README: Vehicle handlers for the catalog and the caller's registered cars.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/vehicle"
)

type VehicleHandler struct {
	vehicles *vehicle.Service
}

func NewVehicleHandler(svc *vehicle.Service) *VehicleHandler {
	return &VehicleHandler{vehicles: svc}
}

func (h *VehicleHandler) Catalog(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"models": h.vehicles.Catalog()})
}

type registerVehicleReq struct {
	Make         string `json:"make" binding:"required"`
	Model        string `json:"model" binding:"required"`
	Year         int    `json:"year" binding:"required"`
	Color        string `json:"color" binding:"required,max=30"`
	LicensePlate string `json:"license_plate" binding:"required,max=20"`
}

// Register handles POST /api/vehicles.
func (h *VehicleHandler) Register(c *gin.Context) {
	var req registerVehicleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	v, err := h.vehicles.Register(c.Request.Context(), vehicle.RegisterCommand{
		OwnerID:      caller(c),
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		Color:        req.Color,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, v)
}

func (h *VehicleHandler) List(c *gin.Context) {
	list, err := h.vehicles.List(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if list == nil {
		list = []*vehicle.Vehicle{}
	}
	writeJSON(c, http.StatusOK, gin.H{"vehicles": list})
}
