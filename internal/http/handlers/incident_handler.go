// README: Incident handlers; reports, SOS alerts and the admin safety queue.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/incident"
	"carpool/internal/types"
)

type IncidentHandler struct {
	incidents *incident.Service
}

func NewIncidentHandler(svc *incident.Service) *IncidentHandler {
	return &IncidentHandler{incidents: svc}
}

type reportReq struct {
	ReportType    string `json:"report_type" binding:"required"`
	Subject       string `json:"subject" binding:"required"`
	Description   string `json:"description" binding:"required"`
	EmergencyType string `json:"emergency_type"`
	Location      string `json:"location"`
}

type sosReq struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Submit handles POST /api/incidents.
func (h *IncidentHandler) Submit(c *gin.Context) {
	var req reportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	rep, err := h.incidents.Submit(c.Request.Context(), incident.SubmitCommand{
		UserID:        caller(c),
		Kind:          req.ReportType,
		Subject:       req.Subject,
		Description:   req.Description,
		EmergencyType: req.EmergencyType,
		Location:      req.Location,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rep)
}

// Mine handles GET /api/incidents.
func (h *IncidentHandler) Mine(c *gin.Context) {
	reports, err := h.incidents.ForUser(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reports": nonNil(reports)})
}

// TriggerSOS handles POST /api/sos/trigger. The body is optional.
func (h *IncidentHandler) TriggerSOS(c *gin.Context) {
	var req sosReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}
	alert, err := h.incidents.TriggerSOS(c.Request.Context(), incident.SOSCommand{
		UserID:   caller(c),
		Location: req.Location,
		Message:  req.Message,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, alert)
}

// CancelSOS handles POST /api/sos/cancel.
func (h *IncidentHandler) CancelSOS(c *gin.Context) {
	alert, err := h.incidents.CancelSOS(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, alert)
}

// Queue handles GET /api/admin/incidents?status=.
func (h *IncidentHandler) Queue(c *gin.Context) {
	ctx := c.Request.Context()
	reports, err := h.incidents.List(ctx, c.Query("status"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	alerts, err := h.incidents.ActiveSOS(ctx)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"reports": nonNil(reports), "active_sos": nonNil(alerts)})
}

type closeAction func(ctx context.Context, id, admin types.ID) (*incident.Report, error)

func (h *IncidentHandler) close(c *gin.Context, action closeAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rep, err := action(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rep)
}

// Resolve handles POST /api/admin/incidents/:id/resolve.
func (h *IncidentHandler) Resolve(c *gin.Context) { h.close(c, h.incidents.Resolve) }

// Dismiss handles POST /api/admin/incidents/:id/dismiss.
func (h *IncidentHandler) Dismiss(c *gin.Context) { h.close(c, h.incidents.Dismiss) }

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
