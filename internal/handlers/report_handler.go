package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/services"
)

// ReportHandler serves completed reports and drafts.
type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CreateReport maneja POST /api/reports
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var partial models.Report
	if err := c.ShouldBindJSON(&partial); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusCreated, h.reports.CreateReport(c.Request.Context(), actor(c), partial))
}

// GetReport maneja GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.GetReport(c.Request.Context(), actor(c), c.Param("id")))
}

// GetReportByNumber maneja GET /api/reports/numero/:numero
func (h *ReportHandler) GetReportByNumber(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.GetReportByNumber(c.Request.Context(), actor(c), c.Param("numero")))
}

// SearchReports maneja GET /api/reports
func (h *ReportHandler) SearchReports(c *gin.Context) {
	var f models.ReportFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.reports.SearchReports(c.Request.Context(), actor(c), f))
}

// Stats maneja GET /api/reports/stats
func (h *ReportHandler) Stats(c *gin.Context) {
	var f models.ReportFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.reports.Stats(c.Request.Context(), actor(c), f))
}

// UpdateReport maneja PATCH /api/reports/:id
func (h *ReportHandler) UpdateReport(c *gin.Context) {
	var patch models.ReportPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.reports.UpdateReport(c.Request.Context(), actor(c), c.Param("id"), patch))
}

// DeleteReport maneja DELETE /api/reports/:id
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.DeleteReport(c.Request.Context(), actor(c), c.Param("id")))
}

// ListDrafts maneja GET /api/drafts
func (h *ReportHandler) ListDrafts(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.ListDrafts(c.Request.Context(), actor(c)))
}

// GetDraft maneja GET /api/drafts/:id
func (h *ReportHandler) GetDraft(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.GetDraft(c.Request.Context(), actor(c), c.Param("id")))
}

// SaveDraft maneja POST /api/drafts y PUT /api/drafts/:id
func (h *ReportHandler) SaveDraft(c *gin.Context) {
	var draft models.PendingReport
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}
	if id := c.Param("id"); id != "" {
		draft.ID = id
	}
	respond(c, http.StatusOK, h.reports.SaveDraft(c.Request.Context(), actor(c), draft))
}

// CancelDraft maneja DELETE /api/drafts/:id
func (h *ReportHandler) CancelDraft(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.CancelDraft(c.Request.Context(), actor(c), c.Param("id")))
}

// CompleteDraft maneja POST /api/drafts/:id/complete. The body, optional,
// carries last-minute additions to the report.
func (h *ReportHandler) CompleteDraft(c *gin.Context) {
	var extra models.ReportPatch
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&extra); err != nil {
			badRequest(c, err)
			return
		}
	}
	respond(c, http.StatusCreated, h.reports.CompletePendingReport(c.Request.Context(), actor(c), c.Param("id"), extra))
}

// Notifications maneja GET /api/drafts/notifications
func (h *ReportHandler) Notifications(c *gin.Context) {
	respond(c, http.StatusOK, h.reports.Notifications(c.Request.Context(), actor(c)))
}

// CleanupDrafts maneja POST /api/drafts/cleanup?days=N
func (h *ReportHandler) CleanupDrafts(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, h.reports.CleanupDrafts(c.Request.Context(), actor(c), days))
}

// Register mounts the report and draft routes. rg must be authenticated.
func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.GET("", h.SearchReports)
		reports.POST("", h.CreateReport)
		reports.GET("/stats", h.Stats)
		reports.GET("/numero/:numero", h.GetReportByNumber)
		reports.GET("/:id", h.GetReport)
		reports.PATCH("/:id", h.UpdateReport)
		reports.DELETE("/:id", h.DeleteReport)
	}

	drafts := rg.Group("/drafts")
	{
		drafts.GET("", h.ListDrafts)
		drafts.POST("", h.SaveDraft)
		drafts.GET("/notifications", h.Notifications)
		drafts.POST("/cleanup", h.CleanupDrafts)
		drafts.GET("/:id", h.GetDraft)
		drafts.PUT("/:id", h.SaveDraft)
		drafts.DELETE("/:id", h.CancelDraft)
		drafts.POST("/:id/complete", h.CompleteDraft)
	}
}
