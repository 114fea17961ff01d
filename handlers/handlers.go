// Package handlers is the local HTTP surface the observer UI talks to:
// report submission, sync status, dashboard aggregates, and the websocket
// status stream.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"fieldsync/models"
	"fieldsync/remote"
	"fieldsync/submit"
	ws "fieldsync/websocket"
)

// MaxRecentReports caps the recent-activity feed size
const MaxRecentReports = 100

// ReportSubmitter accepts completed form submissions
type ReportSubmitter interface {
	Submit(ctx context.Context, sub submit.Submission) submit.Receipt
}

// SyncEngine exposes manual triggering and the current status
type SyncEngine interface {
	TriggerSync()
	Status() models.StatusSnapshot
}

// AggregateStore is the read-only dashboard side of the remote store
type AggregateStore interface {
	ListVenues(ctx context.Context) ([]models.Venue, error)
	DashboardSummary(ctx context.Context, userID string) (*models.DashboardSummary, error)
	RecentReports(ctx context.Context, userID string, limit int) ([]models.RecentReport, error)
	DepartmentStats(ctx context.Context, userID string) ([]models.DepartmentStats, error)
	ManagedUsers(ctx context.Context, managerID string) ([]models.ManagedUser, error)
	LocationPath(ctx context.Context, locationID string) ([]models.LocationPathEntry, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	submitter  ReportSubmitter
	engine     SyncEngine
	aggregates AggregateStore
	hub        *ws.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(submitter ReportSubmitter, engine SyncEngine, aggregates AggregateStore, hub *ws.Hub) *Handlers {
	return &Handlers{
		submitter:  submitter,
		engine:     engine,
		aggregates: aggregates,
		hub:        hub,
	}
}

// SubmitRequest is the payload schema for report submission
type SubmitRequest struct {
	ObserverID string                 `json:"observer_id" binding:"required"`
	VenueID    string                 `json:"venue_id" binding:"required"`
	Kind       string                 `json:"report_kind" binding:"required"`
	FormData   map[string]interface{} `json:"form_data"`
	Geo        *models.GeoPoint       `json:"geo"`
	Evidence   *EvidencePayload       `json:"evidence"`
}

// EvidencePayload carries a photo either as a data URI or raw fields
type EvidencePayload struct {
	DataURI string `json:"data_uri"`
	Name    string `json:"name"`
}

// SubmitReport handles POST /api/v1/reports
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req SubmitRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	kind := models.ReportKind(req.Kind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report_kind"})
		return
	}

	sub := submit.Submission{
		ObserverID: req.ObserverID,
		VenueID:    req.VenueID,
		Kind:       kind,
		FormData:   req.FormData,
		Geo:        req.Geo,
	}
	if req.Evidence != nil && req.Evidence.DataURI != "" {
		mimeType, data, err := models.DecodeEvidence(req.Evidence.DataURI)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "evidence is not a valid data URI"})
			return
		}
		sub.Evidence = data
		sub.EvidenceMIME = mimeType
		sub.EvidenceName = req.Evidence.Name
	}

	receipt := h.submitter.Submit(c.Request.Context(), sub)
	switch receipt.Outcome {
	case submit.OutcomeDelivered:
		c.JSON(http.StatusCreated, receipt)
	case submit.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, receipt)
	default:
		// Saved locally; will replay on the next sync pass.
		c.JSON(http.StatusAccepted, receipt)
	}
}

// SyncStatus handles GET /api/v1/sync/status
func (h *Handlers) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status())
}

// TriggerSync handles POST /api/v1/sync/trigger
func (h *Handlers) TriggerSync(c *gin.Context) {
	go h.engine.TriggerSync()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync triggered"})
}

// ListVenues handles GET /api/v1/venues. When the remote store has no
// venues yet (fresh install) a demo placeholder is returned so the form
// stays usable; reports against it are purged at sync time.
func (h *Handlers) ListVenues(c *gin.Context) {
	venues, err := h.aggregates.ListVenues(c.Request.Context())
	if err != nil {
		log.Warnf("Venue list unavailable, falling back to demo venue: %v", err)
		venues = nil
	}
	if len(venues) == 0 {
		venues = []models.Venue{{ID: "mock-1", Name: "Demo Venue (load fixtures)"}}
	}
	c.JSON(http.StatusOK, venues)
}

// DashboardSummary handles GET /api/v1/dashboard/summary
func (h *Handlers) DashboardSummary(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	summary, err := h.aggregates.DashboardSummary(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("Failed to fetch dashboard summary: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "dashboard summary unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RecentReports handles GET /api/v1/dashboard/recent
func (h *Handlers) RecentReports(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("n", "5"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'n' parameter. Must be a positive integer."})
		return
	}
	if limit > MaxRecentReports {
		limit = MaxRecentReports
	}

	reports, err := h.aggregates.RecentReports(c.Request.Context(), userID, limit)
	if err != nil {
		log.Errorf("Failed to fetch recent reports: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "recent activity unavailable"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// DepartmentStats handles GET /api/v1/dashboard/departments
func (h *Handlers) DepartmentStats(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	stats, err := h.aggregates.DepartmentStats(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("Failed to fetch department stats: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "department stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ManagedUsers handles GET /api/v1/dashboard/network
func (h *Handlers) ManagedUsers(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	users, err := h.aggregates.ManagedUsers(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("Failed to fetch managed users: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "observer network unavailable"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// LocationPath handles GET /api/v1/dashboard/location-path
func (h *Handlers) LocationPath(c *gin.Context) {
	locationID := c.Query("location_id")
	if locationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_id required"})
		return
	}
	path, err := h.aggregates.LocationPath(c.Request.Context(), locationID)
	if err != nil {
		log.Errorf("Failed to fetch location path: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "location path unavailable"})
		return
	}
	c.JSON(http.StatusOK, path)
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	connectedClients, _ := h.hub.GetStats()
	status := h.engine.Status()

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:           "healthy",
		Service:          "fieldsync",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: connectedClients,
		PendingReports:   status.Pending,
	})
}

// requireUser resolves the acting user from the X-Observer-ID header the UI
// session layer injects. Authentication itself is out of scope here.
func (h *Handlers) requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-Observer-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Observer-ID header required"})
		return "", false
	}
	return userID, true
}

var _ AggregateStore = (*remote.Client)(nil)
