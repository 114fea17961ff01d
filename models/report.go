package models

import (
	"strings"
	"time"
)

// ReportKind identifies the phase of election day a report covers
type ReportKind string

const (
	ReportKindOpening ReportKind = "opening"
	ReportKindMidday  ReportKind = "midday"
	ReportKindClosing ReportKind = "closing"
)

// Valid reports whether k is one of the known report kinds
func (k ReportKind) Valid() bool {
	switch k {
	case ReportKindOpening, ReportKindMidday, ReportKindClosing:
		return true
	}
	return false
}

// PlaceholderMarker appears in demo venue ids seeded when the remote store
// has no real venues. Reports against such venues can never pass the remote
// store's referential-integrity checks.
const PlaceholderMarker = "mock-"

// IsPlaceholderVenue reports whether a venue id refers to a demo venue
func IsPlaceholderVenue(venueID string) bool {
	return strings.Contains(venueID, PlaceholderMarker)
}

// Form-data keys carried by incident reports
const (
	FormKeyIsIncident  = "is_incident"
	FormKeyCategory    = "category"
	FormKeySeverity    = "severity"
	FormKeyDescription = "description"
)

// GeoPoint is a best-effort capture location
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PendingReport is one entry of the local offline queue. LocalID is assigned
// by the queue at enqueue time and never leaves the device.
type PendingReport struct {
	LocalID       int64                  `json:"local_id,omitempty"`
	ObserverID    string                 `json:"observer_id"`
	VenueID       string                 `json:"venue_id"`
	Kind          ReportKind             `json:"report_kind"`
	CapturedAt    time.Time              `json:"captured_at"`
	FormData      map[string]interface{} `json:"form_data"`
	Geo           *GeoPoint              `json:"geo,omitempty"`
	EvidenceImage string                 `json:"evidence_image,omitempty"`
}

// IsIncident reports whether the entry carries the incident marker in its
// form data
func (r *PendingReport) IsIncident() bool {
	v, ok := r.FormData[FormKeyIsIncident]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// IncidentDetail builds the dependent incident record for a synced report,
// filling the same defaults the live submission form would have filled.
func (r *PendingReport) IncidentDetail(reportID, evidenceURL string) IncidentDetail {
	return IncidentDetail{
		ReportID:    reportID,
		Category:    formString(r.FormData, FormKeyCategory, "other"),
		Severity:    formString(r.FormData, FormKeySeverity, "low"),
		Description: formString(r.FormData, FormKeyDescription, "synced from device"),
		EvidenceURL: evidenceURL,
	}
}

func formString(form map[string]interface{}, key, fallback string) string {
	if v, ok := form[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// RemoteReport is the parent record shape the remote store accepts
type RemoteReport struct {
	ObserverID string                 `json:"observer_id"`
	VenueID    string                 `json:"venue_id"`
	Kind       ReportKind             `json:"report_kind"`
	CapturedAt time.Time              `json:"captured_at"`
	FormData   map[string]interface{} `json:"form_data"`
	Status     string                 `json:"status"`
}

// StatusPending is the moderation status every new report is created with.
// It is a server-side state, unrelated to local sync state.
const StatusPending = "pending"

// IncidentDetail is the dependent record written for incident reports
type IncidentDetail struct {
	ReportID    string `json:"report_id"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	EvidenceURL string `json:"evidence_photo_url,omitempty"`
}

// Venue is a polling station the form can report against
type Venue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SyncState is the outcome surface of the sync engine
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncRunning SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

// StatusSnapshot is what the sync status indicator renders: queue depth and
// the last pass outcome
type StatusSnapshot struct {
	Pending   int       `json:"pending"`
	State     SyncState `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BroadcastMessage represents a message sent to WebSocket clients
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
	PendingReports   int    `json:"pending_reports"`
}
