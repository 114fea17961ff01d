package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregation snapshots returned by the remote store's dashboard RPCs.
// They are read-only and eventually consistent: a report still sitting in
// the local queue is invisible to them until it syncs.

// DashboardSummary is the headline stat block for an observer's jurisdiction
type DashboardSummary struct {
	TotalReports    int64           `json:"total_reports"`
	CriticalAlerts  int64           `json:"critical_alerts"`
	TotalVenues     int64           `json:"total_venues"`
	ActiveObservers int64           `json:"active_observers"`
	ReviewRate      decimal.Decimal `json:"review_rate"`
}

// RecentReport is one row of the recent-activity feed
type RecentReport struct {
	ID           string     `json:"id"`
	VenueName    string     `json:"venue_name"`
	Kind         ReportKind `json:"report_kind"`
	ObserverName string     `json:"observer_name"`
	CapturedAt   time.Time  `json:"captured_at"`
	Status       string     `json:"status"`
}

// DepartmentStats is per-department coverage
type DepartmentStats struct {
	Department string          `json:"department"`
	Reports    int64           `json:"reports"`
	Venues     int64           `json:"venues"`
	Coverage   decimal.Decimal `json:"coverage"`
}

// ManagedUser is an observer supervised by the current manager
type ManagedUser struct {
	ID         string     `json:"id"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// LocationPathEntry is one level of the territorial hierarchy, root first
type LocationPathEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}
