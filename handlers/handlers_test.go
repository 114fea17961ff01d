package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"fieldsync/models"
	"fieldsync/submit"
	ws "fieldsync/websocket"
)

type stubSubmitter struct {
	lastSubmission submit.Submission
	receipt        submit.Receipt
}

func (s *stubSubmitter) Submit(ctx context.Context, sub submit.Submission) submit.Receipt {
	s.lastSubmission = sub
	return s.receipt
}

type stubEngine struct {
	triggered int
	status    models.StatusSnapshot
}

func (e *stubEngine) TriggerSync()                  { e.triggered++ }
func (e *stubEngine) Status() models.StatusSnapshot { return e.status }

type stubAggregates struct {
	venues    []models.Venue
	venuesErr error
	summary   *models.DashboardSummary
	lastLimit int
}

func (a *stubAggregates) ListVenues(ctx context.Context) ([]models.Venue, error) {
	return a.venues, a.venuesErr
}

func (a *stubAggregates) DashboardSummary(ctx context.Context, userID string) (*models.DashboardSummary, error) {
	if a.summary == nil {
		return nil, fmt.Errorf("no summary")
	}
	return a.summary, nil
}

func (a *stubAggregates) RecentReports(ctx context.Context, userID string, limit int) ([]models.RecentReport, error) {
	a.lastLimit = limit
	return []models.RecentReport{}, nil
}

func (a *stubAggregates) DepartmentStats(ctx context.Context, userID string) ([]models.DepartmentStats, error) {
	return []models.DepartmentStats{}, nil
}

func (a *stubAggregates) ManagedUsers(ctx context.Context, managerID string) ([]models.ManagedUser, error) {
	return []models.ManagedUser{}, nil
}

func (a *stubAggregates) LocationPath(ctx context.Context, locationID string) ([]models.LocationPathEntry, error) {
	return []models.LocationPathEntry{}, nil
}

func newTestRouter(submitter *stubSubmitter, engine *stubEngine, aggregates *stubAggregates) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(submitter, engine, aggregates, ws.NewHub())

	router := gin.New()
	router.POST("/api/v1/reports", h.SubmitReport)
	router.GET("/api/v1/venues", h.ListVenues)
	router.GET("/api/v1/sync/status", h.SyncStatus)
	router.GET("/api/v1/dashboard/summary", h.DashboardSummary)
	router.GET("/api/v1/dashboard/recent", h.RecentReports)
	return router
}

func TestSubmitReportDeliveredAndQueuedStatusCodes(t *testing.T) {
	testCases := []struct {
		name         string
		receipt      submit.Receipt
		expectedCode int
	}{
		{
			name:         "delivered",
			receipt:      submit.Receipt{Outcome: submit.OutcomeDelivered, ReportID: "rep-1"},
			expectedCode: http.StatusCreated,
		}, {
			name:         "queued offline",
			receipt:      submit.Receipt{Outcome: submit.OutcomeQueuedOffline, LocalID: 4},
			expectedCode: http.StatusAccepted,
		}, {
			name:         "queued after error",
			receipt:      submit.Receipt{Outcome: submit.OutcomeQueuedAfterError, LocalID: 5},
			expectedCode: http.StatusAccepted,
		}, {
			name:         "storage unavailable",
			receipt:      submit.Receipt{Outcome: submit.OutcomeFailed},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, testCase := range testCases {
		submitter := &stubSubmitter{receipt: testCase.receipt}
		router := newTestRouter(submitter, &stubEngine{}, &stubAggregates{})

		body := `{"observer_id":"obs-1","venue_id":"real-venue-1","report_kind":"opening","form_data":{"opened_on_time":true}}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
		router.ServeHTTP(w, req)

		if w.Code != testCase.expectedCode {
			t.Errorf("%s: expected status %d, got %d (%s)", testCase.name, testCase.expectedCode, w.Code, w.Body)
		}
	}
}

func TestSubmitReportDecodesEvidence(t *testing.T) {
	submitter := &stubSubmitter{receipt: submit.Receipt{Outcome: submit.OutcomeDelivered}}
	router := newTestRouter(submitter, &stubEngine{}, &stubAggregates{})

	dataURI := models.EncodeEvidence("image/png", []byte{1, 2, 3, 4})
	body := fmt.Sprintf(`{"observer_id":"obs-1","venue_id":"real-venue-1","report_kind":"midday","evidence":{"data_uri":%q,"name":"x.png"}}`, dataURI)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body)
	}
	if submitter.lastSubmission.EvidenceMIME != "image/png" || len(submitter.lastSubmission.Evidence) != 4 {
		t.Errorf("evidence not decoded into submission: %+v", submitter.lastSubmission)
	}
}

func TestSubmitReportRejectsUnknownKind(t *testing.T) {
	router := newTestRouter(&stubSubmitter{}, &stubEngine{}, &stubAggregates{})

	body := `{"observer_id":"obs-1","venue_id":"real-venue-1","report_kind":"lunch"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown kind, got %d", w.Code)
	}
}

func TestListVenuesFallsBackToDemoVenue(t *testing.T) {
	router := newTestRouter(&stubSubmitter{}, &stubEngine{}, &stubAggregates{venuesErr: fmt.Errorf("store down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/venues", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var venues []models.Venue
	if err := json.Unmarshal(w.Body.Bytes(), &venues); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(venues) != 1 || !models.IsPlaceholderVenue(venues[0].ID) {
		t.Errorf("expected the demo placeholder venue, got %+v", venues)
	}
}

func TestSyncStatusReflectsEngine(t *testing.T) {
	engine := &stubEngine{status: models.StatusSnapshot{Pending: 3, State: models.SyncError, LastError: "boom"}}
	router := newTestRouter(&stubSubmitter{}, engine, &stubAggregates{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	router.ServeHTTP(w, req)

	var status models.StatusSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if status.Pending != 3 || status.State != models.SyncError {
		t.Errorf("unexpected status payload: %+v", status)
	}
}

func TestRecentReportsRejectsNonPositiveLimit(t *testing.T) {
	aggregates := &stubAggregates{}
	router := newTestRouter(&stubSubmitter{}, &stubEngine{}, aggregates)

	for _, n := range []string{"-1", "0", "abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/recent?n="+n, nil)
		req.Header.Set("X-Observer-ID", "obs-1")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("n=%s: expected 400, got %d", n, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/recent?n=12", nil)
	req.Header.Set("X-Observer-ID", "obs-1")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid limit, got %d (%s)", w.Code, w.Body)
	}
	if aggregates.lastLimit != 12 {
		t.Errorf("expected limit 12 to reach the store, got %d", aggregates.lastLimit)
	}
}

func TestDashboardSummaryRequiresObserverHeader(t *testing.T) {
	router := newTestRouter(&stubSubmitter{}, &stubEngine{}, &stubAggregates{summary: &models.DashboardSummary{TotalReports: 10}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without observer header, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary", nil)
	req.Header.Set("X-Observer-ID", "obs-1")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with observer header, got %d (%s)", w.Code, w.Body)
	}
}
