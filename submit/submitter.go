// Package submit turns a completed form submission into either an immediate
// remote write or a durable local queue entry. A report handed to the
// submitter is never silently dropped: every path ends in a confirmed remote
// insert, a confirmed enqueue, or an explicit failure receipt.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	"github.com/google/uuid"

	"fieldsync/models"
	"fieldsync/queue"
	"fieldsync/remote"
)

// RemoteStore is the slice of the remote client the submitter needs
type RemoteStore interface {
	UploadEvidence(ctx context.Context, key, mimeType string, data []byte) (string, error)
	InsertReport(ctx context.Context, report models.RemoteReport) (string, error)
	InsertIncident(ctx context.Context, detail models.IncidentDetail) error
}

// ConnectivitySource exposes the current online/offline flag
type ConnectivitySource interface {
	Online() bool
}

// Submission is a completed form payload
type Submission struct {
	ObserverID   string
	VenueID      string
	Kind         models.ReportKind
	FormData     map[string]interface{}
	Geo          *models.GeoPoint
	Evidence     []byte
	EvidenceMIME string
	EvidenceName string
}

// Outcome says where the report ended up
type Outcome string

const (
	// OutcomeDelivered means the remote store confirmed the write
	OutcomeDelivered Outcome = "delivered"
	// OutcomeQueuedOffline means the device was offline and the report was
	// captured locally without attempting network I/O
	OutcomeQueuedOffline Outcome = "queued_offline"
	// OutcomeQueuedAfterError means the remote write failed and the report
	// was queued locally as a backup
	OutcomeQueuedAfterError Outcome = "queued_after_error"
	// OutcomeFailed means neither the remote store nor local storage could
	// take the report
	OutcomeFailed Outcome = "failed"
)

// Receipt tells the caller what happened to a submission. SubmissionID is a
// correlation id minted per submission; it also namespaces the evidence blob
// so retries from the same observer never collide.
type Receipt struct {
	SubmissionID string         `json:"submission_id"`
	Outcome      Outcome        `json:"outcome"`
	ReportID     string         `json:"report_id,omitempty"`
	LocalID      int64          `json:"local_id,omitempty"`
	ErrorKind    remote.ErrKind `json:"error_kind,omitempty"`
	Message      string         `json:"message"`
}

// Submitter routes submissions between the remote store and the local queue
type Submitter struct {
	store RemoteStore
	queue *queue.Queue
	conn  ConnectivitySource
	now   func() time.Time
}

// NewSubmitter creates a submitter
func NewSubmitter(store RemoteStore, q *queue.Queue, conn ConnectivitySource) *Submitter {
	return &Submitter{
		store: store,
		queue: q,
		conn:  conn,
		now:   time.Now,
	}
}

// Submit processes one form submission and reports where the data went
func (s *Submitter) Submit(ctx context.Context, sub Submission) Receipt {
	submissionID := uuid.NewString()
	report := &models.PendingReport{
		ObserverID: sub.ObserverID,
		VenueID:    sub.VenueID,
		Kind:       sub.Kind,
		CapturedAt: s.now().UTC(),
		FormData:   sub.FormData,
		Geo:        validGeo(sub.Geo),
	}
	if report.FormData == nil {
		report.FormData = map[string]interface{}{}
	}

	if !s.conn.Online() {
		return s.enqueue(ctx, submissionID, report, sub, OutcomeQueuedOffline, remote.ErrKind(""),
			"offline: the report was saved on the device and will sync automatically once connectivity returns")
	}

	reportID, err := s.deliver(ctx, submissionID, report, sub)
	if err == nil {
		log.Infof("Report %s delivered to remote store as %s (venue %s)", submissionID, reportID, report.VenueID)
		return Receipt{
			SubmissionID: submissionID,
			Outcome:      OutcomeDelivered,
			ReportID:     reportID,
			Message:      "report delivered",
		}
	}

	log.Errorf("Remote submission %s failed, falling back to local queue: %v", submissionID, err)
	kind := remote.KindTransient
	message := "submission failed; the report was saved on the device for a later sync"
	if remote.IsReferentialIntegrity(err) {
		kind = remote.KindReferentialIntegrity
		message = "the selected venue is demo data and does not exist in the remote store; the report was saved on the device"
	}
	return s.enqueue(ctx, submissionID, report, sub, OutcomeQueuedAfterError, kind, message)
}

// deliver performs the online two-step write: optional evidence upload,
// parent insert, conditional incident detail insert. An evidence upload
// failure is non-fatal; the report goes out without a photo URL.
func (s *Submitter) deliver(ctx context.Context, submissionID string, report *models.PendingReport, sub Submission) (string, error) {
	evidenceURL := ""
	if len(sub.Evidence) > 0 {
		key := evidenceKey(sub, submissionID)
		url, err := s.store.UploadEvidence(ctx, key, sub.EvidenceMIME, sub.Evidence)
		if err != nil {
			log.Warnf("Evidence upload failed, continuing without photo: %v", err)
		} else {
			evidenceURL = url
		}
	}

	reportID, err := s.store.InsertReport(ctx, models.RemoteReport{
		ObserverID: report.ObserverID,
		VenueID:    report.VenueID,
		Kind:       report.Kind,
		CapturedAt: report.CapturedAt,
		FormData:   report.FormData,
		Status:     models.StatusPending,
	})
	if err != nil {
		return "", err
	}

	if report.IsIncident() {
		if err := s.store.InsertIncident(ctx, report.IncidentDetail(reportID, evidenceURL)); err != nil {
			return "", err
		}
	}
	return reportID, nil
}

// enqueue captures the report locally, encoding any evidence into the
// portable text form first so the photo survives serialization.
func (s *Submitter) enqueue(ctx context.Context, submissionID string, report *models.PendingReport, sub Submission, outcome Outcome, kind remote.ErrKind, message string) Receipt {
	if len(sub.Evidence) > 0 {
		report.EvidenceImage = models.EncodeEvidence(sub.EvidenceMIME, sub.Evidence)
	}

	localID, err := s.queue.Enqueue(ctx, report)
	if err != nil {
		// Best-effort capture: storage being unavailable must not crash
		// the submission flow, but the caller is told the report is gone.
		log.Errorf("Local capture of %s failed, report lost: %v", submissionID, err)
		return Receipt{
			SubmissionID: submissionID,
			Outcome:      OutcomeFailed,
			ErrorKind:    kind,
			Message:      "local storage is unavailable; the report could not be saved",
		}
	}
	return Receipt{
		SubmissionID: submissionID,
		Outcome:      outcome,
		LocalID:      localID,
		ErrorKind:    kind,
		Message:      message,
	}
}

// validGeo drops coordinates that are not a point on the sphere; location
// capture is best effort and absence is valid.
func validGeo(geo *models.GeoPoint) *models.GeoPoint {
	if geo == nil {
		return nil
	}
	if !s2.LatLngFromDegrees(geo.Latitude, geo.Longitude).IsValid() {
		log.Warnf("Dropping invalid capture location %f,%f", geo.Latitude, geo.Longitude)
		return nil
	}
	return geo
}

// evidenceKey namespaces evidence blobs per observer with the submission's
// correlation id, e.g. "obs-1/0c0ff8a2-...-photo.jpg"
func evidenceKey(sub Submission, submissionID string) string {
	name := sub.EvidenceName
	if name == "" {
		name = "evidence." + models.EvidenceExtension(sub.EvidenceMIME)
	}
	return fmt.Sprintf("%s/%s-%s", sub.ObserverID, submissionID, name)
}
