// Package syncer drains the local queue against the remote store. A pass
// replays each entry as the same two-step write the online submission path
// performs, purges entries that can never succeed, and stops at the first
// unexpected failure so a backend outage does not burn through the whole
// queue producing partial state.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"fieldsync/models"
	"fieldsync/queue"
)

// RemoteStore is the slice of the remote client the engine replays against
type RemoteStore interface {
	UploadEvidence(ctx context.Context, key, mimeType string, data []byte) (string, error)
	InsertReport(ctx context.Context, report models.RemoteReport) (string, error)
	InsertIncident(ctx context.Context, detail models.IncidentDetail) error
}

// StatusPublisher receives every status change, normally the websocket hub
type StatusPublisher interface {
	BroadcastStatus(snapshot models.StatusSnapshot)
}

// engine states guarded by CAS; timer ticks and connectivity transitions
// arrive on different goroutines.
const (
	stateIdle int32 = iota
	stateSyncing
)

// Engine runs sync passes over the local queue
type Engine struct {
	queue     *queue.Queue
	store     RemoteStore
	online    func() bool
	publisher StatusPublisher

	interval    time.Duration
	successHold time.Duration

	state atomic.Int32

	mu         sync.Mutex
	last       models.StatusSnapshot
	clearTimer *time.Timer

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewEngine creates a sync engine. online supplies the connectivity flag,
// publisher may be nil, interval is the periodic trigger cadence and
// successHold how long a success outcome stays visible before reverting to
// idle.
func NewEngine(q *queue.Queue, store RemoteStore, online func() bool, publisher StatusPublisher, interval, successHold time.Duration) *Engine {
	e := &Engine{
		queue:       q,
		store:       store,
		online:      online,
		publisher:   publisher,
		interval:    interval,
		successHold: successHold,
		stopChan:    make(chan struct{}),
	}
	e.last = models.StatusSnapshot{State: models.SyncIdle, UpdatedAt: time.Now().UTC()}
	return e
}

// Start begins the periodic trigger loop
func (e *Engine) Start() {
	log.Infof("Sync engine started, draining every %v", e.interval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.TriggerSync()
			case <-e.stopChan:
				return
			}
		}
	}()
}

// Stop stops the trigger loop. A pass already in flight runs to completion.
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
}

// Status returns the latest snapshot for the status indicator
func (e *Engine) Status() models.StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// TriggerSync runs one sync pass. If a pass is already in flight the call
// is a no-op; overlapping triggers from the ticker and a connectivity
// transition collapse into a single pass.
func (e *Engine) TriggerSync() {
	if !e.state.CompareAndSwap(stateIdle, stateSyncing) {
		return
	}
	defer e.state.Store(stateIdle)
	e.runPass(context.Background())
}

func (e *Engine) runPass(ctx context.Context) {
	pending, err := e.queue.ListAll(ctx)
	if err != nil {
		log.Errorf("Sync pass aborted, cannot read local queue: %v", err)
		return
	}
	if len(pending) == 0 {
		e.updatePending(len(pending))
		return
	}
	if !e.online() {
		e.updatePending(len(pending))
		return
	}

	e.publish(models.StatusSnapshot{Pending: len(pending), State: models.SyncRunning})
	log.Infof("Sync pass started with %d pending reports", len(pending))

	successCount := 0
	var passErr error
	for _, entry := range pending {
		if models.IsPlaceholderVenue(entry.VenueID) {
			// Terminal invalidity: a demo venue can never pass the
			// store's referential checks. Purge without any network call
			// so it cannot block the rest of the queue forever.
			log.Warnf("Purging report %d referencing placeholder venue %s", entry.LocalID, entry.VenueID)
			if err := e.queue.Remove(ctx, entry.LocalID); err != nil {
				log.Errorf("Failed to purge invalid report %d: %v", entry.LocalID, err)
			}
			continue
		}

		if err := e.replay(ctx, &entry); err != nil {
			// Assume the failure is systemic and stop; the remaining
			// entries stay queued for the next trigger.
			log.Errorf("Sync failed for report %d, stopping pass: %v", entry.LocalID, err)
			passErr = err
			break
		}

		if err := e.queue.Remove(ctx, entry.LocalID); err != nil {
			log.Errorf("Report %d synced but could not be removed locally: %v", entry.LocalID, err)
		}
		successCount++
	}

	remaining, err := e.queue.Count(ctx)
	if err != nil {
		remaining = len(pending) - successCount
	}

	final := models.StatusSnapshot{Pending: remaining, State: models.SyncIdle}
	if passErr != nil {
		final.State = models.SyncError
		final.LastError = passErr.Error()
	}
	if successCount > 0 {
		final.State = models.SyncSuccess
		final.LastError = ""
		e.scheduleSuccessClear()
	}
	e.publish(final)
	log.Infof("Sync pass finished: %d synced, %d remaining, state %s", successCount, remaining, final.State)
}

// replay performs the two-step remote write for one queued entry, reusing
// its original capture timestamp.
func (e *Engine) replay(ctx context.Context, entry *models.PendingReport) error {
	evidenceURL := ""
	if entry.EvidenceImage != "" {
		mimeType, data, err := models.DecodeEvidence(entry.EvidenceImage)
		if err != nil {
			// Undecodable evidence loses the photo, not the report.
			log.Warnf("Report %d has undecodable evidence, syncing without photo: %v", entry.LocalID, err)
		} else {
			key := fmt.Sprintf("%s/sync-%s.%s", entry.ObserverID, uuid.NewString(), models.EvidenceExtension(mimeType))
			url, err := e.store.UploadEvidence(ctx, key, mimeType, data)
			if err != nil {
				log.Warnf("Evidence upload failed for report %d, syncing without photo: %v", entry.LocalID, err)
			} else {
				evidenceURL = url
			}
		}
	}

	reportID, err := e.store.InsertReport(ctx, models.RemoteReport{
		ObserverID: entry.ObserverID,
		VenueID:    entry.VenueID,
		Kind:       entry.Kind,
		CapturedAt: entry.CapturedAt,
		FormData:   entry.FormData,
		Status:     models.StatusPending,
	})
	if err != nil {
		return err
	}

	if entry.IsIncident() {
		if err := e.store.InsertIncident(ctx, entry.IncidentDetail(reportID, evidenceURL)); err != nil {
			return err
		}
	}
	return nil
}

// updatePending refreshes the queue depth without changing the outcome state
func (e *Engine) updatePending(pending int) {
	e.mu.Lock()
	snapshot := e.last
	e.mu.Unlock()
	if snapshot.Pending == pending {
		return
	}
	snapshot.Pending = pending
	e.publish(snapshot)
}

func (e *Engine) publish(snapshot models.StatusSnapshot) {
	snapshot.UpdatedAt = time.Now().UTC()
	e.mu.Lock()
	e.last = snapshot
	e.mu.Unlock()
	if e.publisher != nil {
		e.publisher.BroadcastStatus(snapshot)
	}
}

// scheduleSuccessClear reverts a success outcome to idle after the hold
// period; an error outcome persists until the next successful pass.
func (e *Engine) scheduleSuccessClear() {
	e.mu.Lock()
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.mu.Unlock()

	timer := time.AfterFunc(e.successHold, func() {
		e.mu.Lock()
		snapshot := e.last
		e.mu.Unlock()
		if snapshot.State != models.SyncSuccess {
			return
		}
		snapshot.State = models.SyncIdle
		e.publish(snapshot)
	})

	e.mu.Lock()
	e.clearTimer = timer
	e.mu.Unlock()
}
