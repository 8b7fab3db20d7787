// Package scheduler runs background sync cycles on a fixed poll interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hzleung/readsync/internal/statestore"
	"github.com/hzleung/readsync/internal/syncer"
)

const syncTimeout = 10 * time.Minute

// SyncRunner is the engine capability the scheduler needs.
type SyncRunner interface {
	SyncAll(ctx context.Context, background bool) syncer.Result
}

// SyncScheduler manages periodic background syncs. A mutex-guarded
// single-flight flag ensures an interval firing while a sync is still in
// progress is skipped, never queued.
type SyncScheduler struct {
	store  *statestore.Store
	runner SyncRunner

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
}

// NewSyncScheduler creates a new scheduler instance
func NewSyncScheduler(store *statestore.Store, runner SyncRunner) *SyncScheduler {
	return &SyncScheduler{
		store:  store,
		runner: runner,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
}

// Start begins the scheduler if auto-sync is enabled
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	settings := s.store.GetSyncSettings()

	if !settings.AutoSyncEnabled {
		log.Printf("Auto-sync scheduler: disabled")
		return nil
	}

	interval := settings.PollIntervalMinutes
	if interval < 1 {
		interval = 1
	}
	schedule := fmt.Sprintf("@every %dm", interval)

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runSync()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Auto-sync scheduler: started, syncing every %d minutes", interval)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sync to finish
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Auto-sync scheduler: stopped")
}

// Reschedule restarts the scheduler with the current settings (call after
// settings change)
func (s *SyncScheduler) Reschedule() error {
	s.mu.Lock()
	wasRunning := s.isRunning
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}

	return s.Start(context.Background())
}

// RunNow triggers an immediate background sync
func (s *SyncScheduler) RunNow() {
	go s.runSync()
}

// IsRunning returns whether the scheduler is active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether a sync is currently in progress
func (s *SyncScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRunTime returns when the next background sync will fire
func (s *SyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSync performs one background sync cycle
func (s *SyncScheduler) runSync() {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		log.Printf("Auto-sync: skipped (already syncing)")
		return
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	settings := s.store.GetSyncSettings()
	if !settings.AutoSyncEnabled {
		log.Printf("Auto-sync: skipped (disabled)")
		return
	}

	log.Printf("Auto-sync: starting background sync")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	result := s.runner.SyncAll(ctx, true)

	duration := time.Since(startTime).Round(time.Millisecond)
	if result.Success {
		log.Printf("Auto-sync: %s in %v", result.Message, duration)
	} else {
		log.Printf("Auto-sync: failed after %v: %s", duration, result.Message)
	}
}
