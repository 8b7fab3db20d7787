package http

import (
	"context"
	"time"

	"github.com/hzleung/readsync/internal/database"
	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/statestore"
	"github.com/hzleung/readsync/internal/syncer"
)

// SyncEngine is the orchestrator capability used by the sync controller.
type SyncEngine interface {
	SyncAll(ctx context.Context, background bool) syncer.Result
	SyncBook(ctx context.Context, bookID string) syncer.Result
}

// Scheduler is the background-sync capability used by the settings and
// sync controllers.
type Scheduler interface {
	Reschedule() error
	RunNow()
	IsRunning() bool
	IsSyncing() bool
	NextRunTime() *time.Time
}

// CredentialChecker validates destination credentials and resolves the
// account's display name.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context, creds entities.WriteathonCredentials) bool
	UserInfo(ctx context.Context, creds entities.WriteathonCredentials) (string, error)
}

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Store    *statestore.Store

	Source  syncer.ReadGateway
	Checker CredentialChecker

	Engine    SyncEngine
	Scheduler Scheduler

	Version string
}
