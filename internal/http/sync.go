package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hzleung/readsync/internal/statestore"
)

// SyncController handles sync triggers, progress polling and sync history
type SyncController struct {
	store     *statestore.Store
	engine    SyncEngine
	scheduler Scheduler
}

func NewSyncController(store *statestore.Store, engine SyncEngine, scheduler Scheduler) *SyncController {
	return &SyncController{
		store:     store,
		engine:    engine,
		scheduler: scheduler,
	}
}

// TriggerSync runs a full foreground sync and reports the outcome
func (c *SyncController) TriggerSync(ctx *gin.Context) {
	if c.scheduler != nil && c.scheduler.IsSyncing() {
		ctx.JSON(http.StatusConflict, gin.H{"error": "A sync is already in progress"})
		return
	}

	result := c.engine.SyncAll(ctx.Request.Context(), false)

	statusCode := http.StatusOK
	if !result.Success {
		statusCode = http.StatusBadGateway
	}
	ctx.JSON(statusCode, result)
}

// TriggerBookSync syncs a single book by its source ID
func (c *SyncController) TriggerBookSync(ctx *gin.Context) {
	bookID := ctx.Param("id")
	if bookID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Book ID is required"})
		return
	}

	result := c.engine.SyncBook(ctx.Request.Context(), bookID)

	statusCode := http.StatusOK
	if !result.Success {
		statusCode = http.StatusBadGateway
	}
	ctx.JSON(statusCode, result)
}

// SyncProgressResponse is the response for GET /api/sync/progress
type SyncProgressResponse struct {
	Progress  any        `json:"progress"`
	IsSyncing bool       `json:"is_syncing"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// GetProgress returns the last persisted progress snapshot together with
// the scheduler state
func (c *SyncController) GetProgress(ctx *gin.Context) {
	response := SyncProgressResponse{}

	if progress := c.store.GetProgress(); progress != nil {
		response.Progress = progress
	}
	if c.scheduler != nil {
		response.IsSyncing = c.scheduler.IsSyncing()
		response.NextRun = c.scheduler.NextRunTime()
	}

	ctx.JSON(http.StatusOK, response)
}

// GetHistory returns sync history entries, newest first
func (c *SyncController) GetHistory(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"history": c.store.GetHistory()})
}

// DeleteHistoryEntry removes a single history entry by ID
func (c *SyncController) DeleteHistoryEntry(ctx *gin.Context) {
	entryID := ctx.Param("id")

	if err := c.store.DeleteHistoryEntry(entryID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete history entry: " + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearHistory removes all history entries
func (c *SyncController) ClearHistory(ctx *gin.Context) {
	if err := c.store.ClearHistory(); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history: " + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
