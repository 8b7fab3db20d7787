package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hzleung/readsync/internal/statestore"
)

// TransferController handles state export, import and reset
type TransferController struct {
	store *statestore.Store
}

func NewTransferController(store *statestore.Store) *TransferController {
	return &TransferController{store: store}
}

// ExportEnvelope is the downloadable backup format
type ExportEnvelope struct {
	ExportedAt string            `json:"exported_at"`
	Settings   map[string]string `json:"settings"`
}

// Export returns the full persisted state as a downloadable JSON document
func (c *TransferController) Export(ctx *gin.Context) {
	settings, err := c.store.ExportAll()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export settings: " + err.Error()})
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="readsync-backup.json"`)
	ctx.IndentedJSON(http.StatusOK, ExportEnvelope{
		ExportedAt: time.Now().Format(time.RFC3339),
		Settings:   settings,
	})
}

// Import merges a previously exported backup into the current state.
// History entries are deduplicated, book registries are unioned and all
// other keys are overwritten.
func (c *TransferController) Import(ctx *gin.Context) {
	var envelope ExportEnvelope
	if err := ctx.ShouldBindJSON(&envelope); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup document: " + err.Error()})
		return
	}

	if len(envelope.Settings) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Backup document contains no settings"})
		return
	}

	if err := c.store.Import(envelope.Settings); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import settings: " + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "imported": len(envelope.Settings)})
}

// Reset clears all per-book sync state so the next run starts from scratch
func (c *TransferController) Reset(ctx *gin.Context) {
	if err := c.store.Reset(); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset sync state: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
