package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/statestore"
)

// SettingsController handles sync settings, destination credentials and the
// source session cookie
type SettingsController struct {
	store     *statestore.Store
	checker   CredentialChecker
	scheduler Scheduler
}

func NewSettingsController(store *statestore.Store, checker CredentialChecker, scheduler Scheduler) *SettingsController {
	return &SettingsController{
		store:     store,
		checker:   checker,
		scheduler: scheduler,
	}
}

// SyncSettingsResponse is the response for GET /api/settings/sync
type SyncSettingsResponse struct {
	Settings  entities.SyncSettings `json:"settings"`
	IsRunning bool                  `json:"is_running"`
	IsSyncing bool                  `json:"is_syncing"`
}

// GetSyncSettings returns the current sync settings and scheduler state
func (c *SettingsController) GetSyncSettings(ctx *gin.Context) {
	response := SyncSettingsResponse{Settings: c.store.GetSyncSettings()}
	if c.scheduler != nil {
		response.IsRunning = c.scheduler.IsRunning()
		response.IsSyncing = c.scheduler.IsSyncing()
	}
	ctx.JSON(http.StatusOK, response)
}

// UpdateSyncSettingsRequest is the request body for PUT /api/settings/sync
type UpdateSyncSettingsRequest struct {
	Range                   *string `json:"range"`
	PollIntervalMinutes     *int    `json:"poll_interval_minutes"`
	MergeNotesAndHighlights *bool   `json:"merge_notes_and_highlights"`
	AutoSyncEnabled         *bool   `json:"auto_sync_enabled"`
	InterRequestDelayMs     *int    `json:"inter_request_delay_ms"`
}

var validRanges = map[entities.SyncRange]bool{
	entities.SyncRangeLast1Days:  true,
	entities.SyncRangeLast7Days:  true,
	entities.SyncRangeLast14Days: true,
	entities.SyncRangeLast30Days: true,
	entities.SyncRangeAll:        true,
}

// UpdateSyncSettings saves sync settings and reschedules the background sync
func (c *SettingsController) UpdateSyncSettings(ctx *gin.Context) {
	var req UpdateSyncSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	settings := c.store.GetSyncSettings()

	if req.Range != nil {
		r := entities.SyncRange(*req.Range)
		if !validRanges[r] {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sync range: " + *req.Range})
			return
		}
		settings.Range = r
	}
	if req.PollIntervalMinutes != nil {
		if *req.PollIntervalMinutes < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Poll interval must be at least 1 minute"})
			return
		}
		settings.PollIntervalMinutes = *req.PollIntervalMinutes
	}
	if req.MergeNotesAndHighlights != nil {
		settings.MergeNotesAndHighlights = *req.MergeNotesAndHighlights
	}
	if req.AutoSyncEnabled != nil {
		settings.AutoSyncEnabled = *req.AutoSyncEnabled
	}
	if req.InterRequestDelayMs != nil {
		if *req.InterRequestDelayMs < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Inter-request delay cannot be negative"})
			return
		}
		settings.InterRequestDelayMs = *req.InterRequestDelayMs
	}

	if err := c.store.SaveSyncSettings(settings); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings: " + err.Error()})
		return
	}

	if c.scheduler != nil {
		if err := c.scheduler.Reschedule(); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Settings saved but rescheduling failed: " + err.Error()})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

// ResetLastSync zeroes the whole-library sync timestamp so the next full
// run falls back to the time-window policy.
func (c *SettingsController) ResetLastSync(ctx *gin.Context) {
	if err := c.store.ResetLastGlobalSync(); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset last sync time: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// CredentialsResponse is the response for GET /api/settings/writeathon. The
// token is masked, only its tail is shown.
type CredentialsResponse struct {
	Configured bool   `json:"configured"`
	UserID     string `json:"user_id,omitempty"`
	Username   string `json:"username,omitempty"`
	TokenHint  string `json:"token_hint,omitempty"`
}

// GetCredentials returns the stored destination credentials with the token
// masked
func (c *SettingsController) GetCredentials(ctx *gin.Context) {
	creds := c.store.GetCredentials()

	response := CredentialsResponse{
		Configured: creds.Configured(),
		UserID:     creds.UserID,
		Username:   creds.Username,
		TokenHint:  maskToken(creds.APIToken),
	}
	ctx.JSON(http.StatusOK, response)
}

// UpdateCredentialsRequest is the request body for PUT /api/settings/writeathon
type UpdateCredentialsRequest struct {
	APIToken string `json:"api_token" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
}

// UpdateCredentials validates the credentials against the destination API,
// resolves the username and saves them
func (c *SettingsController) UpdateCredentials(ctx *gin.Context) {
	var req UpdateCredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	creds := entities.WriteathonCredentials{
		APIToken: strings.TrimSpace(req.APIToken),
		UserID:   strings.TrimSpace(req.UserID),
	}

	if !c.checker.ValidateCredentials(ctx.Request.Context(), creds) {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Writeathon API token or user ID is invalid"})
		return
	}

	if username, err := c.checker.UserInfo(ctx.Request.Context(), creds); err == nil {
		creds.Username = username
	}

	if err := c.store.SaveCredentials(creds); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save credentials: " + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "username": creds.Username})
}

// UpdateSessionRequest is the request body for PUT /api/settings/weread
type UpdateSessionRequest struct {
	Cookie       string `json:"cookie" binding:"required"`
	LifetimeDays int    `json:"lifetime_days"`
}

// UpdateSession stores the source session cookie
func (c *SettingsController) UpdateSession(ctx *gin.Context) {
	var req UpdateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := c.store.SaveSession(strings.TrimSpace(req.Cookie), req.LifetimeDays); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session: " + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession reports whether a usable source session is stored
func (c *SettingsController) GetSession(ctx *gin.Context) {
	session := c.store.GetSession()
	if session == nil {
		ctx.JSON(http.StatusOK, gin.H{"configured": false})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"configured": true, "expires_at": session.ExpiresAt})
}

// DeleteSession removes the stored source session cookie
func (c *SettingsController) DeleteSession(ctx *gin.Context) {
	if err := c.store.ClearSession(); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear session: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
