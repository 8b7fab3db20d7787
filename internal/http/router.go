package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	syncController := NewSyncController(cfg.Store, cfg.Engine, cfg.Scheduler)
	settingsController := NewSettingsController(cfg.Store, cfg.Checker, cfg.Scheduler)
	booksController := NewBooksController(cfg.Store, cfg.Source)
	transferController := NewTransferController(cfg.Store)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Sync endpoints
	router.POST("/api/sync", syncController.TriggerSync)
	router.POST("/api/sync/books/:id", syncController.TriggerBookSync)
	router.GET("/api/sync/progress", syncController.GetProgress)
	router.GET("/api/sync/history", syncController.GetHistory)
	router.DELETE("/api/sync/history/:id", syncController.DeleteHistoryEntry)
	router.DELETE("/api/sync/history", syncController.ClearHistory)

	// Settings endpoints
	router.GET("/api/settings/sync", settingsController.GetSyncSettings)
	router.PUT("/api/settings/sync", settingsController.UpdateSyncSettings)
	router.POST("/api/settings/sync/reset-last-sync", settingsController.ResetLastSync)
	router.GET("/api/settings/writeathon", settingsController.GetCredentials)
	router.PUT("/api/settings/writeathon", settingsController.UpdateCredentials)
	router.GET("/api/settings/weread", settingsController.GetSession)
	router.PUT("/api/settings/weread", settingsController.UpdateSession)
	router.DELETE("/api/settings/weread", settingsController.DeleteSession)

	// Library endpoints
	router.GET("/api/books", booksController.GetBookshelf)
	router.GET("/api/notebooks", booksController.GetNotebooks)
	router.POST("/api/books/:id/autosync", booksController.MarkAutoSync)
	router.DELETE("/api/books/:id/autosync", booksController.UnmarkAutoSync)

	// State transfer endpoints
	router.GET("/api/export", transferController.Export)
	router.POST("/api/import", transferController.Import)
	router.POST("/api/reset", transferController.Reset)

	return router
}
