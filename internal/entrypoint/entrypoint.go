package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hzleung/readsync/internal/config"
	"github.com/hzleung/readsync/internal/database"
	"github.com/hzleung/readsync/internal/entities"
	http_controllers "github.com/hzleung/readsync/internal/http"
	"github.com/hzleung/readsync/internal/scheduler"
	"github.com/hzleung/readsync/internal/statestore"
	"github.com/hzleung/readsync/internal/syncer"
	"github.com/hzleung/readsync/internal/weread"
	"github.com/hzleung/readsync/internal/writeathon"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// app bundles the wired components shared by the server and the one-shot
// commands.
type app struct {
	db     *database.Database
	store  *statestore.Store
	source *weread.Client
	dest   *writeathon.Client
	engine *syncer.Engine
}

func buildApp(cfg *config.Config, listener syncer.ProgressListener) (*app, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := statestore.New(db)

	// The source gateway paces itself from the stored settings so the delay
	// can be changed without a restart.
	pacer := func() time.Duration {
		return time.Duration(store.GetSyncSettings().InterRequestDelayMs) * time.Millisecond
	}

	source := weread.NewClient(pacer)
	dest := writeathon.NewClient()
	engine := syncer.New(store, source, dest, listener)

	return &app{
		db:     db,
		store:  store,
		source: source,
		dest:   dest,
		engine: engine,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func logProgress(progress entities.SyncProgress) {
	if progress.Completed {
		log.Printf("Sync progress: completed %d/%d books", progress.CurrentBook, progress.TotalBooks)
		return
	}
	if progress.TotalBooks > 0 {
		log.Printf("Sync progress: %d/%d %s", progress.CurrentBook, progress.TotalBooks, progress.CurrentBookTitle)
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run wires the full service and blocks until shutdown.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting ReadSync v%s", version)

	a, err := buildApp(cfg, logProgress)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.close()

	sched := scheduler.NewSyncScheduler(a.store, a.engine)
	if err := sched.Start(context.Background()); err != nil {
		log.Printf("WARNING: Failed to start auto-sync scheduler: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:  a.db,
		Store:     a.store,
		Source:    a.source,
		Checker:   a.dest,
		Engine:    a.engine,
		Scheduler: sched,
		Version:   version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		sched.Stop()
	}

	Serve(router, cfg, onShutdown)
}

// SyncOnce runs a single foreground full-library sync and exits.
func SyncOnce(cfg *config.Config) error {
	a, err := buildApp(cfg, logProgress)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.engine.SyncAll(context.Background(), false)
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	log.Printf("Sync finished: %s", result.Message)
	return nil
}

// SyncBookOnce runs a single foreground sync of one book and exits.
func SyncBookOnce(cfg *config.Config, bookID string) error {
	a, err := buildApp(cfg, logProgress)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.engine.SyncBook(context.Background(), bookID)
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	log.Printf("Sync finished: %s", result.Message)
	return nil
}
