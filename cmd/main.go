package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/vinylaudio/annotator/internal/auth"
	"github.com/vinylaudio/annotator/internal/blob"
	"github.com/vinylaudio/annotator/internal/config"
	"github.com/vinylaudio/annotator/internal/httpapi"
	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/maintenance"
	"github.com/vinylaudio/annotator/internal/media"
	"github.com/vinylaudio/annotator/internal/persistence"
	"github.com/vinylaudio/annotator/internal/session"
	"github.com/vinylaudio/annotator/pkg/file"
	"github.com/vinylaudio/annotator/pkg/log"
)

func main() {
	_ = godotenv.Load()

	settingsPath := config.RuntimeSettingsFilePath()
	var opts []config.Option
	if settings, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(settings))
	} else if !os.IsNotExist(err) {
		log.Warn("Ignoring settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.New(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	if err := run(cfg, settingsPath); err != nil {
		log.Fatal("Server exited: %v", err)
	}
}

func run(cfg *config.Config, settingsPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := file.EnsureDir(cfg.Storage.DataDir); err != nil {
		return err
	}

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Auth.APIToken != "" {
		if err := store.EnsureUser(ctx, persistence.User{
			ID:          "admin",
			DisplayName: "Admin",
			Token:       cfg.Auth.APIToken,
		}); err != nil {
			return err
		}
	}

	bucket, err := blob.NewLocalBucket(cfg.Storage.BucketDir, cfg.HTTP.PublicBaseURL+"/files")
	if err != nil {
		return err
	}

	queue := jobs.NewQueue(cfg.Annotate.JobWorkers, store)
	authProvider := auth.NewTokenProvider(store)

	sess := session.New(session.Options{
		Docs:           store,
		Bucket:         bucket,
		Slicer:         media.NewFfmpegSlicer(bucket, cfg.Media.FfmpegCmd, cfg.Storage.TmpDir),
		Auth:           authProvider,
		Queue:          queue,
		QuietPeriod:    cfg.Annotate.SyncQuietPeriod(),
		SplitSeparator: cfg.Annotate.SplitSeparator,
	})
	if err := sess.Hydrate(ctx); err != nil {
		return err
	}
	defer sess.Stop()

	settingsStore, err := config.NewSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		return err
	}

	cronEngine := cron.New()
	sweeper := maintenance.NewSweeper(cfg.Maintenance.CronExpr, cronEngine, sess, bucket, cfg.Storage.TmpDir)

	applySettings := func(next config.RuntimeSettings) error {
		sess.ApplySettings(next)
		return sweeper.Reschedule(ctx, next.MaintenanceCron)
	}

	srv := httpapi.NewServer(sess, queue,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithBucket(bucket),
		httpapi.WithAuth(authProvider),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(applySettings),
	)

	return runWithComponents(ctx, cfg, sweeper, cronEngine, srv)
}

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, cronEngine cronRunner, httpSrv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
