package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-annotator/internal/autosave"
	"github.com/MimeLyc/video-annotator/internal/config"
	"github.com/MimeLyc/video-annotator/internal/httpapi"
	"github.com/MimeLyc/video-annotator/internal/labels"
	"github.com/MimeLyc/video-annotator/internal/media"
	"github.com/MimeLyc/video-annotator/internal/notify"
	"github.com/MimeLyc/video-annotator/internal/objectstore"
	"github.com/MimeLyc/video-annotator/internal/persistence"
	"github.com/MimeLyc/video-annotator/internal/session"
	"github.com/MimeLyc/video-annotator/pkg/icron"
	"github.com/MimeLyc/video-annotator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Annotator stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Annotator stopped")
}

// loadConfig reads the environment and applies the runtime settings file
// on top when it exists.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadRuntimeSettingsFile(cfg.Storage.SettingsFile)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return config.NewFromEnv(config.WithRuntimeSettings(settings))
}

func run(ctx context.Context, cfg *config.Config) error {
	labelCfg := labels.Default()
	if cfg.Session.LabelsFile != "" {
		loaded, err := labels.Load(cfg.Session.LabelsFile)
		if err != nil {
			return fmt.Errorf("load labels: %w", err)
		}
		for _, w := range loaded.Validate() {
			log.Warn("Labels %s: %s", cfg.Session.LabelsFile, w)
		}
		labelCfg = loaded
	}

	feed := notify.NewFeed(200)
	opener := media.NewOpener(
		media.WithBinaries(cfg.Media.FFmpegBin, cfg.Media.FFprobeBin),
		media.WithJPEGQuality(cfg.Media.JPEGQuality),
	)
	manager := session.NewManager(opener,
		session.WithNotifier(feed),
		session.WithFormatVersion(cfg.Session.FormatVersion),
		session.WithLabels(labelCfg),
		session.WithDefaultFPS(cfg.Session.DefaultFPS),
		session.WithDebug(cfg.Session.Debug),
		session.WithKeyframeStride(cfg.Session.KeyframeStride),
		session.WithBaseContext(ctx),
	)
	defer func() {
		if err := manager.Close(); err != nil {
			log.Warn("Closing session: %v", err)
		}
	}()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sinks := []autosave.Sink{autosave.NewSQLiteSink(store)}
	if cfg.Storage.AutosaveDir != "" {
		sinks = append(sinks, autosave.NewDirSink(cfg.Storage.AutosaveDir))
	}

	serverOpts := []httpapi.Option{
		httpapi.WithNotifications(feed),
		httpapi.WithDocumentStore(store),
		httpapi.WithFrameDump(cfg.Session.FrameDumpDir, cfg.Session.FrameDumpWorkers),
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
	}

	if cfg.MinIO.Enabled {
		storage, err := objectstore.NewStorage(objectstore.StorageConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
			Prefix:    cfg.MinIO.Prefix,
		})
		if err != nil {
			return err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return err
		}
		sinks = append(sinks, autosave.NewObjectSink(storage))
		serverOpts = append(serverOpts, httpapi.WithRemoteDocuments(storage))
		log.Info("Saving documents to bucket %s at %s", cfg.MinIO.Bucket, cfg.MinIO.Endpoint)
	}

	cronEng := cron.New(cron.WithParser(icron.Parser))
	saver := autosave.NewSaver(manager, cronEng, cfg.Storage.AutosaveCron,
		autosave.WithSinks(sinks...),
		autosave.WithDocumentName(cfg.Storage.DocumentName),
	)

	settingsStore, err := config.NewRuntimeSettingsStore(cfg.Storage.SettingsFile, cfg.RuntimeSettings())
	if err != nil {
		return err
	}
	serverOpts = append(serverOpts,
		httpapi.WithSaver(saver),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			if err := manager.SetDefaultFPS(next.DefaultFPS); err != nil {
				return err
			}
			return saver.Reschedule(next.AutosaveCron, next.DocumentName)
		}),
	)
	httpSrv := httpapi.NewServer(manager, serverOpts...)

	if cfg.Session.VideoSrc != "" {
		if _, err := manager.Open(cfg.Session.VideoSrc, 0); err != nil {
			log.Error("Failed to open %s: %v", cfg.Session.VideoSrc, err)
		}
	}

	return runWithComponents(ctx, cfg, saver, cronEng, httpSrv)
}

// runWithComponents starts the scheduled jobs and the HTTP server and blocks
// until ctx is cancelled or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronEng cronEngine,
	httpSrv httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule autosave: %w", err)
	}
	cronEng.Start()
	defer func() {
		stopCtx := cronEng.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(shutdownTimeout):
			log.Warn("Timed out waiting for running jobs")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
