package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/dustlibrary/dust/pkg/config"
	"github.com/dustlibrary/dust/pkg/database"
	"github.com/dustlibrary/dust/pkg/metadata"
	"github.com/dustlibrary/dust/pkg/migrations"
	"github.com/dustlibrary/dust/pkg/scanner"
	"github.com/dustlibrary/dust/pkg/server"
	"github.com/dustlibrary/dust/pkg/version"
	"github.com/dustlibrary/dust/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting dust", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	var lookup metadata.Lookup = metadata.NullLookup{}
	if cfg.EnrichmentEnabled() {
		lookup = metadata.NewGoogleBooks(cfg.GoogleBooksAPIKey, cfg.ExternalMetadataUserAgent)
	}
	scanService := scanner.NewService(db, cfg.LibraryDirectories, lookup, cfg.ArchiveRetention)

	wrkr := worker.New()
	wrkr.Register("scan", cfg.ScanInterval, func(ctx context.Context) error {
		_, err := scanService.Scan(ctx)
		return err
	})
	wrkr.Register("cleanup", cfg.CleanupInterval, func(ctx context.Context) error {
		_, _, _, err := scanService.ReconcileArchives(ctx)
		return err
	})

	srv, err := server.New(cfg, db, scanService)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
