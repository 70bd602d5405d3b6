package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"kes/cleanup"
	"kes/config"
	"kes/database"
	"kes/labelimage"
	"kes/labels"
	"kes/loader"
	"kes/logger"
	"kes/storage"
)

func main() {
	fs := pflag.NewFlagSet("kes", pflag.ExitOnError)
	configPath := fs.String("config", "./kes_config.json", "configuration file")
	fs.String("listen-addr", ":8080", "HTTP listen address")
	fs.String("database-path", "./kes.db", "sqlite database file")
	fs.String("storage-path", "./data/attachments", "attachment storage directory")
	fs.String("template-dir", "./templates", "directory of label template images")
	fs.String("log-level", "info", "log level")
	fs.Bool("no-render", false, "disable label image rendering")
	fs.Parse(os.Args[1:])

	config.SetPath(*configPath)
	config.BindFlags(fs)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Warnf("Failed to load config file: %v. Using defaults.", err)
	}

	logConf := logger.DefaultLogConfig()
	logConf.File = cfg.LogFile
	logConf.Level = cfg.LogLevel
	logConf.Formatter = cfg.LogFormat
	if err := logger.InitStandardLogger(logConf); err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}

	log.Infof("Connecting to database %s...", cfg.DatabasePath)
	dbConn, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer dbConn.Close()

	ctx := context.Background()
	if err := loader.InitDatabase(ctx, dbConn); err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	added, err := loader.SeedTemplates(ctx, dbConn, cfg.TemplateSeed, cfg.TemplateDir)
	if err != nil {
		log.Errorf("label template seeding failed: %v", err)
	} else if added > 0 {
		log.Infof("%d label template(s) installed", added)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("attachment storage: %v", err)
	}

	var compositor *labelimage.Compositor
	if noRender, _ := fs.GetBool("no-render"); noRender {
		log.Warn("label rendering disabled")
	} else {
		compositor = labelimage.NewCompositor(labelimage.FontSet{Bold: cfg.FontBold, Regular: cfg.FontRegular})
	}
	svc := labels.NewService(dbConn, compositor, store, labels.Options{
		BaseURL:       cfg.BaseURL,
		RenderWorkers: cfg.RenderWorkers,
	})

	purger := cleanup.NewPurger(dbConn, store, cfg.Retention())
	scheduler, err := cleanup.Schedule(cfg.CleanupSchedule, purger)
	if err != nil {
		log.Fatalf("cleanup schedule: %v", err)
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewRouter(dbConn, store, svc, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Starting server on %s (public URL %s)", cfg.ListenAddr, cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
