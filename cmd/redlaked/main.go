package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/redlake/redlake/internal/archive"
	"github.com/redlake/redlake/internal/config"
	"github.com/redlake/redlake/internal/emit"
	"github.com/redlake/redlake/internal/logging"
	"github.com/redlake/redlake/internal/objstore"
	"github.com/redlake/redlake/internal/pipeline"
	"github.com/redlake/redlake/internal/reddit"
	"github.com/redlake/redlake/internal/sanitize"
	"github.com/redlake/redlake/internal/sentiment"
	"github.com/redlake/redlake/internal/server"
	"github.com/redlake/redlake/internal/warehouse"
)

func main() {
	// Local development credentials; missing .env is fine.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("failed to load config", "error", err)
	}

	if err := logging.Init(cfg.Logging.Dir); err != nil {
		logging.Fatal("failed to init logging", "error", err)
	}
	defer logging.Close()

	bucket, err := objstore.NewFSBucket(cfg.Storage.BucketRoot)
	if err != nil {
		logging.Fatal("failed to open staging bucket", "error", err)
	}

	wh, err := warehouse.Open(cfg.Storage.WarehousePath)
	if err != nil {
		logging.Fatal("failed to open warehouse", "error", err)
	}
	defer wh.Close()

	// All pipeline dependencies are constructed once here and passed by
	// reference; nothing below holds process-wide mutable state.
	var source pipeline.Source
	if cfg.Reddit.Enabled {
		source = reddit.NewClient(
			reddit.WithBaseURL(cfg.Reddit.BaseURL),
			reddit.WithUserAgent(cfg.Reddit.UserAgent),
		)
	}

	var detector sanitize.Detector
	if cfg.Sanitizer.PresidioURL != "" {
		detector = sanitize.NewHTTPDetector(cfg.Sanitizer.PresidioURL)
	} else {
		logging.Warn("no redaction backend configured, text passes through unredacted")
	}
	cleaner := sanitize.New(detector)
	scorer := sentiment.NewScorer()

	processor := pipeline.NewProcessor(source, cleaner, scorer)
	orchestrator := pipeline.NewOrchestrator(source, processor, 0)
	emitter := emit.New(bucket)
	archiver := archive.New(bucket, wh)

	srv := server.New(source, orchestrator, emitter, archiver, wh)

	logging.Info("redlake starting",
		"bucket", cfg.Storage.BucketRoot,
		"warehouse", cfg.Storage.WarehousePath,
		"redaction", cleaner.Available())

	if err := srv.Run(cfg.Server.Host, cfg.Server.Port); err != nil {
		logging.Error("server exited", "error", err)
		os.Exit(1)
	}
}
