package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"compound-harmonizer/config"
	"compound-harmonizer/providers"
	"compound-harmonizer/providers/europepmc"
	"compound-harmonizer/providers/pubmed"
	"compound-harmonizer/providers/wikipedia"
	"compound-harmonizer/services"
	"compound-harmonizer/storage"
)

var (
	harmonizedRecordsCounter *prometheus.CounterVec
	harmonizeCorrections     *prometheus.CounterVec
	retrievalCounter         *prometheus.CounterVec
	classificationDropped    *prometheus.CounterVec
)

func init() {
	harmonizedRecordsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonized_records_total",
			Help: "Total number of harmonized compound records per dataset.",
		},
		[]string{"dataset"},
	)
	harmonizeCorrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonize_corrections_total",
			Help: "Silent corrections during dataset harmonization (fallback, unmatched, dropped, missing_frequency).",
		},
		[]string{"dataset", "kind"},
	)
	retrievalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_results_total",
			Help: "Text retrieval outcomes per dataset.",
		},
		[]string{"dataset", "outcome"},
	)
	classificationDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_rows_dropped_total",
			Help: "Classified public rows dropped before aggregation.",
		},
		[]string{"reason"},
	)
	prometheus.MustRegister(harmonizedRecordsCounter, harmonizeCorrections, retrievalCounter, classificationDropped)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := storage.Open(cfg.DSN())
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	repo := storage.NewRepository(db, logging)
	logging.Info("Running database auto-migration...")
	if err := repo.AutoMigrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Retrievers
	var retrievers []providers.Retriever
	for _, name := range cfg.Retrievers() {
		switch name {
		case "wikipedia":
			retrievers = append(retrievers, wikipedia.NewFetcher(cfg.WikipediaBaseURL, logging))
		case "pubmed":
			retrievers = append(retrievers, pubmed.NewFetcher(cfg.PubMedBaseURL, cfg.PubMedAPIKey, logging))
		case "europepmc":
			retrievers = append(retrievers, europepmc.NewFetcher(cfg.EuropePMCBaseURL, logging))
		default:
			logging.Warn("Unknown retriever in config", zap.String("retriever_name", name))
		}
	}
	if len(retrievers) == 0 {
		logging.Fatal("No valid retrievers enabled. Check ENABLED_RETRIEVERS in .env")
	}
	chain := providers.NewChain(logging, retrievers...)
	logging.Info("Active retrievers loaded", zap.String("chain", chain.Name()))

	// Setup Services
	pipeline, err := buildPipeline(cfg, chain, repo, logging)
	if err != nil {
		logging.Fatal("Pipeline setup failed", zap.Error(err))
	}
	if cfg.UploadEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		pipeline.Uploader = storage.NewUploader(s3Client, cfg.S3Bucket, cfg.S3URL, logging)
	}
	runner := &harmonizeRunner{pipeline: pipeline, dataDir: cfg.DataDir, logger: logging}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupHarmonizeRoutes(router, runner)
	setupCompoundRoutes(router, repo, pipeline, logging)
	setupClassificationRoutes(router, pipeline, cfg.ClassifiedDir, logging)
	setupDistributionRoutes(router, repo, logging)

	// Setup Cron
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled harmonization job...")
		runner.run(context.Background())
	}); err != nil {
		logging.Fatal("Invalid CRON_SCHEDULE", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func buildPipeline(cfg *config.Config, retriever providers.Retriever, store services.Store, logging *zap.Logger) (*services.Pipeline, error) {
	synonyms, err := services.NewSynonymNormalizer(services.DefaultSynonymRules(), logging)
	if err != nil {
		return nil, err
	}
	labels := services.NewLabelHarmonizer(services.DefaultLabelRules())
	normalizer := services.NewTextNormalizer(services.DefaultNormalizeOptions(), logging)
	return &services.Pipeline{
		Datasets:        services.NewDatasetHarmonizer(services.DefaultDatasetCatalog(), services.DefaultDatasetColumns(), synonyms, logging),
		Classifications: services.NewClassificationHarmonizer(services.DefaultClassificationConfig(), labels, logging),
		Aggregator:      services.NewAggregator(services.DefaultDatasetGroups(), logging),
		Retrieval:       services.NewRetrievalService(retriever, normalizer, cfg.RetrievalSourcePriority, cfg.RetrievalMaxWorkers, logging),
		Artifacts:       services.NewArtifactWriter(cfg.OutputDir, logging),
		Store:           store,
		Logger:          logging,
	}, nil
}

// harmonizeRunner verhindert, dass Cron und API gleichzeitig harmonisieren.
type harmonizeRunner struct {
	mu       sync.Mutex
	pipeline *services.Pipeline
	dataDir  string
	logger   *zap.Logger
}

func (r *harmonizeRunner) run(ctx context.Context) bool {
	if !r.mu.TryLock() {
		r.logger.Warn("Harmonization already running, skipping.")
		return false
	}
	defer r.mu.Unlock()

	report, err := r.pipeline.HarmonizeDatasets(ctx, r.dataDir)
	if err != nil {
		r.logger.Error("Harmonization failed", zap.Error(err))
		return true
	}
	for _, s := range report.Datasets {
		harmonizedRecordsCounter.WithLabelValues(s.Dataset).Add(float64(s.Records))
		harmonizeCorrections.WithLabelValues(s.Dataset, "fallback").Add(float64(s.Fallbacks))
		harmonizeCorrections.WithLabelValues(s.Dataset, "unmatched").Add(float64(s.Unmatched))
		harmonizeCorrections.WithLabelValues(s.Dataset, "dropped").Add(float64(s.DroppedRows))
		harmonizeCorrections.WithLabelValues(s.Dataset, "missing_frequency").Add(float64(s.MissingFrequencies))
	}
	r.logger.Info("Harmonization completed", zap.Int("records", report.Records()), zap.Strings("artifacts", report.Artifacts))
	return true
}

func setupHarmonizeRoutes(router *gin.Engine, runner *harmonizeRunner) {
	router.POST("/harmonize", func(c *gin.Context) {
		go runner.run(context.Background())
		c.JSON(http.StatusAccepted, gin.H{"message": "Harmonization triggered.", "data_dir": runner.dataDir})
	})
}

func setupCompoundRoutes(router *gin.Engine, repo *storage.Repository, pipeline *services.Pipeline, log *zap.Logger) {
	router.GET("/compounds", func(c *gin.Context) {
		records, err := repo.ListCompounds(c.Request.Context(), c.Query("dataset"))
		if err != nil {
			log.Error("Database query for compounds failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, records)
	})

	locks := newDatasetLocks()
	router.POST("/retrieval/:dataset", func(c *gin.Context) {
		dataset := c.Param("dataset")
		records, err := repo.ListCompounds(c.Request.Context(), dataset)
		if err != nil {
			log.Error("Database query for compounds failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if len(records) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no harmonized compounds for dataset"})
			return
		}
		if !locks.tryLock(dataset) {
			log.Warn("Retrieval already running, skipping.", zap.String("dataset", dataset))
			c.JSON(http.StatusConflict, gin.H{"error": "retrieval for dataset " + dataset + " already running"})
			return
		}

		go func() {
			defer locks.unlock(dataset)
			stats, err := pipeline.RetrieveTexts(context.Background(), dataset, records)
			if err != nil {
				log.Error("Async retrieval failed", zap.String("dataset", dataset), zap.Error(err))
				return
			}
			retrievalCounter.WithLabelValues(dataset, "found").Add(float64(stats.Found))
			retrievalCounter.WithLabelValues(dataset, "not_found").Add(float64(stats.NotFound))
			retrievalCounter.WithLabelValues(dataset, "skipped").Add(float64(stats.Skipped))
			log.Info("Async retrieval completed", zap.String("dataset", dataset), zap.Int("found", stats.Found))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Retrieval for dataset " + dataset + " triggered.", "records": len(records)})
	})
}

// datasetLocks lässt pro Datensatz höchstens einen Retrieval-Lauf zu.
type datasetLocks struct {
	mu      sync.Mutex
	running map[string]bool
}

func newDatasetLocks() *datasetLocks {
	return &datasetLocks{running: make(map[string]bool)}
}

func (l *datasetLocks) tryLock(dataset string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[dataset] {
		return false
	}
	l.running[dataset] = true
	return true
}

func (l *datasetLocks) unlock(dataset string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, dataset)
}

var errPathOutsideBase = errors.New("path must be relative and stay inside the classified data directory")

// resolveUnder löst einen Request-Pfad relativ zu base auf. Absolute Pfade und Pfade, die base
// über ".." verlassen, werden abgelehnt.
func resolveUnder(base, p string) (string, error) {
	if !filepath.IsLocal(p) || filepath.Clean(p) == "." {
		return "", fmt.Errorf("%q: %w", p, errPathOutsideBase)
	}
	return filepath.Join(base, p), nil
}

func setupClassificationRoutes(router *gin.Engine, pipeline *services.Pipeline, baseDir string, log *zap.Logger) {
	rg := router.Group("/classifications")

	rg.POST("/public", func(c *gin.Context) {
		var req struct {
			Path   string `json:"path" binding:"required"`
			Refine bool   `json:"refine"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path, err := resolveUnder(baseDir, req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := pipeline.ClassifyPublic(c.Request.Context(), path, req.Refine)
		if err != nil {
			log.Warn("Public classification failed", zap.String("path", req.Path), zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		classificationDropped.WithLabelValues("info").Add(float64(report.Stats.DroppedInfo))
		classificationDropped.WithLabelValues("empty").Add(float64(report.Stats.DroppedEmpty))
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/drug-library", func(c *gin.Context) {
		var req struct {
			Path string `json:"path" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path, err := resolveUnder(baseDir, req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := pipeline.EvaluateDrugLibrary(c.Request.Context(), path)
		if err != nil {
			log.Warn("Drug library evaluation failed", zap.String("path", req.Path), zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

func setupDistributionRoutes(router *gin.Engine, repo *storage.Repository, log *zap.Logger) {
	router.GET("/distributions", func(c *gin.Context) {
		var refined *bool
		if raw := c.Query("refined"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "refined must be a boolean"})
				return
			}
			refined = &v
		}
		dists, err := repo.ListDistributions(c.Request.Context(), refined)
		if err != nil {
			log.Error("Database query for distributions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, dists)
	})
}

// statusFor bildet die typisierten Fehler der Harmonisierung auf HTTP-Status ab.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrParse):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
