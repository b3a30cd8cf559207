package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/thevijaykgupta/VaaniYantra/config"
	"github.com/thevijaykgupta/VaaniYantra/internal/api/handlers"
	"github.com/thevijaykgupta/VaaniYantra/internal/api/middleware"
	"github.com/thevijaykgupta/VaaniYantra/internal/api/routes"
	"github.com/thevijaykgupta/VaaniYantra/internal/cache"
	"github.com/thevijaykgupta/VaaniYantra/internal/logger"
	"github.com/thevijaykgupta/VaaniYantra/internal/providers/asr"
	"github.com/thevijaykgupta/VaaniYantra/internal/providers/translate"
	mongorepo "github.com/thevijaykgupta/VaaniYantra/internal/repositories/mongo"
	pgrepo "github.com/thevijaykgupta/VaaniYantra/internal/repositories/postgres"
	"github.com/thevijaykgupta/VaaniYantra/internal/services"
	"github.com/thevijaykgupta/VaaniYantra/internal/storage"
	"github.com/thevijaykgupta/VaaniYantra/internal/stream"
	"github.com/thevijaykgupta/VaaniYantra/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.Load()
	ctx := context.Background()

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init failed")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init failed")
	}
	log.Info("Redis connected")

	var journal stream.ChunkJournal
	var chunkLogHandler *handlers.ChunkLogHandler
	if os.Getenv("MONGO_URI") != "" {
		if err := config.InitMongo(); err != nil {
			log.WithError(err).Fatal("MongoDB init failed")
		}
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Fatal("MongoDB index setup failed")
		}
		repo := mongorepo.NewChunkLogRepo(config.MongoDatabase())
		journal = repo
		chunkLogHandler = handlers.NewChunkLogHandler(repo)
		log.Info("MongoDB connected, chunk journal enabled")
	}

	speech, err := asr.NewGoogleSpeech(ctx, cfg.SampleRate)
	if err != nil {
		log.WithError(err).Fatal("Speech client init failed")
	}
	defer speech.Close()

	if cfg.GCPProject == "" {
		log.Fatal("GCP_PROJECT environment variable is not set")
	}
	translator, err := translate.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.TranslateModel)
	if err != nil {
		log.WithError(err).Fatal("Translation client init failed")
	}
	defer translator.Close()

	var archive storage.Uploader
	if cfg.ArchiveBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.ArchiveBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init failed")
		}
		defer up.Close()
		archive = up
		log.WithField("bucket", cfg.ArchiveBucket).Info("chunk archiving enabled")
	}

	transcriptSvc := services.NewTranscriptService(
		pgrepo.NewTranscriptRepo(config.PostgresDB),
		cache.NewRedisCache(config.RedisClient),
	)

	registry := stream.NewRegistry(log)
	sessions := stream.NewSessionStore(cfg.TargetLanguage)
	pipeline := &stream.Pipeline{
		Sessions:   sessions,
		Registry:   registry,
		ASR:        speech,
		Translator: translator,
		Store:      transcriptSvc,
		Journal:    journal,
		Archive:    archive,
		Log:        log,
	}

	pool := &workers.ChunkWorkerPool{
		Pipeline:   pipeline,
		NumWorkers: cfg.NumWorkers,
		QueueSize:  cfg.QueueSize,
		Logger:     log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("worker pool start failed")
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Transcripts: handlers.NewTranscriptHandler(transcriptSvc, pipeline),
		WS:          handlers.NewWSHandler(ctx, registry, sessions, pool, cfg.ChunkBytes(), log),
		ChunkLog:    chunkLogHandler,
	})

	log.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"sample_rate": cfg.SampleRate,
		"chunk_sec":   cfg.ChunkSeconds,
		"chunk_bytes": cfg.ChunkBytes(),
	}).Info("server starting")

	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
