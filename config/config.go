package config

import (
	"os"
	"strconv"
)

// App holds the runtime configuration read from the environment.
type App struct {
	Port string

	// Audio framing. A chunk is SampleRate*ChunkSeconds PCM16 samples.
	SampleRate   int
	ChunkSeconds int

	// Default translation target for rooms that never send a config frame.
	TargetLanguage string

	NumWorkers int
	QueueSize  int

	// Optional GCS bucket for archiving raw chunks. Empty disables archiving.
	ArchiveBucket string

	GCPProject     string
	GCPLocation    string
	TranslateModel string
}

func Load() App {
	return App{
		Port:           getenv("PORT", "8000"),
		SampleRate:     getenvInt("SAMPLE_RATE", 16000),
		ChunkSeconds:   getenvInt("CHUNK_SECONDS", 5),
		TargetLanguage: getenv("TARGET_LANGUAGE", "en"),
		NumWorkers:     getenvInt("NUM_WORKERS", 5),
		QueueSize:      getenvInt("QUEUE_SIZE", 32),
		ArchiveBucket:  os.Getenv("ARCHIVE_BUCKET"),
		GCPProject:     os.Getenv("GCP_PROJECT"),
		GCPLocation:    getenv("GCP_LOCATION", "us-central1"),
		TranslateModel: getenv("TRANSLATE_MODEL", "gemini-1.5-flash"),
	}
}

// ChunkBytes is the extraction threshold: PCM16 mono is 2 bytes per sample.
func (a App) ChunkBytes() int {
	return a.SampleRate * a.ChunkSeconds * 2
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
