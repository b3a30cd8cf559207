package asr

import "context"

// Segment is one recognized span of speech within a chunk.
type Segment struct {
	Start float64 // seconds from chunk start
	End   float64
	Text  string
}

type Provider interface {
	// Transcribe recognizes one PCM16 chunk. languageHint is the pinned
	// source language for the room, or "" on the first chunk; the detected
	// language is always returned so the caller can pin it.
	Transcribe(ctx context.Context, pcm []byte, languageHint string) ([]Segment, string, error)
	Close() error
}
