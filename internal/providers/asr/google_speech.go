package asr

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	SampleRateHz int32
	// Candidate languages offered to the recognizer when no hint is pinned.
	AltLanguages []string
}

func NewGoogleSpeech(ctx context.Context, sampleRateHz int) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		SampleRateHz: int32(sampleRateHz),
		AltLanguages: []string{"hi-IN", "es-ES", "id-ID"},
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, pcm []byte, languageHint string) ([]Segment, string, error) {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            g.SampleRateHz,
		LanguageCode:               bcp47(languageHint),
		EnableAutomaticPunctuation: true,
	}
	if languageHint == "" {
		cfg.AlternativeLanguageCodes = g.AltLanguages
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return nil, "", err
	}

	detected := languageHint
	var segments []Segment
	var prevEnd float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		text := r.Alternatives[0].Transcript
		end := prevEnd
		if r.ResultEndTime != nil {
			end = r.ResultEndTime.AsDuration().Seconds()
		}
		segments = append(segments, Segment{Start: prevEnd, End: end, Text: text})
		prevEnd = end

		if detected == "" && r.LanguageCode != "" {
			detected = baseTag(r.LanguageCode)
		}
	}
	if detected == "" {
		detected = "en"
	}
	return segments, detected, nil
}

// bcp47 widens a bare language tag to the regional code the API expects.
func bcp47(lang string) string {
	switch lang {
	case "", "en":
		return "en-US"
	case "hi":
		return "hi-IN"
	case "es":
		return "es-ES"
	case "id":
		return "id-ID"
	default:
		return lang
	}
}

func baseTag(code string) string {
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}
