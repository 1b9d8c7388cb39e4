package service

import (
	"context"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
)

// ProgressFunc reports a collaborator-defined checkpoint in [0,100].
type ProgressFunc func(percent int)

// ExtractedSlide is one slide as returned by the extraction collaborator.
type ExtractedSlide struct {
	Title             string  `json:"title"`
	Content           string  `json:"content"`
	ImageRef          string  `json:"image_ref,omitempty"`
	EstimatedDuration float64 `json:"estimated_duration"`
}

// SubtitleEntry is one timed caption handed to the subtitle collaborator.
type SubtitleEntry struct {
	Index    int     `json:"index"`
	StartSec float64 `json:"start_time"`
	EndSec   float64 `json:"end_time"`
	Text     string  `json:"text"`
}

// The stage collaborators. Each is a single blocking call that may take
// seconds to minutes; callers bound it with a context deadline. Calls must be
// safe to retry after a worker crash.
type (
	Extractor interface {
		ExtractSlides(ctx context.Context, fileBytes []byte, progress ProgressFunc) ([]ExtractedSlide, error)
	}
	ScriptGenerator interface {
		GenerateScript(ctx context.Context, content, customPrompt string, progress ProgressFunc) (string, error)
	}
	SpeechSynthesizer interface {
		// GenerateSpeech returns the audio bytes and their duration in seconds.
		GenerateSpeech(ctx context.Context, text string, voice models.VoiceSettings, progress ProgressFunc) ([]byte, float64, error)
	}
	VideoRenderer interface {
		// RenderVideo returns the video bytes and the total duration in seconds.
		RenderVideo(ctx context.Context, slides []models.RenderSlide, settings models.RenderSettings, progress ProgressFunc) ([]byte, float64, error)
	}
	SubtitleGenerator interface {
		GenerateSubtitles(ctx context.Context, entries []SubtitleEntry, progress ProgressFunc) ([]byte, error)
	}
)

// Collaborators bundles one implementation of each capability, selected at
// composition time.
type Collaborators struct {
	Extractor Extractor
	ScriptGen ScriptGenerator
	TTS       SpeechSynthesizer
	Renderer  VideoRenderer
	Subtitler SubtitleGenerator
}

// NewCollaborators picks the backend from config: deterministic stubs or the
// HTTP worker clients.
func NewCollaborators(cfg config.PipelineConfig) Collaborators {
	if cfg.Backend == "http" {
		return Collaborators{
			Extractor: NewHTTPExtractor(cfg.ExtractorAddr),
			ScriptGen: NewHTTPScriptGenerator(cfg.ScriptGenAddr),
			TTS:       NewHTTPSynthesizer(cfg.TTSAddr),
			Renderer:  NewHTTPRenderer(cfg.RenderAddr),
			Subtitler: NewHTTPSubtitler(cfg.SubtitleAddr),
		}
	}
	return Collaborators{
		Extractor: &StubExtractor{},
		ScriptGen: &StubScriptGenerator{},
		TTS:       &StubSynthesizer{},
		Renderer:  &StubRenderer{},
		Subtitler: &StubSubtitler{},
	}
}
