package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
)

// Processor hosts the stage workers: one handler per stage type, each pulled
// concurrently from its queue. A handler blocks only its own worker slot.
type Processor struct {
	store     models.Store
	ledger    *Ledger
	queue     WorkQueue
	artifacts ArtifactStore
	collab    Collaborators
	pipeline  config.PipelineConfig
}

func NewProcessor(store models.Store, ledger *Ledger, queue WorkQueue, artifacts ArtifactStore, collab Collaborators, pipeline config.PipelineConfig) *Processor {
	return &Processor{
		store:     store,
		ledger:    ledger,
		queue:     queue,
		artifacts: artifacts,
		collab:    collab,
		pipeline: pipeline,
	}
}

// Register subscribes every stage handler on the queue.
func (p *Processor) Register() {
	p.queue.Subscribe(models.StageParse, p.stageHandler(models.StageParse, p.handleParse))
	p.queue.Subscribe(models.StageScript, p.stageHandler(models.StageScript, p.handleScript))
	p.queue.Subscribe(models.StageTTS, p.stageHandler(models.StageTTS, p.handleTTS))
	p.queue.Subscribe(models.StageRender, p.stageHandler(models.StageRender, p.handleRender))
	p.queue.Subscribe(models.StageSubtitle, p.stageHandler(models.StageSubtitle, p.handleSubtitle))
}

// Start registers the handlers and runs the queue consumer in the background.
func (p *Processor) Start() {
	p.Register()
	go func() {
		if err := p.queue.Run(); err != nil {
			log.Fatal().Err(err).Msg("queue consumer stopped")
		}
	}()
}

type stageFunc func(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error)

// stageHandler wraps a stage implementation with the shared lifecycle: load
// the job, mark it running, bound the collaborator call by the stage's
// wall-clock limit, and write the terminal status. Application failures are
// recorded in the ledger and return nil so the queue does not redeliver;
// returned errors are transport-level only.
func (p *Processor) stageHandler(stage string, fn stageFunc) StageHandler {
	return func(ctx context.Context, jobID string) error {
		job, err := p.ledger.Get(jobID)
		if err != nil {
			return fmt.Errorf("job %s not found: %w", jobID, err)
		}
		if job.Terminal() {
			// Redelivery of a settled job; nothing to do.
			log.Info().Str("job_id", jobID).Str("status", job.Status).Msg("skipping terminal job redelivery")
			return nil
		}
		log.Info().Str("job_id", jobID).Str("stage", stage).Str("project_id", job.ProjectID).Msg("job started")
		if err := p.ledger.MarkRunning(jobID); err != nil {
			return err
		}

		stageCtx, cancel := context.WithTimeout(ctx, p.pipeline.StageTimeout(stage))
		defer cancel()

		progress := func(percent int) {
			if err := p.ledger.UpdateProgress(jobID, percent); err != nil {
				log.Warn().Err(err).Str("job_id", jobID).Msg("progress write failed")
			}
		}

		result, err := fn(stageCtx, job, progress)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %s exceeded %s", ErrTimeout, stage, p.pipeline.StageTimeout(stage))
			}
			log.Error().Err(err).Str("job_id", jobID).Str("stage", stage).Msg("job failed")
			return p.ledger.MarkFailed(jobID, err)
		}
		log.Info().Str("job_id", jobID).Str("stage", stage).Msg("job completed")
		return p.ledger.MarkCompleted(jobID, result)
	}
}

func (p *Processor) handleParse(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	payload := job.Payload.Parse
	if payload == nil {
		return nil, fmt.Errorf("%w: missing parse payload", ErrValidation)
	}
	fileBytes, err := p.artifacts.Download(ctx, payload.SourceFileKey)
	if err != nil {
		return nil, err
	}
	progress(10)

	extracted, err := p.collab.Extractor.ExtractSlides(ctx, fileBytes, clampProgress(progress, 10, 80))
	if err != nil {
		if !p.pipeline.PlaceholderOnExtractFailure {
			return nil, err
		}
		// Degraded mode, explicitly opted into: synthesize placeholder
		// slides instead of failing the project.
		log.Warn().Err(err).Str("project_id", payload.ProjectID).Msg("extraction failed, using placeholder slides")
		extracted = placeholderSlides()
	}

	slides := make([]models.Slide, 0, len(extracted))
	for i, ex := range extracted {
		slides = append(slides, models.Slide{
			ID:          uuid.NewString(),
			ProjectID:   payload.ProjectID,
			Order:       i + 1,
			Title:       ex.Title,
			Content:     ex.Content,
			ImageURL:    ex.ImageRef,
			DurationSec: ex.EstimatedDuration,
		})
	}
	if err := p.store.CreateSlides(slides); err != nil {
		return nil, err
	}
	progress(90)
	return &models.JobResult{ResourceType: "slides", SlideCount: len(slides)}, nil
}

func (p *Processor) handleScript(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	payload := job.Payload.Script
	if payload == nil {
		return nil, fmt.Errorf("%w: missing script payload", ErrValidation)
	}
	text, err := p.collab.ScriptGen.GenerateScript(ctx, payload.Content, payload.CustomPrompt, clampProgress(progress, 5, 85))
	if err != nil {
		return nil, err
	}

	project, err := p.store.GetProject(job.ProjectID)
	if err != nil {
		return nil, err
	}
	script := &models.Script{
		ID:      uuid.NewString(),
		SlideID: payload.SlideID,
		Content: text,
		Voice:   project.Voice,
	}
	if err := p.store.ReplaceScript(script); err != nil {
		return nil, err
	}
	progress(95)
	return &models.JobResult{ResourceType: "script", ResourceID: script.ID}, nil
}

func (p *Processor) handleTTS(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	payload := job.Payload.TTS
	if payload == nil {
		return nil, fmt.Errorf("%w: missing tts payload", ErrValidation)
	}
	audio, durationSec, err := p.collab.TTS.GenerateSpeech(ctx, payload.Content, payload.Voice, clampProgress(progress, 5, 75))
	if err != nil {
		return nil, err
	}

	// Stable key: a retried job overwrites the same object.
	key := fmt.Sprintf("slides/%s/audio.wav", payload.SlideID)
	audioURL, err := p.artifacts.Upload(ctx, key, audio, "audio/wav")
	if err != nil {
		return nil, err
	}
	progress(90)
	if err := p.store.SetSlideAudio(payload.SlideID, audioURL, durationSec); err != nil {
		return nil, err
	}
	return &models.JobResult{ResourceType: "audio", ResourceID: payload.SlideID, ResourceURL: audioURL, DurationSec: durationSec}, nil
}

func (p *Processor) handleRender(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	payload := job.Payload.Render
	if payload == nil {
		return nil, fmt.Errorf("%w: missing render payload", ErrValidation)
	}
	if err := p.store.MarkVideoProcessing(payload.VideoID); err != nil {
		return nil, err
	}
	videoBytes, durationSec, err := p.collab.Renderer.RenderVideo(ctx, payload.Slides, payload.Settings, clampProgress(progress, 5, 80))
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("videos/%s/video.mp4", payload.VideoID)
	videoURL, err := p.artifacts.Upload(ctx, key, videoBytes, "video/mp4")
	if err != nil {
		return nil, err
	}
	progress(90)

	thumbnailURL := ""
	if len(payload.Slides) > 0 {
		thumbnailURL = payload.Slides[0].ImageURL
	}
	if err := p.store.SetVideoArtifact(payload.VideoID, videoURL, thumbnailURL, durationSec); err != nil {
		return nil, err
	}
	return &models.JobResult{ResourceType: "video", ResourceID: payload.VideoID, ResourceURL: videoURL, DurationSec: durationSec}, nil
}

func (p *Processor) handleSubtitle(ctx context.Context, job *models.Job, progress ProgressFunc) (*models.JobResult, error) {
	payload := job.Payload.Subtitle
	if payload == nil {
		return nil, fmt.Errorf("%w: missing subtitle payload", ErrValidation)
	}
	slides, err := p.store.SlidesByProject(payload.ProjectID)
	if err != nil {
		return nil, err
	}

	entries := make([]SubtitleEntry, 0, len(slides))
	start := 0.0
	for i, sl := range slides {
		text := sl.Content
		if script, err := p.store.ScriptBySlide(sl.ID); err == nil {
			text = script.Content
		}
		entries = append(entries, SubtitleEntry{
			Index:    i + 1,
			StartSec: start,
			EndSec:   start + sl.DurationSec,
			Text:     text,
		})
		start += sl.DurationSec
	}

	srt, err := p.collab.Subtitler.GenerateSubtitles(ctx, entries, clampProgress(progress, 5, 80))
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("videos/%s/subtitles.srt", payload.VideoID)
	subtitleURL, err := p.artifacts.Upload(ctx, key, srt, "application/x-subrip")
	if err != nil {
		return nil, err
	}
	progress(90)
	if err := p.store.SetVideoSubtitle(payload.VideoID, subtitleURL); err != nil {
		return nil, err
	}
	return &models.JobResult{ResourceType: "subtitle", ResourceID: payload.VideoID, ResourceURL: subtitleURL}, nil
}

// clampProgress rescales a collaborator's 0-100 checkpoints into [lo,hi] so
// the outer handler keeps the edges for its own download/persist steps.
func clampProgress(progress ProgressFunc, lo, hi int) ProgressFunc {
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		progress(lo + (hi-lo)*percent/100)
	}
}

func placeholderSlides() []ExtractedSlide {
	return []ExtractedSlide{
		{
			Title:             "Slide 1",
			Content:           "This slide could not be extracted from the uploaded deck.",
			EstimatedDuration: 5,
		},
	}
}
