package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/models"
)

// Orchestrator decides which stage to enqueue next given a job's outcome.
// Ordering within a project comes entirely from this enqueue-on-completion
// logic; the queues themselves interleave jobs from many projects freely.
//
// Failure policy: a slide-level failure (script, TTS) fails the project but
// leaves already-enqueued sibling slide jobs running; project-level stages
// (render, subtitle) short-circuit. Once a project is terminal nothing new is
// enqueued for it.
type Orchestrator struct {
	store   models.Store
	ledger  *Ledger
	credits *Credits
	queue   WorkQueue
	// fanout runs the post-parse per-slide gating concurrently.
	fanout *ants.Pool
}

func NewOrchestrator(store models.Store, ledger *Ledger, credits *Credits, queue WorkQueue, fanoutSize int) (*Orchestrator, error) {
	if fanoutSize <= 0 {
		fanoutSize = 10
	}
	pool, err := ants.NewPool(fanoutSize)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:   store,
		ledger:  ledger,
		credits: credits,
		queue:   queue,
		fanout:  pool,
	}
	ledger.SetOutcomeListener(o)
	return o, nil
}

func (o *Orchestrator) Close() {
	o.fanout.Release()
}

// StartPipeline creates the parse job for a freshly uploaded project and
// moves the project into processing.
func (o *Orchestrator) StartPipeline(ctx context.Context, project *models.Project) (*models.Job, error) {
	if project.SourceFileKey == "" {
		return nil, fmt.Errorf("%w: project has no source file", ErrValidation)
	}
	job, err := o.ledger.Create(project.ID, models.StageParse, models.JobPayload{
		Parse: &models.ParsePayload{
			ProjectID:     project.ID,
			SourceFileKey: project.SourceFileKey,
		},
	})
	if err != nil {
		return nil, err
	}
	// Parse is free by default, but the debit path is still consulted so a
	// nonzero configured cost is honored.
	if _, err := o.credits.Debit(project.OwnerID, models.StageParse, job.ID, 1); err != nil {
		o.failJobAndProject(job, err)
		return job, nil
	}
	if err := o.queue.Enqueue(ctx, models.StageParse, job.ID); err != nil {
		o.failJobAndProject(job, err)
		return job, nil
	}
	if err := o.store.MarkProjectProcessing(project.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueJob hands an API-created job (script regeneration) to its stage
// queue.
func (o *Orchestrator) EnqueueJob(ctx context.Context, stage, jobID string) error {
	return o.queue.Enqueue(ctx, stage, jobID)
}

// CancelProject marks the project failed and stops all further enqueues.
// In-flight collaborator calls are not interrupted; cancellation takes effect
// at the next stage boundary.
func (o *Orchestrator) CancelProject(projectID, reason string) error {
	applied, err := o.store.MarkProjectFailed(projectID, "cancelled: "+reason)
	if err != nil {
		return err
	}
	if applied {
		log.Info().Str("project_id", projectID).Str("reason", reason).Msg("project cancelled")
		if video, err := o.store.VideoByProject(projectID); err == nil {
			_ = o.store.MarkVideoFailed(video.ID)
		}
	}
	return nil
}

// JobCompleted implements OutcomeListener.
func (o *Orchestrator) JobCompleted(job *models.Job) {
	project, err := o.store.GetProject(job.ProjectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", job.ProjectID).Msg("load project on job completion failed")
		return
	}
	if project.Terminal() {
		// A sibling chain already failed the project, or it was cancelled.
		// The finished work is recorded but nothing further is enqueued.
		log.Info().Str("job_id", job.ID).Str("project_id", project.ID).Msg("project terminal, not chaining")
		return
	}

	switch job.StageType {
	case models.StageParse:
		o.onParseCompleted(project, job)
	case models.StageScript:
		o.onScriptCompleted(project, job)
	case models.StageTTS:
		o.onTTSCompleted(project, job)
	case models.StageRender:
		o.onRenderCompleted(project, job)
	case models.StageSubtitle:
		o.onSubtitleCompleted(project, job)
	default:
		log.Error().Str("stage", job.StageType).Str("job_id", job.ID).Msg("unknown stage type on completion")
	}
}

// JobFailed implements OutcomeListener. Any failed job fails its project;
// the first recorded error wins. Sibling slide jobs already enqueued keep
// running and record their artifacts independently.
func (o *Orchestrator) JobFailed(job *models.Job) {
	msg := fmt.Sprintf("%s failed: %s", job.StageType, job.Error)
	applied, err := o.store.MarkProjectFailed(job.ProjectID, msg)
	if err != nil {
		log.Error().Err(err).Str("project_id", job.ProjectID).Msg("mark project failed errored")
		return
	}
	if applied {
		log.Warn().Str("project_id", job.ProjectID).Str("job_id", job.ID).Str("stage", job.StageType).Msg("project failed")
	}
	if job.StageType == models.StageRender || job.StageType == models.StageSubtitle {
		if video, err := o.store.VideoByProject(job.ProjectID); err == nil {
			_ = o.store.MarkVideoFailed(video.ID)
		}
	}
}

// onParseCompleted fans out one script job per extracted slide. Each slide is
// gated on credits independently: an insufficient balance halts that slide's
// chain (and fails the project) but the siblings proceed.
func (o *Orchestrator) onParseCompleted(project *models.Project, job *models.Job) {
	slides, err := o.store.SlidesByProject(project.ID)
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("load slides after parse failed")
		return
	}
	if len(slides) == 0 {
		o.failJobAndProject(job, fmt.Errorf("%w: parse produced no slides", ErrValidation))
		return
	}

	var wg sync.WaitGroup
	for i := range slides {
		slide := slides[i]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			o.startSlideChain(project, slide)
		}
		if err := o.fanout.Submit(task); err != nil {
			// Pool saturated or released; run inline rather than drop.
			task()
		}
	}
	wg.Wait()
}

func (o *Orchestrator) startSlideChain(project *models.Project, slide models.Slide) {
	check, err := o.credits.CheckSlideChain(project.OwnerID)
	if err != nil {
		log.Error().Err(err).Str("slide_id", slide.ID).Msg("credit check failed")
		return
	}
	scriptJob, err := o.ledger.Create(project.ID, models.StageScript, models.JobPayload{
		Script: &models.ScriptPayload{
			SlideID: slide.ID,
			Content: slide.Content,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("slide_id", slide.ID).Msg("create script job failed")
		return
	}
	if !check.Sufficient {
		// Never attempt the debit below sufficiency; record why the chain
		// halted, distinctly from a collaborator failure.
		o.failJob(scriptJob, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, check.Required, check.Available))
		return
	}
	if _, err := o.credits.Debit(project.OwnerID, models.StageScript, scriptJob.ID, 1); err != nil {
		o.failJob(scriptJob, err)
		return
	}
	if err := o.queue.Enqueue(context.Background(), models.StageScript, scriptJob.ID); err != nil {
		o.failJob(scriptJob, err)
	}
}

// onScriptCompleted chains the slide's TTS job.
func (o *Orchestrator) onScriptCompleted(project *models.Project, job *models.Job) {
	payload := job.Payload.Script
	if payload == nil || job.Result == nil {
		log.Error().Str("job_id", job.ID).Msg("script job missing payload or result")
		return
	}
	script, err := o.store.GetScript(job.Result.ResourceID)
	if err != nil {
		log.Error().Err(err).Str("script_id", job.Result.ResourceID).Msg("load script after generation failed")
		return
	}

	ttsJob, err := o.ledger.Create(project.ID, models.StageTTS, models.JobPayload{
		TTS: &models.TTSPayload{
			ScriptID: script.ID,
			SlideID:  payload.SlideID,
			Content:  script.Content,
			Voice:    script.Voice,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("slide_id", payload.SlideID).Msg("create tts job failed")
		return
	}
	if _, err := o.credits.Debit(project.OwnerID, models.StageTTS, ttsJob.ID, 1); err != nil {
		o.failJob(ttsJob, err)
		return
	}
	if err := o.queue.Enqueue(context.Background(), models.StageTTS, ttsJob.ID); err != nil {
		o.failJob(ttsJob, err)
	}
}

// onTTSCompleted enqueues the project-level render once, when the last slide
// gains audio. The render-enqueued flag makes the "last slide" race safe: two
// concurrent TTS completions both observing zero missing audio elect exactly
// one render.
func (o *Orchestrator) onTTSCompleted(project *models.Project, job *models.Job) {
	missing, err := o.store.CountSlidesMissingAudio(project.ID)
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("count slides missing audio failed")
		return
	}
	if missing > 0 {
		log.Debug().Str("project_id", project.ID).Int("missing", missing).Msg("waiting for remaining audio")
		return
	}
	won, err := o.store.TryMarkRenderEnqueued(project.ID)
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("render enqueue flag failed")
		return
	}
	if !won {
		return
	}

	slides, err := o.store.SlidesByProject(project.ID)
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("load slides for render failed")
		return
	}
	renderSlides := make([]models.RenderSlide, 0, len(slides))
	for _, sl := range slides {
		renderSlides = append(renderSlides, models.RenderSlide{
			ID:          sl.ID,
			Title:       sl.Title,
			Content:     sl.Content,
			AudioURL:    sl.AudioURL,
			ImageURL:    sl.ImageURL,
			DurationSec: sl.DurationSec,
		})
	}

	video := &models.Video{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Status:    models.VideoStatusPending,
		Settings:  project.Render,
	}
	if err := o.store.CreateVideo(video); err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("create video failed")
		return
	}
	renderJob, err := o.ledger.Create(project.ID, models.StageRender, models.JobPayload{
		Render: &models.RenderPayload{
			VideoID:   video.ID,
			ProjectID: project.ID,
			Slides:    renderSlides,
			Settings:  project.Render,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("create render job failed")
		return
	}
	if _, err := o.credits.Debit(project.OwnerID, models.StageRender, renderJob.ID, 1); err != nil {
		_ = o.store.MarkVideoFailed(video.ID)
		o.failJob(renderJob, err)
		return
	}
	if err := o.queue.Enqueue(context.Background(), models.StageRender, renderJob.ID); err != nil {
		_ = o.store.MarkVideoFailed(video.ID)
		o.failJob(renderJob, err)
	}
}

// onRenderCompleted chains subtitles when requested, otherwise finishes the
// project.
func (o *Orchestrator) onRenderCompleted(project *models.Project, job *models.Job) {
	payload := job.Payload.Render
	if payload == nil {
		log.Error().Str("job_id", job.ID).Msg("render job missing payload")
		return
	}
	if !project.Subtitles {
		o.finishProject(project.ID, payload.VideoID)
		return
	}

	subJob, err := o.ledger.Create(project.ID, models.StageSubtitle, models.JobPayload{
		Subtitle: &models.SubtitlePayload{
			VideoID:   payload.VideoID,
			ProjectID: project.ID,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("project_id", project.ID).Msg("create subtitle job failed")
		return
	}
	if _, err := o.credits.Debit(project.OwnerID, models.StageSubtitle, subJob.ID, 1); err != nil {
		_ = o.store.MarkVideoFailed(payload.VideoID)
		o.failJob(subJob, err)
		return
	}
	if err := o.queue.Enqueue(context.Background(), models.StageSubtitle, subJob.ID); err != nil {
		_ = o.store.MarkVideoFailed(payload.VideoID)
		o.failJob(subJob, err)
	}
}

func (o *Orchestrator) onSubtitleCompleted(project *models.Project, job *models.Job) {
	payload := job.Payload.Subtitle
	if payload == nil {
		log.Error().Str("job_id", job.ID).Msg("subtitle job missing payload")
		return
	}
	o.finishProject(project.ID, payload.VideoID)
}

func (o *Orchestrator) finishProject(projectID, videoID string) {
	if err := o.store.MarkVideoCompleted(videoID); err != nil {
		log.Error().Err(err).Str("video_id", videoID).Msg("mark video completed failed")
		return
	}
	applied, err := o.store.MarkProjectCompleted(projectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", projectID).Msg("mark project completed failed")
		return
	}
	if applied {
		log.Info().Str("project_id", projectID).Str("video_id", videoID).Msg("project completed")
	}
}

// failJob marks a never-enqueued job failed; the ledger's outcome
// notification then routes through JobFailed and fails the project.
func (o *Orchestrator) failJob(job *models.Job, err error) {
	if markErr := o.ledger.MarkFailed(job.ID, err); markErr != nil {
		log.Error().Err(markErr).Str("job_id", job.ID).Msg("mark job failed errored")
	}
}

func (o *Orchestrator) failJobAndProject(job *models.Job, err error) {
	o.failJob(job, err)
	log.Warn().Err(err).Str("job_id", job.ID).Str("project_id", job.ProjectID).Msg("pipeline halted")
}
