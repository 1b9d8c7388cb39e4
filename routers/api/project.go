package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/models"
	"github.com/jitenkr2030/video-shiksha/service"
)

// CreateProject accepts a multipart deck upload and starts the pipeline:
// the deck goes to the artifact store, a project and its parse job are
// created, and the parse job is enqueued.
func (h *Handler) CreateProject(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("deck")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing deck file"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable deck file: " + err.Error()})
		return
	}
	defer f.Close()
	fileBytes, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read deck file: " + err.Error()})
		return
	}
	if len(fileBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deck file is empty"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}
	subtitles := true
	if v := c.PostForm("subtitles"); v != "" {
		subtitles, _ = strconv.ParseBool(v)
	}

	voice := models.VoiceSettings{
		Provider: "default",
		Voice:    "en-US-neutral",
		Speed:    1.0,
		Pitch:    1.0,
		Language: "en-US",
	}
	if v := c.PostForm("voice"); v != "" {
		voice.Voice = v
	}
	if v := c.PostForm("language"); v != "" {
		voice.Language = v
	}
	render := models.RenderSettings{
		Resolution:         "1280x720",
		Format:             "mp4",
		Quality:            "high",
		TransitionDuration: 0.5,
	}
	if v := c.PostForm("resolution"); v != "" {
		render.Resolution = v
	}

	if err := h.Store.EnsureUser(userID, h.SignupGrant); err != nil {
		abortErr(c, err)
		return
	}

	projectID := uuid.NewString()
	sourceKey := fmt.Sprintf("decks/%s/%s", projectID, fileHeader.Filename)
	if _, err := h.Artifacts.Upload(c.Request.Context(), sourceKey, fileBytes, fileHeader.Header.Get("Content-Type")); err != nil {
		abortErr(c, err)
		return
	}

	project := &models.Project{
		ID:            projectID,
		OwnerID:       userID,
		Title:         title,
		Status:        models.ProjectStatusDraft,
		SourceFileKey: sourceKey,
		Subtitles:     subtitles,
		Voice:         voice,
		Render:        render,
	}
	if err := h.Store.CreateProject(project); err != nil {
		abortErr(c, err)
		return
	}

	job, err := h.Orchestrator.StartPipeline(c.Request.Context(), project)
	if err != nil {
		abortErr(c, err)
		return
	}
	log.Info().Str("project_id", projectID).Str("user_id", userID).Msg("project created")
	c.JSON(http.StatusCreated, gin.H{
		"project_id":   projectID,
		"parse_job_id": job.ID,
	})
}

func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Store.GetProject(c.Param("project_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	slides, err := h.Store.SlidesByProject(project.ID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project, "slides": slides})
}

func (h *Handler) ListProjects(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	projects, err := h.Store.ProjectsByOwner(userID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.Store.DeleteProject(c.Param("project_id")); err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CancelProject stops the pipeline at the next stage boundary.
func (h *Handler) CancelProject(c *gin.Context) {
	if err := h.Orchestrator.CancelProject(c.Param("project_id"), "user request"); err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handler) GetSlides(c *gin.Context) {
	slides, err := h.Store.SlidesByProject(c.Param("project_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slides": slides})
}

func (h *Handler) GetSlide(c *gin.Context) {
	slide, err := h.Store.GetSlide(c.Param("slide_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	var script *models.Script
	if s, err := h.Store.ScriptBySlide(slide.ID); err == nil {
		script = s
	}
	c.JSON(http.StatusOK, gin.H{"slide": slide, "script": script})
}

// EstimateProject prices a full pipeline run for the project's deck using the
// same cost table the debit path consults.
func (h *Handler) EstimateProject(c *gin.Context) {
	project, err := h.Store.GetProject(c.Param("project_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	count, err := h.Store.CountSlides(project.ID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slide_count": count,
		"estimate":    h.Pricing.EstimateProject(count, project.Subtitles),
	})
}

// RegenerateScript re-runs script generation for one slide, replacing its
// active script. The new job is credit-gated like any other script job.
func (h *Handler) RegenerateScript(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	slide, err := h.Store.GetSlide(c.Param("slide_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	var req struct {
		CustomPrompt string `json:"custom_prompt"`
	}
	_ = c.ShouldBindJSON(&req)

	check, err := h.Credits.CheckSufficient(userID, models.StageScript, 1)
	if err != nil {
		abortErr(c, err)
		return
	}
	if !check.Sufficient {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     service.ErrInsufficientCredits.Error(),
			"required":  check.Required,
			"available": check.Available,
		})
		return
	}

	job, err := h.Ledger.Create(slide.ProjectID, models.StageScript, models.JobPayload{
		Script: &models.ScriptPayload{
			SlideID:      slide.ID,
			Content:      slide.Content,
			CustomPrompt: req.CustomPrompt,
		},
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	if _, err := h.Credits.Debit(userID, models.StageScript, job.ID, 1); err != nil {
		abortErr(c, err)
		return
	}
	if err := h.Orchestrator.EnqueueJob(c.Request.Context(), models.StageScript, job.ID); err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}
