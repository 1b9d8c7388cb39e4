package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jitenkr2030/video-shiksha/models"
)

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Store.GetJob(c.Param("job_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (h *Handler) ListProjectJobs(c *gin.Context) {
	jobs, err := h.Store.JobsByProject(c.Param("project_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobProgressWebSocket pushes job status over a websocket. The database is
// the source of truth: the socket polls it and pushes on change until the job
// settles.
func (h *Handler) JobProgressWebSocket(c *gin.Context) {
	jobID := c.Param("job_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "websocket upgrade failed"})
		return
	}
	defer conn.Close()

	job, err := h.Store.GetJob(jobID)
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": "job not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(job)
	if job.Terminal() {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := job.Status
	prevProgress := job.Progress
	for range ticker.C {
		cur, err := h.Store.GetJob(jobID)
		if err != nil {
			continue
		}
		if cur.Status != prevStatus || cur.Progress != prevProgress {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevProgress = cur.Progress
		}
		if cur.Status == models.JobStatusCompleted || cur.Status == models.JobStatusFailed {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}
