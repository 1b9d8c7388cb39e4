package routers

import (
	"github.com/gin-gonic/gin"

	"github.com/jitenkr2030/video-shiksha/routers/api"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects", h.ListProjects)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.DELETE("/projects/:project_id", h.DeleteProject)
		v1.POST("/projects/:project_id/cancel", h.CancelProject)
		v1.GET("/projects/:project_id/slides", h.GetSlides)
		v1.GET("/projects/:project_id/jobs", h.ListProjectJobs)
		v1.GET("/projects/:project_id/video", h.GetProjectVideo)
		v1.GET("/projects/:project_id/estimate", h.EstimateProject)
		v1.GET("/slides/:slide_id", h.GetSlide)
		v1.POST("/slides/:slide_id/script", h.RegenerateScript)
		v1.GET("/videos/:video_id", h.GetVideo)
		v1.GET("/jobs/:job_id", h.GetJob)
		v1.GET("/credits/balance", h.GetBalance)
		v1.GET("/credits/entries", h.ListCreditEntries)
		v1.POST("/credits/topup", h.TopUp)
		v1.POST("/credits/refund", h.Refund)
	}
	r.GET("/jobs/:job_id/ws", h.JobProgressWebSocket)
	return r
}
