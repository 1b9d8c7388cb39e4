package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetVideo(c *gin.Context) {
	video, err := h.Store.GetVideo(c.Param("video_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *Handler) GetProjectVideo(c *gin.Context) {
	video, err := h.Store.VideoByProject(c.Param("project_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}
