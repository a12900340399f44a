package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/service"
)

// QueueHandler 매칭 큐 API 처리
type QueueHandler struct {
	matchService *service.MatchmakingService
}

// NewQueueHandler QueueHandler 생성
func NewQueueHandler(matchService *service.MatchmakingService) *QueueHandler {
	return &QueueHandler{
		matchService: matchService,
	}
}

type enqueueBody struct {
	Name     string            `json:"name"`
	Level    int               `json:"level"`
	Job      string            `json:"job"`
	Power    int               `json:"power"`
	Supply   models.BuffSupply `json:"supply"`
	Demand   models.BuffDemand `json:"demand"`
	Blocked  []string          `json:"blocked"`
	GroundID string            `json:"groundId" binding:"required"`
}

// Enqueue godoc
// @Summary Enter the matchmaking queue
// @Description Register the caller as searching on a hunting ground. Re-entering updates the existing record.
// @Tags queue
// @Accept json
// @Produce json
// @Param request body enqueueBody true "Queue entry"
// @Success 200 {object} models.Entrant
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Already in a party"
// @Router /api/v1/queue [post]
// @Security BearerAuth
func (h *QueueHandler) Enqueue(c *gin.Context) {
	userID := c.GetString("userID")

	var body enqueueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	entrant, err := h.matchService.Enqueue(service.EnqueueRequest{
		UserID:   userID,
		Name:     body.Name,
		Level:    body.Level,
		Job:      body.Job,
		Power:    body.Power,
		Supply:   body.Supply,
		Demand:   body.Demand,
		Blocked:  body.Blocked,
		GroundID: body.GroundID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entrant)
}

// Leave godoc
// @Summary Stop searching
// @Description Leave the queue without dropping the entrant record (explicit user action).
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Not in queue"
// @Router /api/v1/queue/leave [post]
// @Security BearerAuth
func (h *QueueHandler) Leave(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.matchService.Leave(userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left the queue"})
}

// Remove godoc
// @Summary Remove queue record entirely
// @Description Drop the entrant record completely, as on connection close.
// @Tags queue
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/queue [delete]
// @Security BearerAuth
func (h *QueueHandler) Remove(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.matchService.Remove(userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Removed from queue"})
}

// GroundStats godoc
// @Summary Hunting ground queue stats
// @Description Searching headcount and smoothed average wait for a ground.
// @Tags queue
// @Produce json
// @Param groundId path string true "Ground ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/grounds/{groundId}/stats [get]
func (h *QueueHandler) GroundStats(c *gin.Context) {
	groundID := c.Param("groundId")

	searching, avgWait := h.matchService.GroundStats(groundID)

	c.JSON(http.StatusOK, gin.H{
		"groundId":  groundID,
		"searching": searching,
		"avgWaitMs": avgWait.Milliseconds(),
	})
}
