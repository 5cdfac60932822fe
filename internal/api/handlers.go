package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"haven/internal/composer"
)

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type RespondRequest struct {
	UserID  uint   `json:"user_id" binding:"required"`
	RoomID  uint   `json:"room_id"`
	Message string `json:"message" binding:"required"`
}

// RespondHandler composes a reply for one message. The engine never
// fails, so this handler only rejects malformed requests.
func RespondHandler(engine *composer.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RespondRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		if req.RoomID == 0 {
			req.RoomID = 1
		}
		res := engine.Respond(c.Request.Context(), req.UserID, req.RoomID, req.Message)
		c.JSON(http.StatusOK, res)
	}
}

type CrisisCheckRequest struct {
	Message string `json:"message" binding:"required"`
}

func CrisisCheckHandler(engine *composer.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CrisisCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		c.JSON(http.StatusOK, engine.CheckCrisis(req.Message))
	}
}

// ResourcesHandler serves the static emergency and support resource
// lists.
func ResourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"emergency":   composer.EmergencyResources(),
			"support":     composer.SupportResources(),
			"safety_plan": composer.SafetyPlanSuggestions(),
		})
	}
}

type FeedbackRequest struct {
	Title   string `json:"title" binding:"required"`
	Helpful *bool  `json:"helpful" binding:"required"`
}

func KnowledgeFeedbackHandler(engine *composer.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		if err := engine.RecordFeedback(c.Request.Context(), req.Title, *req.Helpful); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "recorded"})
	}
}

func MemorySummaryHandler(engine *composer.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("user"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid user id"}})
			return
		}
		stats, err := engine.MemorySummary(c.Request.Context(), uint(userID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to load memory summary"}})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
