package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/workflow"
)

type reviewRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
	Comments string `json:"comments"`
}

func reviewObservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := getSessionActor(c)
		if !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		db := config.GetDB()
		observation, err := models.GetObservation(c.Request.Context(), db, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		entry, err := workflow.Review(c.Request.Context(), db, config.GetLogger(),
			observation, actor, models.ReviewDecision(req.Decision), req.Comments)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"observation":  observation,
			"review_entry": entry,
		})
	}
}

func reviewBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := getSessionActor(c)
		if !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		db := config.GetDB()
		batch, err := models.GetBatch(c.Request.Context(), db, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		entry, err := workflow.Review(c.Request.Context(), db, config.GetLogger(),
			batch, actor, models.ReviewDecision(req.Decision), req.Comments)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"batch":        batch,
			"review_entry": entry,
		})
	}
}
