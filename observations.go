package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
)

func createObservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := getSessionActor(c)
		if !ok {
			return
		}

		var input models.NewObservation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		observation, err := models.CreateObservation(c.Request.Context(), config.GetDB(), &input, actor)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, observation)
	}
}

func listObservationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		status := models.ReviewStatus(c.Query("status"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		observations, err := models.ListObservations(c.Request.Context(), config.GetDB(), status, limit)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"observations": observations})
	}
}

func getObservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		db := config.GetDB()
		observation, err := models.GetObservation(c.Request.Context(), db, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		history, err := models.ListReviewEntries(c.Request.Context(), db, observation)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"observation":    observation,
			"review_history": history,
		})
	}
}

func tagCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		categories, err := models.ActiveTagCategories(c.Request.Context(), config.GetDB())
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tag_categories": categories})
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		db := config.GetDB()
		observationCounts, err := models.ObservationStatusCounts(c.Request.Context(), db)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		batchCounts, err := models.BatchStatusCounts(c.Request.Context(), db)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"observations": observationCounts,
			"batches":      batchCounts,
		})
	}
}
