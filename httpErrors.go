package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
)

// writeWorkflowError maps core error types onto HTTP responses. The error is
// also attached to the gin context so customErrorLogger picks it up.
func writeWorkflowError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validationErr *utils.ValidationError
	var parseErr *utils.ParseError
	var conflictErr *utils.ConflictError
	var submissionErr *utils.SubmissionError
	var reviewErr *utils.ReviewError

	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": parseErr.Error(),
			"line":  parseErr.Line,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          conflictErr.Error(),
			"current_status": conflictErr.CurrentStatus,
			"last_decision":  conflictErr.LastDecision,
		})
	case errors.As(err, &submissionErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":        submissionErr.Error(),
			"batch_id":     submissionErr.BatchId,
			"failed_chunk": submissionErr.FailedChunk,
			"total_chunks": submissionErr.TotalChunks,
			"rows_written": submissionErr.RowsWritten,
		})
	case errors.As(err, &reviewErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": reviewErr.Error(),
			"stage": string(reviewErr.Stage),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// getSessionActor resolves the caller identity placed in the request context
// by SessionMiddleware. Writes the 401 itself when no identity is present.
func getSessionActor(c *gin.Context) (models.Actor, bool) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok || userId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Actor{}, false
	}
	email, _ := utils.GetUserEmailFromContext(c.Request.Context())
	return models.Actor{Id: userId, Email: email}, true
}
