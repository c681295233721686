package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
	"github.com/provenroll/enrollfix_backend/workflow"
)

// maxUploadSize caps the CSV body read into memory.
const maxUploadSize = 50 << 20 // 50 MB

func readUploadedCsv(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a csv file is required"})
		return "", nil, false
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload limit"})
		return "", nil, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

// archiveBatchSource stores the raw CSV bytes when a storage provider is
// configured. Best effort; ingestion proceeds without the archive.
func archiveBatchSource(c *gin.Context, logger *logrus.Logger, fileName string, data []byte) string {
	if utils.GetStorageProvider() != utils.StorageProviderGCS {
		return ""
	}
	objectKey := fmt.Sprintf("batch-sources/%s-%s", uuid.NewString(), fileName)
	if err := utils.ArchiveObject(c.Request.Context(), objectKey, "text/csv", data); err != nil {
		logger.WithFields(logrus.Fields{
			"field":     "archiveBatchSource",
			"file_name": fileName,
		}).Warn("failed to archive batch source: " + err.Error())
		return ""
	}
	return objectKey
}

// parseBatchHandler previews an upload without persisting anything: the
// operator needs the header list to pick the id column before submitting.
func parseBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		fileName, data, ok := readUploadedCsv(c)
		if !ok {
			return
		}
		headers, rows, err := workflow.ParseCsv(bytes.NewReader(data))
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		preview := rows
		if len(preview) > 10 {
			preview = preview[:10]
		}
		c.JSON(http.StatusOK, gin.H{
			"file_name": fileName,
			"headers":   headers,
			"row_count": len(rows),
			"preview":   preview,
		})
	}
}

// submitBatchHandler accepts a multipart upload and streams chunk progress as
// server-sent events when ?stream=true; otherwise it answers once with the
// final batch state.
func submitBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := getSessionActor(c)
		if !ok {
			return
		}
		logger := config.GetLogger()

		fileName, data, ok := readUploadedCsv(c)
		if !ok {
			return
		}
		headers, rows, err := workflow.ParseCsv(bytes.NewReader(data))
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		tagCategoryId, _ := strconv.Atoi(c.PostForm("tag_category_id"))
		cfg := workflow.BatchConfig{
			BatchName:      c.PostForm("batch_name"),
			IdColumn:       c.PostForm("id_column"),
			TagCategoryId:  tagCategoryId,
			TagValue:       c.PostForm("tag_value"),
			Notes:          c.PostForm("notes"),
			SourceFileName: fileName,
		}
		// Validate before archiving so a bad config costs no storage write.
		if _, err := workflow.ValidateBatchConfig(c.Request.Context(), config.GetDB(), cfg, headers); err != nil {
			writeWorkflowError(c, err)
			return
		}
		cfg.SourceObjectKey = archiveBatchSource(c, logger, fileName, data)

		if c.Query("stream") == "true" {
			submitBatchStreaming(c, rows, headers, cfg, actor)
			return
		}

		batch, err := workflow.SubmitBatch(c.Request.Context(), config.GetDB(), logger, rows, headers, cfg, actor, nil)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, batch)
	}
}

func submitBatchStreaming(c *gin.Context, rows []map[string]string, headers []string, cfg workflow.BatchConfig, actor models.Actor) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	onProgress := func(p workflow.Progress) {
		c.SSEvent("progress", p)
		c.Writer.Flush()
	}

	batch, err := workflow.SubmitBatch(c.Request.Context(), config.GetDB(), config.GetLogger(), rows, headers, cfg, actor, onProgress)
	if err != nil {
		payload := gin.H{"error": err.Error()}
		if batch != nil {
			payload["batch_id"] = batch.ID
			payload["status"] = batch.Status
		}
		c.SSEvent("error", payload)
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", batch)
	c.Writer.Flush()
}

func resumeBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		_, data, ok := readUploadedCsv(c)
		if !ok {
			return
		}
		headers, rows, err := workflow.ParseCsv(bytes.NewReader(data))
		if err != nil {
			writeWorkflowError(c, err)
			return
		}

		batch, err := workflow.ResumeBatch(c.Request.Context(), config.GetDB(), config.GetLogger(), id, rows, headers, nil)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

func listBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		status := models.ReviewStatus(c.Query("status"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		batches, err := models.ListBatches(c.Request.Context(), config.GetDB(), status, limit)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"batches": batches})
	}
}

func getBatchHandler() gin.HandlerFunc {
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
		ctx := c.Request.Context()
		batch, err := models.GetBatch(ctx, db, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		sample, err := models.SampleBatchRecords(ctx, db, id, 20)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		persisted, err := models.CountBatchRecords(ctx, db, id)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		history, err := models.ListReviewEntries(ctx, db, batch)
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"batch":           batch,
			"sample_records":  sample,
			"persisted_count": persisted,
			"review_history":  history,
		})
	}
}

func partialBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		partial, err := workflow.FindPartialBatches(c.Request.Context(), config.GetDB())
		if err != nil {
			writeWorkflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"partial_batches": partial})
	}
}
