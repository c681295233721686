package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/workflow"
)

// exportBatchHandler streams the batch's stored rows back out. The format
// query selects csv (default) or xlsx.
func exportBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := getSessionActor(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		switch c.DefaultQuery("format", "csv") {
		case "csv":
			c.Writer.Header().Set("Content-Type", "text/csv")
			c.Writer.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=batch-%d.csv", id))
			if _, err := workflow.ExportBatchCsv(c.Request.Context(), config.GetDB(), id, c.Writer); err != nil {
				writeWorkflowError(c, err)
				return
			}
		case "xlsx":
			c.Writer.Header().Set("Content-Type",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Writer.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=batch-%d.xlsx", id))
			if _, err := workflow.ExportBatchXlsx(c.Request.Context(), config.GetDB(), id, c.Writer); err != nil {
				writeWorkflowError(c, err)
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		}
	}
}
