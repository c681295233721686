package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
)

// DefaultChunkSize is the number of rows written per insert call.
const DefaultChunkSize = 500

func ChunkSize() int {
	if v := strings.TrimSpace(os.Getenv("BATCH_CHUNK_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultChunkSize
}

func chunkTimeout() time.Duration {
	if v := strings.TrimSpace(os.Getenv("BATCH_CHUNK_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 30 * time.Second
}

// BatchConfig is the operator-chosen configuration for one bulk tagging
// operation. All three of IdColumn, TagCategoryId and TagValue must be set
// and mutually consistent before a batch may be created.
type BatchConfig struct {
	BatchName       string
	IdColumn        string
	TagCategoryId   int
	TagValue        string
	Notes           string
	SourceFileName  string
	SourceObjectKey string
}

// Progress reports cumulative ingestion progress after each committed chunk.
// Percent is non-decreasing and reaches 100 only after the last chunk.
type Progress struct {
	Chunk       int `json:"chunk"`
	TotalChunks int `json:"total_chunks"`
	RowsWritten int `json:"rows_written"`
	TotalRows   int `json:"total_rows"`
	Percent     int `json:"percent"`
}

// ValidateBatchConfig enforces the submission precondition: id column chosen
// from the parsed headers, active tag category, tag value from that
// category's allowed set. Returns the resolved category on success.
func ValidateBatchConfig(ctx context.Context, db *gorm.DB, cfg BatchConfig, headers []string) (*models.TagCategory, error) {
	if strings.TrimSpace(cfg.IdColumn) == "" {
		return nil, &utils.ValidationError{Field: "IdColumn", Reason: "an id column must be selected"}
	}
	if !slices.Contains(headers, cfg.IdColumn) {
		return nil, &utils.ValidationError{Field: "IdColumn", Reason: fmt.Sprintf("column %q is not in the uploaded file", cfg.IdColumn)}
	}
	if cfg.TagCategoryId == 0 {
		return nil, &utils.ValidationError{Field: "TagCategoryId", Reason: "a tag category must be selected"}
	}
	category, err := models.GetActiveTagCategory(ctx, db, cfg.TagCategoryId)
	if err == utils.ErrorRecordNotFound {
		return nil, &utils.ValidationError{Field: "TagCategoryId", Reason: "not an active tag category"}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.TagValue) == "" {
		return nil, &utils.ValidationError{Field: "TagValue", Reason: "a tag value must be selected"}
	}
	if !category.Allows(cfg.TagValue) {
		return nil, &utils.ValidationError{Field: "TagValue", Reason: fmt.Sprintf("%q is not an allowed value for category %q", cfg.TagValue, category.CategoryKey)}
	}
	return category, nil
}

// SubmitBatch creates the batch row first, then streams the rows into the
// store in fixed-size chunks, sequentially and in chunk order. The first
// failed chunk stops the run: nothing already written is deleted, no retry
// is attempted, and the batch is left in the explicit `partial` state so the
// record_count mismatch is observable and resumable.
func SubmitBatch(ctx context.Context, db *gorm.DB, logger *logrus.Logger, rows []map[string]string, headers []string, cfg BatchConfig, submitter models.Actor, onProgress func(Progress)) (*models.BulkBatch, error) {
	if _, err := ValidateBatchConfig(ctx, db, cfg, headers); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &utils.ValidationError{Field: "Rows", Reason: "file has no data rows"}
	}
	if submitter.Id == "" {
		return nil, &utils.ValidationError{Field: "SubmittedBy", Reason: "submitter identity is required"}
	}

	batchName := utils.TrimOrEmpty(cfg.BatchName)
	if batchName == "" {
		batchName = cfg.SourceFileName
	}

	batch := models.BulkBatch{
		BatchName:        batchName,
		TagCategoryId:    cfg.TagCategoryId,
		TagValue:         cfg.TagValue,
		IdColumnName:     cfg.IdColumn,
		RecordCount:      len(rows),
		Notes:            utils.TrimOrEmpty(cfg.Notes),
		SourceObjectKey:  cfg.SourceObjectKey,
		SubmittedBy:      submitter.Id,
		SubmittedByEmail: submitter.Email,
		Status:           models.StatusIngesting,
	}
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		config.LogError(logger, "ingestWorkflow.go", "SubmitBatch", "CreateBatch", batchName, err)
		return nil, err
	}

	if err := writeChunks(ctx, db, logger, &batch, rows, 0, onProgress); err != nil {
		return &batch, err
	}

	if err := finishIngestion(ctx, db, &batch); err != nil {
		config.LogError(logger, "ingestWorkflow.go", "SubmitBatch", "FinishIngestion", batch.ID, err)
		return &batch, err
	}
	return &batch, nil
}

// writeChunks issues one bulk INSERT per chunk, in chunk order. Chunk k+1 is
// not issued until chunk k's write is acknowledged, so the partial-failure
// boundary is always a whole number of chunks.
func writeChunks(ctx context.Context, db *gorm.DB, logger *logrus.Logger, batch *models.BulkBatch, rows []map[string]string, startChunk int, onProgress func(Progress)) error {
	size := ChunkSize()
	totalChunks := (len(rows) + size - 1) / size
	written := startChunk * size

	for i := startChunk; i < totalChunks; i++ {
		end := min((i+1)*size, len(rows))
		chunk := rows[i*size : end]

		records := make([]models.BulkRecord, 0, len(chunk))
		for _, row := range chunk {
			records = append(records, models.BulkRecord{
				BatchId:          batch.ID,
				ChunkIndex:       i,
				RecordIdentifier: row[batch.IdColumnName],
				OriginalRow:      models.RowMap(row),
			})
		}

		chunkCtx, cancel := context.WithTimeout(ctx, chunkTimeout())
		err := db.WithContext(chunkCtx).Create(&records).Error
		cancel()
		if err != nil {
			config.LogError(logger, "ingestWorkflow.go", "writeChunks", fmt.Sprintf("chunk %d/%d", i+1, totalChunks), batch.ID, err)
			markPartial(ctx, db, logger, batch)
			return &utils.SubmissionError{
				BatchId:     batch.ID,
				FailedChunk: i + 1,
				TotalChunks: totalChunks,
				RowsWritten: written,
				Err:         err,
			}
		}

		written += len(chunk)
		if onProgress != nil {
			onProgress(Progress{
				Chunk:       i + 1,
				TotalChunks: totalChunks,
				RowsWritten: written,
				TotalRows:   len(rows),
				// Floored so 100 appears only once every row is written;
				// rounding would report 100 on a not-yet-final chunk.
				Percent: written * 100 / len(rows),
			})
		}
	}
	return nil
}

func finishIngestion(ctx context.Context, db *gorm.DB, batch *models.BulkBatch) error {
	err := db.WithContext(ctx).Model(&models.BulkBatch{}).
		Where("id = ?", batch.ID).
		Update("status", models.StatusPending).Error
	if err != nil {
		return err
	}
	batch.Status = models.StatusPending
	return nil
}

func markPartial(ctx context.Context, db *gorm.DB, logger *logrus.Logger, batch *models.BulkBatch) {
	err := db.WithContext(ctx).Model(&models.BulkBatch{}).
		Where("id = ?", batch.ID).
		Update("status", models.StatusPartial).Error
	if err != nil {
		// The batch stays in `ingesting`; FindPartialBatches still surfaces
		// it via the record-count mismatch.
		config.LogError(logger, "ingestWorkflow.go", "markPartial", "UpdateStatus", batch.ID, err)
		return
	}
	batch.Status = models.StatusPartial
}

// ResumeBatch continues an interrupted ingestion from the last committed
// chunk. The caller re-supplies the parsed rows of the same file; rows
// already persisted are skipped, making resume idempotent.
func ResumeBatch(ctx context.Context, db *gorm.DB, logger *logrus.Logger, batchId int, rows []map[string]string, headers []string, onProgress func(Progress)) (*models.BulkBatch, error) {
	batch, err := models.GetBatch(ctx, db, batchId)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.StatusIngesting && batch.Status != models.StatusPartial {
		return nil, &utils.ValidationError{Field: "Status", Reason: fmt.Sprintf("batch is %s, not resumable", batch.Status)}
	}
	if len(rows) != batch.RecordCount {
		return nil, &utils.ValidationError{Field: "Rows", Reason: fmt.Sprintf("file has %d rows but the batch declared %d", len(rows), batch.RecordCount)}
	}
	if !slices.Contains(headers, batch.IdColumnName) {
		return nil, &utils.ValidationError{Field: "IdColumn", Reason: fmt.Sprintf("column %q is not in the uploaded file", batch.IdColumnName)}
	}

	persisted, err := models.CountBatchRecords(ctx, db, batch.ID)
	if err != nil {
		return nil, err
	}

	size := ChunkSize()
	if int(persisted) < batch.RecordCount && persisted%int64(size) != 0 {
		// Sequential whole-chunk inserts should make this impossible; refuse
		// rather than duplicate rows.
		return nil, errors.New("persisted rows do not align to a chunk boundary")
	}

	if int(persisted) < batch.RecordCount {
		if err := writeChunks(ctx, db, logger, batch, rows, int(persisted)/size, onProgress); err != nil {
			return batch, err
		}
	}

	if err := finishIngestion(ctx, db, batch); err != nil {
		config.LogError(logger, "ingestWorkflow.go", "ResumeBatch", "FinishIngestion", batch.ID, err)
		return batch, err
	}
	return batch, nil
}

// PartialBatch pairs a batch with the number of rows actually persisted for
// it. Surfaced to operators whenever status or count says ingestion did not
// complete.
type PartialBatch struct {
	Batch          models.BulkBatch `json:"batch"`
	PersistedCount int64            `json:"persisted_count"`
}

func FindPartialBatches(ctx context.Context, db *gorm.DB) ([]PartialBatch, error) {
	var batches []models.BulkBatch
	err := db.WithContext(ctx).Model(&models.BulkBatch{}).
		Where("status IN ?", []models.ReviewStatus{models.StatusIngesting, models.StatusPartial}).
		Or("record_count <> (SELECT COUNT(*) FROM bulk_records WHERE bulk_records.batch_id = bulk_batches.id)").
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	out := make([]PartialBatch, 0, len(batches))
	for _, b := range batches {
		count, err := models.CountBatchRecords(ctx, db, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, PartialBatch{Batch: b, PersistedCount: count})
	}
	return out, nil
}
