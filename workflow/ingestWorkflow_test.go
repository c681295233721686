package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
	"github.com/provenroll/enrollfix_backend/workflow"
)

var testActor = models.Actor{Id: "u-1", Email: "analyst@test.local"}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig(categoryId int) workflow.BatchConfig {
	return workflow.BatchConfig{
		BatchName:     "january terminations",
		IdColumn:      "member_id",
		TagCategoryId: categoryId,
		TagValue:      "verified",
	}
}

func TestSubmitBatch_ChunksAndProgress(t *testing.T) {
	t.Setenv("BATCH_CHUNK_SIZE", "50")
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(120)

	var progress []workflow.Progress
	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor,
		func(p workflow.Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	if batch.Status != models.StatusPending {
		t.Fatalf("expected status pending, got %s", batch.Status)
	}
	if batch.RecordCount != 120 {
		t.Fatalf("expected record count 120, got %d", batch.RecordCount)
	}
	count, err := models.CountBatchRecords(context.Background(), db, batch.ID)
	if err != nil {
		t.Fatalf("CountBatchRecords: %v", err)
	}
	if count != 120 {
		t.Fatalf("expected 120 persisted rows, got %d", count)
	}

	if len(progress) != 3 {
		t.Fatalf("expected 3 progress reports, got %d", len(progress))
	}
	wantWritten := []int{50, 100, 120}
	wantPercent := []int{41, 83, 100}
	for i, p := range progress {
		if p.Chunk != i+1 || p.TotalChunks != 3 {
			t.Fatalf("report %d: got chunk %d/%d", i, p.Chunk, p.TotalChunks)
		}
		if p.RowsWritten != wantWritten[i] {
			t.Fatalf("report %d: expected %d rows written, got %d", i, wantWritten[i], p.RowsWritten)
		}
		if p.Percent != wantPercent[i] {
			t.Fatalf("report %d: expected %d%%, got %d%%", i, wantPercent[i], p.Percent)
		}
		if i > 0 && p.Percent < progress[i-1].Percent {
			t.Fatalf("progress went backwards at report %d", i)
		}
	}

	// Records carry identifier and full original row.
	records, err := models.SampleBatchRecords(context.Background(), db, batch.ID, 1)
	if err != nil {
		t.Fatalf("SampleBatchRecords: %v", err)
	}
	if records[0].RecordIdentifier != "M0000" {
		t.Fatalf("expected identifier M0000, got %q", records[0].RecordIdentifier)
	}
	if records[0].OriginalRow["term_date"] != "2026-01-31" {
		t.Fatalf("original row not preserved: %v", records[0].OriginalRow)
	}
}

func TestSubmitBatch_ValidationBlocksAllWrites(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)

	cfg := testConfig(category.ID)
	cfg.TagValue = "not_a_value"
	_, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		makeRows(5), testHeaders, cfg, testActor, nil)

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "TagValue" {
		t.Fatalf("expected TagValue field, got %s", validationErr.Field)
	}

	var batchCount int64
	if err := db.Model(&models.BulkBatch{}).Count(&batchCount).Error; err != nil {
		t.Fatalf("count batches: %v", err)
	}
	if batchCount != 0 {
		t.Fatalf("expected no batch rows, got %d", batchCount)
	}
}

func TestSubmitBatch_IdColumnMustExist(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)

	cfg := testConfig(category.ID)
	cfg.IdColumn = "no_such_column"
	_, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		makeRows(5), testHeaders, cfg, testActor, nil)

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "IdColumn" {
		t.Fatalf("expected IdColumn ValidationError, got %v", err)
	}
}

func TestSubmitBatch_ChunkFailureLeavesPartial(t *testing.T) {
	t.Setenv("BATCH_CHUNK_SIZE", "50")
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(120)

	failChunkInserts(t, db, 2) // third and final chunk

	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor, nil)

	var submissionErr *utils.SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if submissionErr.FailedChunk != 3 || submissionErr.TotalChunks != 3 {
		t.Fatalf("expected failure at chunk 3/3, got %d/%d", submissionErr.FailedChunk, submissionErr.TotalChunks)
	}
	if submissionErr.RowsWritten != 100 {
		t.Fatalf("expected 100 rows written before failure, got %d", submissionErr.RowsWritten)
	}

	// Committed chunks stay; the batch is flagged, not rolled back.
	count, _ := models.CountBatchRecords(context.Background(), db, batch.ID)
	if count != 100 {
		t.Fatalf("expected 100 persisted rows, got %d", count)
	}
	fresh, err := models.GetBatch(context.Background(), db, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if fresh.Status != models.StatusPartial {
		t.Fatalf("expected partial status, got %s", fresh.Status)
	}
}

func TestSubmitBatch_ProgressStaysBelow100UntilDone(t *testing.T) {
	// With many chunks, a rounded percentage would hit 100 before the final
	// chunk (199/200 rounds up). A failure there must not end at 100.
	t.Setenv("BATCH_CHUNK_SIZE", "1")
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(200)

	failChunkInserts(t, db, 199) // last chunk

	var progress []workflow.Progress
	_, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor,
		func(p workflow.Progress) { progress = append(progress, p) })

	var submissionErr *utils.SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if len(progress) != 199 {
		t.Fatalf("expected 199 progress reports, got %d", len(progress))
	}
	for _, p := range progress {
		if p.Percent >= 100 {
			t.Fatalf("chunk %d/%d reported %d%% before completion", p.Chunk, p.TotalChunks, p.Percent)
		}
	}
	if last := progress[len(progress)-1]; last.Percent != 99 {
		t.Fatalf("expected final report at 99%%, got %d%%", last.Percent)
	}
}

func TestSubmitBatch_DefaultChunkSize(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(1200) // 3 chunks of 500, 500, 200

	failChunkInserts(t, db, 1) // second chunk

	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor, nil)

	var submissionErr *utils.SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if submissionErr.FailedChunk != 2 || submissionErr.TotalChunks != 3 {
		t.Fatalf("expected failure at chunk 2/3, got %d/%d", submissionErr.FailedChunk, submissionErr.TotalChunks)
	}
	if submissionErr.RowsWritten != 500 {
		t.Fatalf("expected 500 rows written, got %d", submissionErr.RowsWritten)
	}

	// The declared count stands while the persisted count lags; that mismatch
	// is the partial-batch condition.
	fresh, _ := models.GetBatch(context.Background(), db, batch.ID)
	if fresh.RecordCount != 1200 {
		t.Fatalf("expected declared count 1200, got %d", fresh.RecordCount)
	}
	count, _ := models.CountBatchRecords(context.Background(), db, batch.ID)
	if count != 500 {
		t.Fatalf("expected 500 persisted rows, got %d", count)
	}
}

func TestResumeBatch_CompletesAfterFailure(t *testing.T) {
	t.Setenv("BATCH_CHUNK_SIZE", "50")
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(120)

	failChunkInserts(t, db, 2)
	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor, nil)
	var submissionErr *utils.SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	_ = db.Callback().Create().Remove("test_fail_chunk")

	var progress []workflow.Progress
	resumed, err := workflow.ResumeBatch(context.Background(), db, testLogger(),
		batch.ID, rows, testHeaders,
		func(p workflow.Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("ResumeBatch: %v", err)
	}

	if resumed.Status != models.StatusPending {
		t.Fatalf("expected pending after resume, got %s", resumed.Status)
	}
	count, _ := models.CountBatchRecords(context.Background(), db, batch.ID)
	if count != 120 {
		t.Fatalf("expected 120 persisted rows after resume, got %d", count)
	}
	// Only the missing chunk is rewritten.
	if len(progress) != 1 || progress[0].Chunk != 3 || progress[0].Percent != 100 {
		t.Fatalf("expected a single final-chunk report, got %+v", progress)
	}
}

func TestResumeBatch_RefusesDecidedBatch(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(5)

	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor, nil)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	_, err = workflow.ResumeBatch(context.Background(), db, testLogger(), batch.ID, rows, testHeaders, nil)
	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "Status" {
		t.Fatalf("expected Status ValidationError, got %v", err)
	}
}

func TestFindPartialBatches(t *testing.T) {
	t.Setenv("BATCH_CHUNK_SIZE", "50")
	db := newTestDB(t)
	category := seedCategory(t, db)

	// One complete batch, one interrupted one.
	if _, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		makeRows(10), testHeaders, testConfig(category.ID), testActor, nil); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	failChunkInserts(t, db, 1)
	cfg := testConfig(category.ID)
	cfg.BatchName = "interrupted"
	broken, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		makeRows(120), testHeaders, cfg, testActor, nil)
	var submissionErr *utils.SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}

	partial, err := workflow.FindPartialBatches(context.Background(), db)
	if err != nil {
		t.Fatalf("FindPartialBatches: %v", err)
	}
	if len(partial) != 1 {
		t.Fatalf("expected 1 partial batch, got %d", len(partial))
	}
	if partial[0].Batch.ID != broken.ID {
		t.Fatalf("expected batch %d, got %d", broken.ID, partial[0].Batch.ID)
	}
	if partial[0].PersistedCount != 50 {
		t.Fatalf("expected 50 persisted rows, got %d", partial[0].PersistedCount)
	}
}
