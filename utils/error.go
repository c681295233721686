package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// Subject type labels shared by ReviewError/ConflictError. Kept here so the
// error types don't depend on the models package.
const (
	SubjectObservation = "observation"
	SubjectBatch       = "batch"
)

// ParseError means the uploaded bytes could not be read as CSV. Fatal to the
// submission attempt; nothing was persisted.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv parse failed at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("csv parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError blocks an operation before any store write. Recoverable by
// correcting the named field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// SubmissionError reports a chunk write that failed partway through batch
// ingestion. The batch row and the chunks before FailedChunk are still
// persisted; record_count no longer matches the persisted row count until the
// batch is resumed.
type SubmissionError struct {
	BatchId     int
	FailedChunk int // 1-based index of the chunk that failed
	TotalChunks int
	RowsWritten int // rows persisted by the chunks that committed
	Err         error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("batch %d: chunk %d/%d failed after %d rows written: %v",
		e.BatchId, e.FailedChunk, e.TotalChunks, e.RowsWritten, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

type ReviewStage string

const (
	ReviewStageDecisionLog  ReviewStage = "decision-log"
	ReviewStageStatusUpdate ReviewStage = "status-update"
)

// ReviewError distinguishes "decision never recorded" (decision-log stage)
// from "decision logged but status not updated" (status-update stage). Only
// the former is safe to blindly retry.
type ReviewError struct {
	Stage       ReviewStage
	SubjectType string
	SubjectId   int
	Err         error
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("review of %s %d failed at %s: %v", e.SubjectType, e.SubjectId, e.Stage, e.Err)
}

func (e *ReviewError) Unwrap() error { return e.Err }

// ConflictError means the subject was not pending at decision time. The
// review was refused; no entry was written and no status changed.
type ConflictError struct {
	SubjectType   string
	SubjectId     int
	CurrentStatus string
	LastDecision  string // empty when no prior decision is on record
}

func (e *ConflictError) Error() string {
	if e.LastDecision != "" {
		return fmt.Sprintf("%s %d is already %s (last decision: %s)",
			e.SubjectType, e.SubjectId, e.CurrentStatus, e.LastDecision)
	}
	return fmt.Sprintf("%s %d is already %s", e.SubjectType, e.SubjectId, e.CurrentStatus)
}
