package models

import (
	"gorm.io/gorm"
)

// Actor is the identity attached to every write. It is always passed
// explicitly into core operations; the core never reads it from shared
// session state.
type Actor struct {
	Id    string
	Email string
}

type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
	// StatusApplied is set by an external downstream process, never by this
	// service. Subjects in it are review-immutable like other decided states.
	StatusApplied ReviewStatus = "applied"

	// Batch-only ingestion phases. A batch is not reviewable until ingestion
	// finishes and moves it to pending.
	StatusIngesting ReviewStatus = "ingesting"
	StatusPartial   ReviewStatus = "partial"
)

type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// Reviewable is the capability the approval state machine operates on.
// Observation and BulkBatch implement it; the state machine never touches
// subject-specific fields.
type Reviewable interface {
	SubjectType() string
	SubjectId() int
	CurrentStatus() ReviewStatus

	// NewReviewEntry builds the audit fact for a decision on this subject,
	// with the reference field matching the subject kind.
	NewReviewEntry(reviewer Actor, decision ReviewDecision, comments string) *ReviewEntry

	// ApplyDecision moves the subject pending -> decision with a
	// compare-and-set on status. Returns the number of rows updated; zero
	// means the subject was no longer pending.
	ApplyDecision(tx *gorm.DB, decision ReviewDecision) (int64, error)
}
