package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/utils"
)

// ReviewEntry is one immutable audit fact: a decision on exactly one of an
// observation or a batch. Entries are appended, never updated or deleted.
type ReviewEntry struct {
	ID            int            `gorm:"primary_key" json:"id"`
	ObservationId *int           `gorm:"index;default:null" json:"observation_id"`
	BatchId       *int           `gorm:"index;default:null" json:"batch_id"`
	ReviewerId    string         `gorm:"size:64;not null" json:"reviewer_id"`
	ReviewerEmail string         `gorm:"size:255;not null" json:"reviewer_email"`
	Decision      ReviewDecision `gorm:"size:16;not null" json:"decision"`
	Comments      string         `gorm:"type:text" json:"comments"`
	ReviewedAt    time.Time      `gorm:"autoCreateTime" json:"reviewed_at"`
}

// BeforeCreate guards the audit invariants at the lowest write path: a
// rejection always carries a comment, and the entry references exactly one
// subject kind.
func (e *ReviewEntry) BeforeCreate(tx *gorm.DB) error {
	if e.Decision == DecisionRejected && utils.TrimOrEmpty(e.Comments) == "" {
		return &utils.ValidationError{Field: "Comments", Reason: "a comment is required when rejecting"}
	}
	if (e.ObservationId == nil) == (e.BatchId == nil) {
		return &utils.ValidationError{Field: "ObservationId", Reason: "exactly one of observation or batch must be referenced"}
	}
	return nil
}

// ListReviewEntries returns the subject's audit log, newest first.
func ListReviewEntries(ctx context.Context, db *gorm.DB, subject Reviewable) ([]ReviewEntry, error) {
	var entries []ReviewEntry
	q := db.WithContext(ctx).Model(&ReviewEntry{}).Order("reviewed_at DESC, id DESC")
	if subject.SubjectType() == utils.SubjectBatch {
		q = q.Where("batch_id = ?", subject.SubjectId())
	} else {
		q = q.Where("observation_id = ?", subject.SubjectId())
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// LatestReviewEntry returns the most recent decision, or nil when the
// subject has never been reviewed.
func LatestReviewEntry(ctx context.Context, db *gorm.DB, subject Reviewable) (*ReviewEntry, error) {
	entries, err := ListReviewEntries(ctx, db, subject)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
