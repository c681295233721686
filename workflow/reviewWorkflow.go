package workflow

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
)

func reviewTimeout() time.Duration {
	if v := strings.TrimSpace(os.Getenv("REVIEW_WRITE_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 10 * time.Second
}

// Review records a decision on a pending subject. The audit entry is written
// first, then the status flips via a compare-and-set on pending. The two
// writes are deliberately not one transaction: an entry without a matching
// status change is a visible, reportable inconsistency (ReviewError with the
// status-update stage), whereas a silently rolled-back decision is not.
func Review(ctx context.Context, db *gorm.DB, logger *logrus.Logger, subject models.Reviewable, reviewer models.Actor, decision models.ReviewDecision, comments string) (*models.ReviewEntry, error) {
	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		return nil, &utils.ValidationError{Field: "Decision", Reason: "must be approved or rejected"}
	}
	comments = utils.TrimOrEmpty(comments)
	if decision == models.DecisionRejected && comments == "" {
		return nil, &utils.ValidationError{Field: "Comments", Reason: "a comment is required when rejecting"}
	}
	if reviewer.Id == "" {
		return nil, &utils.ValidationError{Field: "ReviewerId", Reason: "reviewer identity is required"}
	}

	if subject.CurrentStatus() != models.StatusPending {
		conflict := &utils.ConflictError{
			SubjectType:   subject.SubjectType(),
			SubjectId:     subject.SubjectId(),
			CurrentStatus: string(subject.CurrentStatus()),
		}
		if last, err := models.LatestReviewEntry(ctx, db, subject); err == nil && last != nil {
			conflict.LastDecision = string(last.Decision)
		}
		return nil, conflict
	}

	writeCtx, cancel := context.WithTimeout(ctx, reviewTimeout())
	defer cancel()

	entry := subject.NewReviewEntry(reviewer, decision, comments)
	if err := db.WithContext(writeCtx).Create(entry).Error; err != nil {
		config.LogError(logger, "reviewWorkflow.go", "Review", "CreateEntry", subject.SubjectId(), err)
		return nil, &utils.ReviewError{
			Stage:       utils.ReviewStageDecisionLog,
			SubjectType: subject.SubjectType(),
			SubjectId:   subject.SubjectId(),
			Err:         err,
		}
	}

	affected, err := subject.ApplyDecision(db.WithContext(writeCtx), decision)
	if err != nil {
		config.LogError(logger, "reviewWorkflow.go", "Review", "ApplyDecision", subject.SubjectId(), err)
		return entry, &utils.ReviewError{
			Stage:       utils.ReviewStageStatusUpdate,
			SubjectType: subject.SubjectType(),
			SubjectId:   subject.SubjectId(),
			Err:         err,
		}
	}
	if affected == 0 {
		// Another reviewer won the compare-and-set between our precheck and
		// this update. The entry above stays in the log as evidence.
		err := errors.New("subject was no longer pending")
		config.LogError(logger, "reviewWorkflow.go", "Review", "ApplyDecision", subject.SubjectId(), err)
		return entry, &utils.ReviewError{
			Stage:       utils.ReviewStageStatusUpdate,
			SubjectType: subject.SubjectType(),
			SubjectId:   subject.SubjectId(),
			Err:         err,
		}
	}

	return entry, nil
}
