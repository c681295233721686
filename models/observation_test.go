package models_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
)

var testSubmitter = models.Actor{Id: "u-1", Email: "analyst@test.local"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Observation{},
		&models.TagCategory{},
		&models.BulkBatch{}, &models.BulkRecord{},
		&models.ReviewEntry{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func validInput() *models.NewObservation {
	return &models.NewObservation{
		ProviderNpi:    "1234567893",
		ProviderName:   "  Dr. Example  ",
		PayerName:      "Acme Health",
		FieldObserved:  models.FieldTermDate,
		SystemAName:    "credentialing",
		SystemAValue:   "2025-12-31",
		SystemBName:    "claims",
		SystemBValue:   "active",
		CorrectedValue: "2026-01-31",
		EvidenceType:   models.EvidencePayerPortal,
		EvidenceNotes:  "portal screenshot on file",
	}
}

func TestCreateObservation_Valid(t *testing.T) {
	db := newTestDB(t)

	observation, err := models.CreateObservation(context.Background(), db, validInput(), testSubmitter)
	if err != nil {
		t.Fatalf("CreateObservation: %v", err)
	}

	if observation.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", observation.Status)
	}
	if observation.ProviderName != "Dr. Example" {
		t.Fatalf("name not trimmed: %q", observation.ProviderName)
	}
	if observation.SubmittedBy != testSubmitter.Id || observation.SubmittedByEmail != testSubmitter.Email {
		t.Fatalf("submitter not recorded: %+v", observation)
	}
	if observation.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestCreateObservation_ShortNpiRejectedBeforeWrite(t *testing.T) {
	db := newTestDB(t)

	input := validInput()
	input.ProviderNpi = "12345"
	_, err := models.CreateObservation(context.Background(), db, input, testSubmitter)

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "ProviderNpi" {
		t.Fatalf("expected ProviderNpi field, got %s", validationErr.Field)
	}

	var count int64
	if err := db.Model(&models.Observation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
}

func TestCreateObservation_NonNumericNpiRejected(t *testing.T) {
	db := newTestDB(t)

	input := validInput()
	input.ProviderNpi = "12345abcde"
	_, err := models.CreateObservation(context.Background(), db, input, testSubmitter)

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "ProviderNpi" {
		t.Fatalf("expected ProviderNpi ValidationError, got %v", err)
	}
}

func TestCreateObservation_UnknownFieldObservedRejected(t *testing.T) {
	db := newTestDB(t)

	input := validInput()
	input.FieldObserved = "favorite_color"
	_, err := models.CreateObservation(context.Background(), db, input, testSubmitter)

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "FieldObserved" {
		t.Fatalf("expected FieldObserved ValidationError, got %v", err)
	}
}

func TestCreateObservation_MissingSubmitterRejected(t *testing.T) {
	db := newTestDB(t)

	_, err := models.CreateObservation(context.Background(), db, validInput(), models.Actor{})

	var validationErr *utils.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "SubmittedBy" {
		t.Fatalf("expected SubmittedBy ValidationError, got %v", err)
	}
}

func TestReviewEntry_GuardsAtWritePath(t *testing.T) {
	db := newTestDB(t)
	observation, err := models.CreateObservation(context.Background(), db, validInput(), testSubmitter)
	if err != nil {
		t.Fatalf("CreateObservation: %v", err)
	}

	// Rejection without a comment is blocked even below the workflow layer.
	entry := observation.NewReviewEntry(testSubmitter, models.DecisionRejected, "")
	if err := db.Create(entry).Error; err == nil {
		t.Fatalf("expected rejection without comment to fail")
	}

	// An entry referencing neither subject kind is blocked.
	orphan := &models.ReviewEntry{
		ReviewerId: "u-2",
		Decision:   models.DecisionApproved,
	}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected entry without subject reference to fail")
	}
}

func TestTagCategory_Allows(t *testing.T) {
	category := models.TagCategory{
		AllowedValues: models.StringList{"verified", "suspect"},
	}
	if !category.Allows("verified") {
		t.Fatalf("expected verified to be allowed")
	}
	if category.Allows("Verified") {
		t.Fatalf("matching must be exact")
	}
	if category.Allows("invalid") {
		t.Fatalf("expected invalid to be disallowed")
	}
}

func TestObservationStatusCounts(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 3; i++ {
		if _, err := models.CreateObservation(context.Background(), db, validInput(), testSubmitter); err != nil {
			t.Fatalf("CreateObservation: %v", err)
		}
	}
	if err := db.Model(&models.Observation{}).Where("id = ?", 1).
		Update("status", models.StatusApproved).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	counts, err := models.ObservationStatusCounts(context.Background(), db)
	if err != nil {
		t.Fatalf("ObservationStatusCounts: %v", err)
	}
	if counts[models.StatusPending] != 2 || counts[models.StatusApproved] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
