package workflow_test

import (
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

var errInjected = errors.New("injected chunk failure")

// newTestDB opens a per-test in-memory sqlite database with the full schema.
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

func seedCategory(t *testing.T, db *gorm.DB) *models.TagCategory {
	t.Helper()
	category := &models.TagCategory{
		CategoryKey:   "data_quality",
		DisplayName:   "Data Quality",
		AllowedValues: models.StringList{"verified", "suspect", "invalid"},
		IsActive:      utils.NewTrue(),
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return category
}

var testHeaders = []string{"member_id", "provider_npi", "term_date"}

func makeRows(n int) []map[string]string {
	rows := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]string{
			"member_id":    fmt.Sprintf("M%04d", i),
			"provider_npi": fmt.Sprintf("%010d", i),
			"term_date":    "2026-01-31",
		})
	}
	return rows
}

// failChunkInserts makes every record insert for the given chunk index fail.
func failChunkInserts(t *testing.T, db *gorm.DB, chunk int) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test_fail_chunk", func(tx *gorm.DB) {
		records, ok := tx.Statement.Dest.(*[]models.BulkRecord)
		if ok && len(*records) > 0 && (*records)[0].ChunkIndex == chunk {
			_ = tx.AddError(errInjected)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove("test_fail_chunk")
	})
}
