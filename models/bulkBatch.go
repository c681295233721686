package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/utils"
)

// RowMap preserves one full CSV row as uploaded, keyed by column name.
// Stored as a JSON column.
type RowMap map[string]string

func (m RowMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *RowMap) Scan(value interface{}) error {
	if value == nil {
		*m = RowMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for RowMap")
	}
}

// BulkBatch is a named tagging operation created from an uploaded CSV.
type BulkBatch struct {
	ID               int          `gorm:"primary_key" json:"id"`
	BatchName        string       `gorm:"size:255" json:"batch_name"`
	TagCategoryId    int          `gorm:"index;not null" json:"tag_category_id"`
	TagValue         string       `gorm:"size:100;not null" json:"tag_value"`
	IdColumnName     string       `gorm:"size:100;not null" json:"id_column_name"`
	RecordCount      int          `gorm:"not null" json:"record_count"`
	Notes            string       `gorm:"type:text" json:"notes"`
	SourceObjectKey  string       `gorm:"size:255;default:null" json:"source_object_key"`
	SubmittedBy      string       `gorm:"size:64;not null" json:"submitted_by"`
	SubmittedByEmail string       `gorm:"size:255;not null" json:"submitted_by_email"`
	Status           ReviewStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt        time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// BulkRecord is one ingested CSV row, owned exclusively by its batch.
type BulkRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	BatchId          int        `gorm:"index;not null" json:"batch_id"`
	Batch            *BulkBatch `gorm:"foreignKey:BatchId;constraint:OnDelete:CASCADE" json:"-"`
	ChunkIndex       int        `gorm:"not null" json:"chunk_index"`
	RecordIdentifier string     `gorm:"size:255;not null;default:''" json:"record_identifier"`
	OriginalRow      RowMap     `gorm:"type:json" json:"original_row"`
}

func (b *BulkBatch) SubjectType() string         { return utils.SubjectBatch }
func (b *BulkBatch) SubjectId() int              { return b.ID }
func (b *BulkBatch) CurrentStatus() ReviewStatus { return b.Status }

func (b *BulkBatch) NewReviewEntry(reviewer Actor, decision ReviewDecision, comments string) *ReviewEntry {
	return &ReviewEntry{
		BatchId:       &b.ID,
		ReviewerId:    reviewer.Id,
		ReviewerEmail: reviewer.Email,
		Decision:      decision,
		Comments:      comments,
	}
}

func (b *BulkBatch) ApplyDecision(tx *gorm.DB, decision ReviewDecision) (int64, error) {
	res := tx.Model(&BulkBatch{}).
		Where("id = ? AND status = ?", b.ID, StatusPending).
		Update("status", ReviewStatus(decision))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		b.Status = ReviewStatus(decision)
	}
	return res.RowsAffected, nil
}

func GetBatch(ctx context.Context, db *gorm.DB, id int) (*BulkBatch, error) {
	var batch BulkBatch
	err := db.WithContext(ctx).First(&batch, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches returns newest first, optionally filtered by status.
func ListBatches(ctx context.Context, db *gorm.DB, status ReviewStatus, limit int) ([]BulkBatch, error) {
	q := db.WithContext(ctx).Model(&BulkBatch{}).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var batches []BulkBatch
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// SampleBatchRecords returns up to limit records for the batch detail view.
func SampleBatchRecords(ctx context.Context, db *gorm.DB, batchId int, limit int) ([]BulkRecord, error) {
	var records []BulkRecord
	err := db.WithContext(ctx).
		Where("batch_id = ?", batchId).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountBatchRecords is the persisted-row side of the record_count invariant.
func CountBatchRecords(ctx context.Context, db *gorm.DB, batchId int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&BulkRecord{}).
		Where("batch_id = ?", batchId).
		Count(&count).Error
	return count, err
}

func BatchStatusCounts(ctx context.Context, db *gorm.DB) (map[ReviewStatus]int64, error) {
	return statusCounts(ctx, db, &BulkBatch{})
}
