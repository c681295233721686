package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/utils"
)

// StringList is a JSON-encoded array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for StringList")
	}
}

// TagCategory is the controlled vocabulary applied by bulk batches. The
// workflow only reads it; administration happens elsewhere.
type TagCategory struct {
	ID            int        `gorm:"primary_key" json:"id"`
	CategoryKey   string     `gorm:"size:100;not null;uniqueIndex" json:"category_key"`
	DisplayName   string     `gorm:"size:255;not null" json:"display_name"`
	AllowedValues StringList `gorm:"type:json" json:"allowed_values"`
	IsActive      *bool      `gorm:"not null;default:true" json:"is_active"`
}

func (t *TagCategory) Allows(value string) bool {
	for _, v := range t.AllowedValues {
		if v == value {
			return true
		}
	}
	return false
}

const activeTagCategoriesCacheKey = "TagCategories:active"

// ActiveTagCategories returns the active registry, cached in redis when
// available. Cache misses and redis errors fall through to the database.
func ActiveTagCategories(ctx context.Context, db *gorm.DB) ([]TagCategory, error) {
	var categories []TagCategory

	if exists, err := config.GetRedisObject(activeTagCategoriesCacheKey, &categories); err == nil && exists {
		return categories, nil
	}

	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(activeTagCategoriesCacheKey, &categories, utils.GetCacheLifespan()); err != nil {
		config.GetLogger().Warn("failed to cache tag categories: " + err.Error())
	}
	return categories, nil
}

// GetActiveTagCategory looks the category up by id among active entries.
func GetActiveTagCategory(ctx context.Context, db *gorm.DB, id int) (*TagCategory, error) {
	categories, err := ActiveTagCategories(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

// UpsertTagCategory is seeding support (cmd/seed-categories), not part of
// the analyst workflow.
func UpsertTagCategory(ctx context.Context, db *gorm.DB, category *TagCategory) error {
	var existing TagCategory
	err := db.WithContext(ctx).Where("category_key = ?", category.CategoryKey).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if cerr := db.WithContext(ctx).Create(category).Error; cerr != nil {
			return cerr
		}
		return config.RemoveRedisKey(activeTagCategoriesCacheKey)
	}
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"display_name":   category.DisplayName,
		"allowed_values": category.AllowedValues,
		"is_active":      category.IsActive,
	}).Error
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(activeTagCategoriesCacheKey)
}
